package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
	"github.com/trezcool/shulebus/core/route"
	"github.com/trezcool/shulebus/core/trip"
)

func (a *testApp) createTrip(routeID string, extra map[string]interface{}) trip.Trip {
	body := map[string]interface{}{"routeId": routeID, "tripDate": "2024-03-01"}
	for k, v := range extra {
		body[k] = v
	}
	code, res := a.call(http.MethodPost, "/v1/trips", body)
	require.Equal(a.t, http.StatusCreated, code, res.Error)

	var t trip.Trip
	decode(a.t, res, &t)
	return t
}

func TestTripAPI_Create(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)

	code, res := a.call(http.MethodPost, "/v1/trips", map[string]interface{}{"routeId": r.ID, "tripDate": "2024-03-01"})
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, res.Success)
	assert.Equal(t, "Trip created successfully", res.Message)

	var tr trip.Trip
	decode(t, res, &tr)
	assert.True(t, time.Date(2024, time.March, 1, 7, 0, 0, 0, time.UTC).Equal(tr.ScheduledStartTime))
	assert.Equal(t, trip.StatusInProgress, tr.Status)

	// timestamps are accepted too
	tr = a.createTrip(r.ID, map[string]interface{}{"tripDate": "2024-03-02T00:00:00Z"})
	assert.True(t, time.Date(2024, time.March, 2, 7, 0, 0, 0, time.UTC).Equal(tr.ScheduledStartTime))
}

func TestTripAPI_Create_RouteNotFound(t *testing.T) {
	a := newTestApp(t)

	code, res := a.call(http.MethodPost, "/v1/trips", map[string]interface{}{"routeId": "missing", "tripDate": "2024-03-01"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, res.Success)
	assert.Equal(t, "Route not found", res.Error)
}

func TestTripAPI_Retrieve(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	tr := a.createTrip(r.ID, nil)

	code, res := a.call(http.MethodGet, "/v1/trips/"+tr.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var got trip.Trip
	decode(t, res, &got)
	assert.Equal(t, tr.ID, got.ID)

	code, res = a.call(http.MethodGet, "/v1/trips/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Trip not found", res.Error)
}

func TestTripAPI_Query(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	for i := 0; i < 3; i++ {
		a.createTrip(r.ID, map[string]interface{}{"minderId": "minder-1"})
	}
	a.createTrip(r.ID, map[string]interface{}{"tripDate": "2024-03-05"})

	code, res := a.call(http.MethodGet, "/v1/trips?page=1&pageSize=2", nil)
	require.Equal(t, http.StatusOK, code)
	var trips []trip.Trip
	decode(t, res, &trips)
	assert.Len(t, trips, 2)
	require.NotNil(t, res.Pagination)
	assert.Equal(t, core.Pagination{Page: 1, PageSize: 2, TotalItems: 4, TotalPages: 2}, *res.Pagination)

	code, res = a.call(http.MethodGet, "/v1/trips?tripDate=2024-03-05", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, res, &trips)
	assert.Len(t, trips, 1)

	code, res = a.call(http.MethodGet, "/v1/trips/minder/minder-1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, res, &trips)
	assert.Len(t, trips, 3)
	assert.Equal(t, 3, res.Pagination.TotalItems)

	code, _ = a.call(http.MethodGet, "/v1/trips?tripDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTripAPI_Update(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	tr := a.createTrip(r.ID, map[string]interface{}{"busId": "bus-1", "driverId": "driver-1"})

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantBus    *string
		wantDriver *string
	}{
		{
			name:       "absent fields are unchanged",
			body:       map[string]interface{}{"notes": "late start"},
			wantBus:    core.StringPtr("bus-1"),
			wantDriver: core.StringPtr("driver-1"),
		},
		{
			name:       "empty clears",
			body:       map[string]interface{}{"busId": ""},
			wantBus:    nil,
			wantDriver: core.StringPtr("driver-1"),
		},
		{
			name:       "value sets",
			body:       map[string]interface{}{"busId": "bus-2", "driverId": "driver-2"},
			wantBus:    core.StringPtr("bus-2"),
			wantDriver: core.StringPtr("driver-2"),
		},
		{
			name:       "null clears",
			body:       map[string]interface{}{"driverId": nil},
			wantBus:    core.StringPtr("bus-2"),
			wantDriver: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := a.call(http.MethodPut, "/v1/trips/"+tr.ID, tt.body)
			require.Equal(t, http.StatusOK, code, res.Error)

			var got trip.Trip
			decode(t, res, &got)
			assert.Equal(t, tt.wantBus, got.BusID)
			assert.Equal(t, tt.wantDriver, got.DriverID)
		})
	}
}

func TestTripAPI_Update_Completed(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	tr := a.createTrip(r.ID, nil)

	code, res := a.call(http.MethodPut, "/v1/trips/"+tr.ID, map[string]interface{}{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, code, res.Error)

	var got trip.Trip
	decode(t, res, &got)
	assert.Equal(t, trip.StatusCompleted, got.Status)
	assert.NotNil(t, got.ScheduledEndTime)

	code, _ = a.call(http.MethodPut, "/v1/trips/"+tr.ID, map[string]interface{}{"status": "FINISHED"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTripAPI_Update_ClearEndTimes(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	tr := a.createTrip(r.ID, nil)

	code, res := a.call(http.MethodPut, "/v1/trips/"+tr.ID, map[string]interface{}{
		"status":        "COMPLETED",
		"actualEndTime": "2024-03-01T09:00:00Z",
	})
	require.Equal(t, http.StatusOK, code, res.Error)
	var got trip.Trip
	decode(t, res, &got)
	require.NotNil(t, got.ScheduledEndTime)
	require.NotNil(t, got.ActualEndTime)
	assert.True(t, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC).Equal(*got.ActualEndTime))

	code, res = a.call(http.MethodPut, "/v1/trips/"+tr.ID, map[string]interface{}{"scheduledEndTime": nil, "actualEndTime": nil})
	require.Equal(t, http.StatusOK, code, res.Error)
	got = trip.Trip{}
	decode(t, res, &got)
	assert.Nil(t, got.ScheduledEndTime)
	assert.Nil(t, got.ActualEndTime)
	assert.Equal(t, trip.StatusCompleted, got.Status)

	code, res = a.call(http.MethodPut, "/v1/trips/"+tr.ID, map[string]interface{}{"actualEndTime": "later"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON body", res.Error)
}

func TestTripAPI_Delete(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	tr := a.createTrip(r.ID, nil)
	admin := a.newToken(RoleAdmin)

	code, _ := a.call(http.MethodDelete, "/v1/trips/"+tr.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, res := a.do(http.MethodDelete, "/v1/trips/"+tr.ID, admin, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Trip deleted successfully", res.Message)

	code, _ = a.do(http.MethodDelete, "/v1/trips/"+tr.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTripAPI_Roster(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	tr := a.createTrip(r.ID, nil)
	p, s := a.createStudent("0712345678", "ABC123")

	lat, lng := -1.29, 36.82
	_, err := a.addresses.CreateAddress(context.Background(), address.Address{
		ParentID:    p.ID,
		AddressType: "Home",
		Location:    "Home",
		Latitude:    &lat,
		Longitude:   &lng,
		Status:      address.StatusActive,
		IsPrimary:   true,
	})
	require.NoError(t, err)

	code, res := a.call(http.MethodPost, "/v1/trips/"+tr.ID+"/students", map[string]string{"studentId": s.ID})
	require.Equal(t, http.StatusCreated, code, res.Error)
	var ts trip.TripStudent
	decode(t, res, &ts)
	if assert.NotNil(t, ts.PickupGPS) && assert.NotNil(t, ts.PickupLocation) {
		assert.Equal(t, "-1.29,36.82", *ts.PickupGPS)
		assert.Equal(t, "Home", *ts.PickupLocation)
	}

	code, res = a.call(http.MethodPost, "/v1/trips/"+tr.ID+"/students", map[string]string{"studentId": s.ID})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Student is already assigned to this trip", res.Error)

	code, res = a.call(http.MethodPut, "/v1/trips/"+tr.ID+"/students/"+s.ID, map[string]string{"pickupStatus": "ABSENT"})
	require.Equal(t, http.StatusOK, code, res.Error)
	decode(t, res, &ts)
	assert.Equal(t, trip.PickupAbsent, ts.PickupStatus)

	code, res = a.call(http.MethodGet, "/v1/trips/"+tr.ID+"/students", nil)
	require.Equal(t, http.StatusOK, code)
	var roster []trip.TripStudent
	decode(t, res, &roster)
	assert.Len(t, roster, 1)

	code, _ = a.call(http.MethodDelete, "/v1/trips/"+tr.ID+"/students/"+s.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.call(http.MethodDelete, "/v1/trips/"+tr.ID+"/students/"+s.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTripAPI_LogEventByTag_Twice(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	_, s := a.createStudent("0712345678", "ABC123")
	tr := a.createTrip(r.ID, map[string]interface{}{"students": []map[string]string{{"studentId": s.ID}}})

	scan := map[string]string{"rfidTagId": "ABC123", "eventType": "ENTERED_BUS"}

	code, res := a.call(http.MethodPost, "/v1/trips/"+tr.ID+"/rfid-log-by-tag", scan)
	require.Equal(t, http.StatusCreated, code, res.Error)
	var first trip.ScanResult
	decode(t, res, &first)
	require.NotNil(t, first.TripStudent.TrackingToken)
	assert.True(t, first.FirstPickup)
	assert.Len(t, a.sms.SentMessages(), 1)

	code, res = a.call(http.MethodPost, "/v1/trips/"+tr.ID+"/rfid-log-by-tag", scan)
	require.Equal(t, http.StatusCreated, code, res.Error)
	var second trip.ScanResult
	decode(t, res, &second)
	assert.Equal(t, first.TripStudent.TrackingToken, second.TripStudent.TrackingToken)
	assert.Equal(t, trip.PickedUp, second.TripStudent.PickupStatus)
	assert.False(t, second.FirstPickup)
	assert.Len(t, a.sms.SentMessages(), 1)

	code, res = a.call(http.MethodGet, "/v1/trips/"+tr.ID+"/rfid-events", nil)
	require.Equal(t, http.StatusOK, code)
	var events []trip.RfidEvent
	decode(t, res, &events)
	assert.Len(t, events, 2)
}

func TestTripAPI_LogEvent_Errors(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	_, s := a.createStudent("", "ABC123")
	tr := a.createTrip(r.ID, nil)

	tests := []struct {
		name     string
		path     string
		body     map[string]string
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown tag",
			path:     "/rfid-log-by-tag",
			body:     map[string]string{"rfidTagId": "NOPE", "eventType": "ENTERED_BUS"},
			wantCode: http.StatusNotFound,
			wantErr:  "No active student found with RFID tag: NOPE",
		},
		{
			name:     "student not on trip",
			path:     "/rfid-log",
			body:     map[string]string{"studentId": s.ID, "rfidTagId": "ABC123", "eventType": "ENTERED_BUS"},
			wantCode: http.StatusNotFound,
			wantErr:  "Student is not assigned to this trip",
		},
		{
			name:     "bad event type",
			path:     "/rfid-log",
			body:     map[string]string{"studentId": s.ID, "rfidTagId": "ABC123", "eventType": "JUMPED"},
			wantCode: http.StatusBadRequest,
			wantErr:  "Validation failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := a.call(http.MethodPost, "/v1/trips/"+tr.ID+tt.path, tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
	events, _ := a.db.Counts()
	assert.Zero(t, events)
}

func TestTripAPI_LogEventsBulk(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	_, s := a.createStudent("0712345678", "ABC123")
	tr := a.createTrip(r.ID, map[string]interface{}{"students": []map[string]string{{"studentId": s.ID}}})

	code, res := a.call(http.MethodPost, "/v1/trips/"+tr.ID+"/rfid-log-bulk", map[string]interface{}{
		"deviceId": "reader-1",
		"events": []map[string]string{
			{"rfidTagId": "ABC123", "eventType": "ENTERED_BUS"},
			{"rfidTagId": "UNKNOWN", "eventType": "ENTERED_BUS"},
		},
	})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, "Processed 2 events, 1 succeeded", res.Message)

	var results []trip.BulkScanResult
	decode(t, res, &results)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.NotNil(t, results[0].EventID)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "No active student found")

	events, _ := a.db.Counts()
	assert.Equal(t, 1, events)
}

func TestTripAPI_Location(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	scheduled := a.createTrip(r.ID, map[string]interface{}{"status": "SCHEDULED"})
	running := a.createTrip(r.ID, nil)
	sample := map[string]float64{"latitude": -1.29, "longitude": 36.82, "speed": 30}

	code, res := a.call(http.MethodPost, "/v1/trips/"+scheduled.ID+"/location", sample)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Cannot update location. Trip status is: SCHEDULED", res.Error)
	_, locations := a.db.Counts()
	assert.Zero(t, locations)

	code, res = a.call(http.MethodGet, "/v1/trips/"+running.ID+"/location", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No location data found for this trip", res.Error)

	code, res = a.call(http.MethodPost, "/v1/trips/"+running.ID+"/location", sample)
	require.Equal(t, http.StatusCreated, code, res.Error)

	code, res = a.call(http.MethodGet, "/v1/trips/"+running.ID+"/location", nil)
	require.Equal(t, http.StatusOK, code)
	var loc trip.Location
	decode(t, res, &loc)
	assert.Equal(t, -1.29, loc.Latitude)
	assert.Equal(t, 36.82, loc.Longitude)

	code, res = a.call(http.MethodGet, "/v1/trips/"+running.ID+"/location/history?limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	var history []trip.Location
	decode(t, res, &history)
	assert.Len(t, history, 1)

	code, _ = a.call(http.MethodPost, "/v1/trips/"+running.ID+"/location", map[string]float64{"latitude": 91, "longitude": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.call(http.MethodGet, "/v1/trips/"+running.ID+"/location/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
