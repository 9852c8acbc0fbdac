package ingest

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/trip"
)

type tripsMock struct {
	mock.Mock
	trip.Service
}

func (m *tripsMock) UpdateLocation(ctx context.Context, tripID string, nl trip.NewLocation) (trip.Location, error) {
	args := m.Called(ctx, tripID, nl)
	return args.Get(0).(trip.Location), args.Error(1)
}

func (m *tripsMock) LogEvent(ctx context.Context, tripID string, scan trip.Scan) (trip.ScanResult, error) {
	args := m.Called(ctx, tripID, scan)
	return args.Get(0).(trip.ScanResult), args.Error(1)
}

func (m *tripsMock) LogEventByTag(ctx context.Context, tripID string, scan trip.Scan) (trip.ScanResult, error) {
	args := m.Called(ctx, tripID, scan)
	return args.Get(0).(trip.ScanResult), args.Error(1)
}

func (m *tripsMock) LogEventsBulk(ctx context.Context, tripID string, bulk trip.BulkScan) ([]trip.BulkScanResult, error) {
	args := m.Called(ctx, tripID, bulk)
	return args.Get(0).([]trip.BulkScanResult), args.Error(1)
}

func newTestBridge(trips trip.Service) *Bridge {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	trip.InitValidators(validate, translator)

	conf := core.NewTestConfig()
	conf.MQTT = core.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "test", TopicPrefix: "shulebus/"}
	return NewBridge(conf, trips, validate, core.NopLogger{})
}

func TestBridge_Topics(t *testing.T) {
	b := newTestBridge(&tripsMock{})
	assert.Equal(t, []string{
		"shulebus/trips/+/location",
		"shulebus/trips/+/rfid",
		"shulebus/trips/+/rfid/bulk",
	}, b.Topics())
}

func TestBridge_ParseTopic(t *testing.T) {
	b := newTestBridge(&tripsMock{})
	tests := []struct {
		topic    string
		wantTrip string
		wantKind kind
		wantErr  bool
	}{
		{topic: "shulebus/trips/t1/location", wantTrip: "t1", wantKind: kindLocation},
		{topic: "shulebus/trips/t1/rfid", wantTrip: "t1", wantKind: kindScan},
		{topic: "shulebus/trips/t1/rfid/bulk", wantTrip: "t1", wantKind: kindBulkScan},
		{topic: "shulebus/trips/t1/speed", wantErr: true},
		{topic: "shulebus/trips//location", wantErr: true},
		{topic: "other/trips/t1/location", wantErr: true},
		{topic: "shulebus/trips/t1", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.topic, func(t *testing.T) {
			tripID, k, err := b.parseTopic(tc.topic)
			if tc.wantErr {
				assert.Equal(t, errUnknownTopic, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantTrip, tripID)
			assert.Equal(t, tc.wantKind, k)
		})
	}
}

func TestBridge_HandleLocation(t *testing.T) {
	trips := &tripsMock{}
	b := newTestBridge(trips)
	ctx := context.Background()

	trips.On("UpdateLocation", ctx, "t1", mock.MatchedBy(func(nl trip.NewLocation) bool {
		return *nl.Latitude == -1.29 && *nl.Longitude == 36.82 && *nl.Speed == 30
	})).Return(trip.Location{ID: "l1"}, nil).Once()

	err := b.handle(ctx, "shulebus/trips/t1/location", []byte(`{"latitude":-1.29,"longitude":36.82,"speed":30}`))
	require.NoError(t, err)
	trips.AssertExpectations(t)

	err = b.handle(ctx, "shulebus/trips/t1/location", []byte(`{"latitude":120,"longitude":36.82}`))
	assert.Error(t, err, "out of range")
	err = b.handle(ctx, "shulebus/trips/t1/location", []byte(`not json`))
	assert.Error(t, err)
	trips.AssertNumberOfCalls(t, "UpdateLocation", 1)
}

func TestBridge_HandleScan(t *testing.T) {
	trips := &tripsMock{}
	b := newTestBridge(trips)
	ctx := context.Background()

	trips.On("LogEventByTag", ctx, "t1", mock.MatchedBy(func(s trip.Scan) bool {
		return s.RFIDTagID == "ABC123" && s.EventType == trip.EnteredBus
	})).Return(trip.ScanResult{}, nil).Once()
	trips.On("LogEvent", ctx, "t1", mock.MatchedBy(func(s trip.Scan) bool {
		return s.StudentID == "s1"
	})).Return(trip.ScanResult{}, trip.ErrNotAssigned).Once()

	require.NoError(t, b.handle(ctx, "shulebus/trips/t1/rfid", []byte(`{"rfidTagId":"ABC123","eventType":"ENTERED_BUS"}`)))

	err := b.handle(ctx, "shulebus/trips/t1/rfid", []byte(`{"studentId":"s1","rfidTagId":"ABC123","eventType":"ENTERED_BUS"}`))
	assert.True(t, core.IsNotFound(err))

	err = b.handle(ctx, "shulebus/trips/t1/rfid", []byte(`{"rfidTagId":"ABC123","eventType":"WAVED"}`))
	assert.Error(t, err)
	trips.AssertExpectations(t)
}

func TestBridge_HandleBulkScan(t *testing.T) {
	trips := &tripsMock{}
	b := newTestBridge(trips)
	ctx := context.Background()

	trips.On("LogEventsBulk", ctx, "t1", mock.MatchedBy(func(bs trip.BulkScan) bool {
		return len(bs.Events) == 2 && bs.DeviceID == "reader-1"
	})).Return([]trip.BulkScanResult{{RFIDTagID: "A", Success: true}, {RFIDTagID: "B", Error: "No active student found with RFID tag: B"}}, nil).Once()

	err := b.handle(ctx, "shulebus/trips/t1/rfid/bulk", []byte(`{"deviceId":"reader-1","events":[{"rfidTagId":"A","eventType":"ENTERED_BUS"},{"rfidTagId":"B","eventType":"EXITED_BUS"}]}`))
	require.NoError(t, err)

	err = b.handle(ctx, "shulebus/trips/t1/rfid/bulk", []byte(`{"events":[]}`))
	assert.Error(t, err)
	trips.AssertExpectations(t)
}
