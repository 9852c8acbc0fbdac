package trip

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shulebus/core"
)

type Status string

// Trip statuses
const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDelayed    Status = "DELAYED"
)

type PickupStatus string

// Pickup statuses
const (
	NotPickedUp   PickupStatus = "NOT_PICKED_UP"
	PickedUp      PickupStatus = "PICKED_UP"
	PickupAbsent  PickupStatus = "ABSENT"
	PickupExcused PickupStatus = "EXCUSED"
)

type DropoffStatus string

// Dropoff statuses
const (
	NotDroppedOff  DropoffStatus = "NOT_DROPPED_OFF"
	DroppedOff     DropoffStatus = "DROPPED_OFF"
	DropoffAbsent  DropoffStatus = "ABSENT"
	DropoffExcused DropoffStatus = "EXCUSED"
)

type EventType string

// RFID event types
const (
	EnteredBus EventType = "ENTERED_BUS"
	ExitedBus  EventType = "EXITED_BUS"
)

var (
	Statuses        = []string{string(StatusScheduled), string(StatusInProgress), string(StatusCompleted), string(StatusCancelled), string(StatusDelayed)}
	PickupStatuses  = []string{string(NotPickedUp), string(PickedUp), string(PickupAbsent), string(PickupExcused)}
	DropoffStatuses = []string{string(NotDroppedOff), string(DroppedOff), string(DropoffAbsent), string(DropoffExcused)}
	EventTypes      = []string{string(EnteredBus), string(ExitedBus)}

	// ActiveStatuses are the statuses of a trip that is not over yet.
	ActiveStatuses = []Status{StatusScheduled, StatusInProgress}
)

type Trip struct {
	ID                 string     `json:"id"`
	RouteID            string     `json:"routeId"`
	BusID              *string    `json:"busId"`
	DriverID           *string    `json:"driverId"`
	MinderID           *string    `json:"minderId"`
	TripDate           time.Time  `json:"tripDate"`
	ScheduledStartTime time.Time  `json:"scheduledStartTime"`
	ScheduledEndTime   *time.Time `json:"scheduledEndTime"`
	ActualStartTime    *time.Time `json:"actualStartTime"`
	ActualEndTime      *time.Time `json:"actualEndTime"`
	Status             Status     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	StartLocation      *string    `json:"startLocation"`
	EndLocation        *string    `json:"endLocation"`
	StartGPS           *string    `json:"startGps"`
	EndGPS             *string    `json:"endGps"`
	IsActive           bool       `json:"isActive"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`

	Students []TripStudent `json:"students,omitempty"`
}

// TripStudent is one roster entry: a student assigned to a trip.
type TripStudent struct {
	ID                string        `json:"id"`
	TripID            string        `json:"tripId"`
	StudentID         string        `json:"studentId"`
	PickupStatus      PickupStatus  `json:"pickupStatus"`
	DropoffStatus     DropoffStatus `json:"dropoffStatus"`
	ActualPickupTime  *time.Time    `json:"actualPickupTime"`
	ActualDropoffTime *time.Time    `json:"actualDropoffTime"`
	PickupLocation    *string       `json:"pickupLocation"`
	DropoffLocation   *string       `json:"dropoffLocation"`
	PickupGPS         *string       `json:"pickupGps"`
	DropoffGPS        *string       `json:"dropoffGps"`
	TrackingToken     *string       `json:"trackingToken"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// IsRiding reports whether the student is on the bus and has a tracking token.
func (ts TripStudent) IsRiding() bool {
	return ts.PickupStatus == PickedUp && ts.DropoffStatus != DroppedOff && ts.TrackingToken != nil
}

// RfidEvent is an immutable scan record.
type RfidEvent struct {
	ID             string    `json:"id"`
	TripID         string    `json:"tripId"`
	TripStudentID  string    `json:"tripStudentId"`
	StudentID      string    `json:"studentId"`
	EventType      EventType `json:"eventType"`
	RFIDTagID      string    `json:"rfidTagId"`
	DeviceID       *string   `json:"deviceId"`
	DeviceLocation *string   `json:"deviceLocation"`
	GPSCoordinates *string   `json:"gpsCoordinates"`
	ScannedAt      time.Time `json:"scannedAt"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Location is an immutable GPS sample of a trip.
type Location struct {
	ID        string    `json:"id"`
	TripID    string    `json:"tripId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
	Accuracy  *float64  `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTrip contains information needed to create a new Trip.
type NewTrip struct {
	RouteID            string       `json:"routeId" validate:"required,notblank"`
	BusID              string       `json:"busId"`
	DriverID           string       `json:"driverId"`
	MinderID           string       `json:"minderId"`
	TripDate           time.Time    `json:"tripDate" validate:"required"`
	ScheduledStartTime *time.Time   `json:"scheduledStartTime"`
	ScheduledEndTime   *time.Time   `json:"scheduledEndTime"`
	Status             Status       `json:"status" validate:"omitempty,tripstatus"`
	Notes              string       `json:"notes" validate:"max=1000"`
	StartLocation      string       `json:"startLocation" validate:"max=200"`
	EndLocation        string       `json:"endLocation" validate:"max=200"`
	StartGPS           string       `json:"startGps" validate:"omitempty,gps"`
	EndGPS             string       `json:"endGps" validate:"omitempty,gps"`
	Students           []NewStudent `json:"students" validate:"omitempty,dive"`
	IsActive           *bool        `json:"isActive"`
}

type NewStudent struct {
	StudentID string `json:"studentId" validate:"required,notblank"`
}

func (nt *NewTrip) Validate(validate *validator.Validate) error {
	nt.RouteID = core.CleanString(nt.RouteID)
	nt.Notes = core.CleanString(nt.Notes)
	return validate.Struct(nt)
}

// UpdateTrip defines what information may be provided to modify an existing Trip.
// Only non-nil fields are written; associations and the nullable timestamps follow
// core.RefPatch semantics.
type UpdateTrip struct {
	RouteID            *string        `json:"routeId" validate:"omitempty,notblank"`
	BusID              core.RefPatch  `json:"busId"`
	DriverID           core.RefPatch  `json:"driverId"`
	MinderID           core.RefPatch  `json:"minderId"`
	TripDate           *time.Time     `json:"tripDate"`
	ScheduledStartTime *time.Time     `json:"scheduledStartTime"`
	ActualStartTime    core.TimePatch `json:"actualStartTime"`
	ScheduledEndTime   core.TimePatch `json:"scheduledEndTime"`
	ActualEndTime      core.TimePatch `json:"actualEndTime"`
	Status             *Status        `json:"status" validate:"omitempty,tripstatus"`
	Notes              *string        `json:"notes" validate:"omitempty,max=1000"`
	StartLocation      *string        `json:"startLocation" validate:"omitempty,max=200"`
	EndLocation        *string        `json:"endLocation" validate:"omitempty,max=200"`
	StartGPS           *string        `json:"startGps" validate:"omitempty,gps"`
	EndGPS             *string        `json:"endGps" validate:"omitempty,gps"`
	IsActive           *bool          `json:"isActive"`
}

func (ut *UpdateTrip) Validate(validate *validator.Validate) error {
	return validate.Struct(ut)
}

// apply writes the patch over t. Moving into COMPLETED captures the scheduled end time once;
// an explicit ScheduledEndTime in the patch always wins.
func (ut UpdateTrip) apply(t Trip, current time.Time) Trip {
	prev := t
	if ut.RouteID != nil {
		t.RouteID = core.CleanString(*ut.RouteID)
	}
	if ut.TripDate != nil {
		t.TripDate = *ut.TripDate
	}
	if ut.ScheduledStartTime != nil {
		t.ScheduledStartTime = *ut.ScheduledStartTime
	}
	t.ActualStartTime = ut.ActualStartTime.Apply(t.ActualStartTime)
	t.ActualEndTime = ut.ActualEndTime.Apply(t.ActualEndTime)
	if ut.Status != nil {
		t.ScheduledEndTime = completionEndTime(prev, *ut.Status, current)
		t.Status = *ut.Status
	}
	t.ScheduledEndTime = ut.ScheduledEndTime.Apply(t.ScheduledEndTime)
	if ut.Notes != nil {
		t.Notes = core.CleanString(*ut.Notes)
	}
	if ut.StartLocation != nil {
		t.StartLocation = core.StringPtr(*ut.StartLocation)
	}
	if ut.EndLocation != nil {
		t.EndLocation = core.StringPtr(*ut.EndLocation)
	}
	if ut.StartGPS != nil {
		t.StartGPS = core.StringPtr(*ut.StartGPS)
	}
	if ut.EndGPS != nil {
		t.EndGPS = core.StringPtr(*ut.EndGPS)
	}
	t.BusID = ut.BusID.Apply(t.BusID)
	t.DriverID = ut.DriverID.Apply(t.DriverID)
	t.MinderID = ut.MinderID.Apply(t.MinderID)
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	return t
}

// UpdateStudent is a partial patch of a roster entry.
type UpdateStudent struct {
	PickupStatus      *PickupStatus  `json:"pickupStatus" validate:"omitempty,pickupstatus"`
	DropoffStatus     *DropoffStatus `json:"dropoffStatus" validate:"omitempty,dropoffstatus"`
	ActualPickupTime  *time.Time     `json:"actualPickupTime"`
	ActualDropoffTime *time.Time     `json:"actualDropoffTime"`
	PickupLocation    *string        `json:"pickupLocation" validate:"omitempty,max=200"`
	DropoffLocation   *string        `json:"dropoffLocation" validate:"omitempty,max=200"`
	PickupGPS         *string        `json:"pickupGps" validate:"omitempty,gps"`
	DropoffGPS        *string        `json:"dropoffGps" validate:"omitempty,gps"`
	Notes             *string        `json:"notes" validate:"omitempty,max=500"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

func (us UpdateStudent) apply(ts TripStudent) TripStudent {
	if us.PickupStatus != nil {
		ts.PickupStatus = *us.PickupStatus
	}
	if us.DropoffStatus != nil {
		ts.DropoffStatus = *us.DropoffStatus
	}
	if us.ActualPickupTime != nil {
		t := us.ActualPickupTime.UTC()
		ts.ActualPickupTime = &t
	}
	if us.ActualDropoffTime != nil {
		t := us.ActualDropoffTime.UTC()
		ts.ActualDropoffTime = &t
	}
	if us.PickupLocation != nil {
		ts.PickupLocation = us.PickupLocation
	}
	if us.DropoffLocation != nil {
		ts.DropoffLocation = us.DropoffLocation
	}
	if us.PickupGPS != nil {
		ts.PickupGPS = us.PickupGPS
	}
	if us.DropoffGPS != nil {
		ts.DropoffGPS = us.DropoffGPS
	}
	if us.Notes != nil {
		ts.Notes = *us.Notes
	}
	return ts
}

// Scan is one RFID reading reported by a bus device.
type Scan struct {
	StudentID      string     `json:"studentId"`
	RFIDTagID      string     `json:"rfidTagId" validate:"required,notblank"`
	EventType      EventType  `json:"eventType" validate:"required,eventtype"`
	DeviceID       string     `json:"deviceId"`
	DeviceLocation string     `json:"deviceLocation" validate:"max=200"`
	GPSCoordinates string     `json:"gpsCoordinates" validate:"omitempty,gps"`
	ScannedAt      *time.Time `json:"scannedAt"`
	Notes          string     `json:"notes" validate:"max=500"`
}

func (s *Scan) Validate(validate *validator.Validate) error {
	s.StudentID = core.CleanString(s.StudentID)
	s.RFIDTagID = core.CleanString(s.RFIDTagID)
	return validate.Struct(s)
}

// BulkScan is a batch of tag readings sharing device information.
type BulkScan struct {
	Events         []BulkScanEvent `json:"events" validate:"required,min=1,dive"`
	DeviceID       string          `json:"deviceId"`
	DeviceLocation string          `json:"deviceLocation" validate:"max=200"`
	GPSCoordinates string          `json:"gpsCoordinates" validate:"omitempty,gps"`
}

type BulkScanEvent struct {
	RFIDTagID string     `json:"rfidTagId" validate:"required,notblank"`
	EventType EventType  `json:"eventType" validate:"required,eventtype"`
	ScannedAt *time.Time `json:"scannedAt"`
}

func (bs *BulkScan) Validate(validate *validator.Validate) error {
	return validate.Struct(bs)
}

// ScanResult is the outcome of a processed scan.
type ScanResult struct {
	Event       RfidEvent   `json:"event"`
	TripStudent TripStudent `json:"tripStudent"`
	// FirstPickup is set when this scan recorded the student's first pickup on the trip.
	FirstPickup bool `json:"firstPickup"`
}

// BulkScanResult is the outcome of one event of a BulkScan.
type BulkScanResult struct {
	RFIDTagID string  `json:"rfidTagId"`
	StudentID *string `json:"studentId,omitempty"`
	Success   bool    `json:"success"`
	EventID   *string `json:"eventId,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// NewLocation is a GPS sample reported for a trip.
type NewLocation struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Speed     *float64 `json:"speed" validate:"omitempty,min=0"`
	Heading   *float64 `json:"heading" validate:"omitempty,min=0,max=360"`
	Accuracy  *float64 `json:"accuracy" validate:"omitempty,min=0"`
}

func (nl *NewLocation) Validate(validate *validator.Validate) error {
	return validate.Struct(nl)
}

// QueryFilter applies AND operation on its non-zero fields.
type QueryFilter struct {
	RouteID  string
	Status   Status
	MinderID string
	// TripDate matches every trip on the same calendar day.
	TripDate *time.Time

	// day bounds of TripDate, set by the service
	TripDateFrom time.Time
	TripDateTo   time.Time
}

type ActiveFilter struct {
	DriverID string
	MinderID string
}

type EventFilter struct {
	TripID    string
	StudentID string
	EventType EventType
	StartDate *time.Time
	EndDate   *time.Time
}

type LocationFilter struct {
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
}
