package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/metrics"
	"github.com/trezcool/shulebus/core/notify"
	"github.com/trezcool/shulebus/core/student"
)

const trackingTokenBytes = 32

// NewTrackingToken returns 32 random bytes, hex encoded.
func NewTrackingToken() (string, error) {
	b := make([]byte, trackingTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return hex.EncodeToString(b), nil
}

// reading is one scan after the student has been resolved.
type reading struct {
	studentID      string
	rfidTagID      string
	eventType      EventType
	deviceID       *string
	deviceLocation *string
	gps            *string
	scannedAt      time.Time
	notes          *string
}

func (svc *service) readingFromScan(studentID string, scan Scan) reading {
	r := reading{
		studentID:      studentID,
		rfidTagID:      scan.RFIDTagID,
		eventType:      scan.EventType,
		deviceID:       core.StringPtr(scan.DeviceID),
		deviceLocation: core.StringPtr(scan.DeviceLocation),
		gps:            core.StringPtr(scan.GPSCoordinates),
		scannedAt:      svc.now().UTC(),
		notes:          core.StringPtr(scan.Notes),
	}
	if scan.ScannedAt != nil {
		r.scannedAt = scan.ScannedAt.UTC()
	}
	return r
}

// transition applies a scan to a roster entry.
// Status always moves forward; times, GPS, locations and the tracking token are only written when unset.
// firstPickup is true only for the scan that records the pickup time.
func transition(ts TripStudent, r reading, newToken func() (string, error)) (next TripStudent, firstPickup bool, err error) {
	next = ts
	switch r.eventType {
	case EnteredBus:
		next.PickupStatus = PickedUp
		if next.ActualPickupTime == nil {
			at := r.scannedAt
			next.ActualPickupTime = &at
			firstPickup = true
		}
		if next.PickupGPS == nil {
			next.PickupGPS = r.gps
		}
		if next.PickupLocation == nil {
			next.PickupLocation = r.deviceLocation
		}
		if next.TrackingToken == nil {
			token, err := newToken()
			if err != nil {
				return ts, false, errors.Wrap(err, "generating tracking token")
			}
			next.TrackingToken = &token
		}
	case ExitedBus:
		next.DropoffStatus = DroppedOff
		if next.ActualDropoffTime == nil {
			at := r.scannedAt
			next.ActualDropoffTime = &at
		}
		if next.DropoffGPS == nil {
			next.DropoffGPS = r.gps
		}
		if next.DropoffLocation == nil {
			next.DropoffLocation = r.deviceLocation
		}
	default:
		return ts, false, core.NewValidationError(
			fmt.Errorf("unknown event type %q", r.eventType),
			core.FieldError{Field: "eventType", Error: fmt.Sprintf("unknown event type %q", r.eventType)},
		)
	}
	return next, firstPickup, nil
}

// process records one scan and moves the roster entry in a single transaction.
// The roster entry is locked and re-read inside the transaction so concurrent scans of the same
// student serialize and only one of them sees the pickup time unset.
func (svc *service) process(ctx context.Context, tripID string, r reading) (ScanResult, error) {
	var res ScanResult
	err := svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.Repo.GetTrip(ctx, tripID, exec); err != nil {
			return err
		}
		ts, err := svc.Repo.LockTripStudent(ctx, tripID, r.studentID, exec)
		if err != nil {
			return err
		}

		ev, err := svc.Repo.CreateRfidEvent(ctx, RfidEvent{
			TripID:         tripID,
			TripStudentID:  ts.ID,
			StudentID:      r.studentID,
			EventType:      r.eventType,
			RFIDTagID:      r.rfidTagID,
			DeviceID:       r.deviceID,
			DeviceLocation: r.deviceLocation,
			GPSCoordinates: r.gps,
			ScannedAt:      r.scannedAt,
			Notes:          r.notes,
			CreatedAt:      svc.now().UTC(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating rfid event")
		}

		next, first, err := transition(ts, r, svc.newToken)
		if err != nil {
			return err
		}
		next.UpdatedAt = svc.now().UTC()
		if next, err = svc.Repo.UpdateTripStudent(ctx, next, exec); err != nil {
			return errors.Wrap(err, "updating trip student")
		}

		res = ScanResult{Event: ev, TripStudent: next, FirstPickup: first}
		return nil
	})
	if err != nil {
		metrics.RfidEvents.WithLabelValues(string(r.eventType), metrics.Failed).Inc()
		return ScanResult{}, err
	}

	metrics.RfidEvents.WithLabelValues(string(r.eventType), metrics.OK).Inc()
	svc.Logger.Debug("rfid event recorded", map[string]interface{}{
		"tripId":    tripID,
		"studentId": r.studentID,
		"eventType": r.eventType,
		"first":     res.FirstPickup,
	})

	if res.FirstPickup {
		metrics.FirstPickups.Inc()
		svc.notifyPickup(tripID, res.TripStudent)
	}
	return res, nil
}

// notifyPickup sends the pickup notice outside the request. Failures are only logged.
func (svc *service) notifyPickup(tripID string, ts TripStudent) {
	if ts.TrackingToken == nil || svc.Notifier == nil {
		return
	}
	token := *ts.TrackingToken

	svc.spawn(func() {
		ctx := context.Background()
		contact, err := svc.StudentRepo.GetContact(ctx, ts.StudentID)
		if err != nil {
			svc.Logger.Error("could not load pickup notification contact", err, map[string]interface{}{"tripId": tripID, "studentId": ts.StudentID})
			return
		}
		svc.Notifier.NotifyPickup(ctx, notify.Pickup{
			TripID:        tripID,
			TrackingToken: token,
			Student:       contact.Student,
			Parent:        contact.Parent,
		})
	})
}

// LogEvent processes a scan for an explicitly identified student.
func (svc *service) LogEvent(ctx context.Context, tripID string, scan Scan) (ScanResult, error) {
	if scan.StudentID == "" {
		return ScanResult{}, core.NewValidationError(
			errors.New("studentId is required"),
			core.FieldError{Field: "studentId", Error: "this field is required"},
		)
	}
	return svc.process(ctx, tripID, svc.readingFromScan(scan.StudentID, scan))
}

// LogEventByTag resolves the student from the scanned tag before processing.
func (svc *service) LogEventByTag(ctx context.Context, tripID string, scan Scan) (ScanResult, error) {
	stu, err := svc.studentByTag(ctx, scan.RFIDTagID)
	if err != nil {
		return ScanResult{}, err
	}
	return svc.process(ctx, tripID, svc.readingFromScan(stu.ID, scan))
}

func (svc *service) studentByTag(ctx context.Context, tag string) (student.Student, error) {
	stu, err := svc.StudentRepo.GetActiveStudentByRFIDTag(ctx, tag)
	if err != nil {
		if core.IsNotFound(err) {
			return student.Student{}, core.NewNotFoundError(fmt.Sprintf("No active student found with RFID tag: %s", tag))
		}
		return student.Student{}, errors.Wrap(err, "getting student by rfid tag")
	}
	return stu, nil
}

// LogEventsBulk processes each event in its own transaction.
// A failing event is reported in its result and does not stop the others.
func (svc *service) LogEventsBulk(ctx context.Context, tripID string, bulk BulkScan) ([]BulkScanResult, error) {
	if _, err := svc.Repo.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}

	results := make([]BulkScanResult, 0, len(bulk.Events))
	for _, e := range bulk.Events {
		res := BulkScanResult{RFIDTagID: e.RFIDTagID}

		stu, err := svc.studentByTag(ctx, e.RFIDTagID)
		if err != nil {
			res.Error = svc.bulkError(err, tripID, e)
			results = append(results, res)
			continue
		}
		studentID := stu.ID
		res.StudentID = &studentID

		scanned, err := svc.process(ctx, tripID, svc.readingFromScan(stu.ID, Scan{
			RFIDTagID:      e.RFIDTagID,
			EventType:      e.EventType,
			DeviceID:       bulk.DeviceID,
			DeviceLocation: bulk.DeviceLocation,
			GPSCoordinates: bulk.GPSCoordinates,
			ScannedAt:      e.ScannedAt,
		}))
		if err != nil {
			res.Error = svc.bulkError(err, tripID, e)
			results = append(results, res)
			continue
		}

		eventID := scanned.Event.ID
		res.Success = true
		res.EventID = &eventID
		results = append(results, res)
	}
	return results, nil
}

// bulkError returns the message reported for a failed bulk event.
func (svc *service) bulkError(err error, tripID string, e BulkScanEvent) string {
	switch errors.Cause(err).(type) {
	case *core.NotFoundError, *core.ConflictError, *core.StateError, *core.ValidationError:
		return errors.Cause(err).Error()
	}
	svc.Logger.Error("bulk rfid event failed", err, map[string]interface{}{"tripId": tripID, "rfidTagId": e.RFIDTagID})
	return "Unknown error occurred"
}

func (svc *service) QueryEvents(ctx context.Context, filter EventFilter) ([]RfidEvent, error) {
	if filter.TripID != "" {
		if _, err := svc.Repo.GetTrip(ctx, filter.TripID); err != nil {
			return nil, err
		}
	}
	return svc.Repo.QueryRfidEvents(ctx, filter)
}
