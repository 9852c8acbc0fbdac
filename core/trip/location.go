package trip

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/metrics"
	"github.com/trezcool/shulebus/core/tracking"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// LocationUpdate is the payload pushed to tracking rooms.
type LocationUpdate struct {
	TripID    string    `json:"tripId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
}

func newLocationUpdate(loc Location) LocationUpdate {
	return LocationUpdate{
		TripID:    loc.TripID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Timestamp: loc.Timestamp,
		Speed:     loc.Speed,
		Heading:   loc.Heading,
		Accuracy:  loc.Accuracy,
	}
}

// UpdateLocation stores a GPS sample of an in-progress trip and pushes it to the trip room
// and to the tracking room of every student riding the bus.
// Once the sample is stored, broadcast and archive failures are only logged.
func (svc *service) UpdateLocation(ctx context.Context, tripID string, nl NewLocation) (Location, error) {
	t, err := svc.Repo.GetTrip(ctx, tripID)
	if err != nil {
		return Location{}, err
	}
	if t.Status != StatusInProgress {
		return Location{}, core.NewStateError(fmt.Sprintf("Cannot update location. Trip status is: %s", t.Status))
	}

	loc, err := svc.Repo.CreateLocation(ctx, Location{
		TripID:    tripID,
		Latitude:  *nl.Latitude,
		Longitude: *nl.Longitude,
		Speed:     nl.Speed,
		Heading:   nl.Heading,
		Accuracy:  nl.Accuracy,
		Timestamp: svc.now().UTC(),
	})
	if err != nil {
		return Location{}, errors.Wrap(err, "creating location")
	}
	metrics.LocationUpdates.Inc()

	if svc.Archive != nil {
		if err := svc.Archive.ArchiveLocation(ctx, loc); err != nil {
			svc.Logger.Warn("could not archive location", err, map[string]interface{}{"tripId": tripID})
		}
	}
	svc.broadcastLocation(ctx, loc)
	return loc, nil
}

func (svc *service) broadcastLocation(ctx context.Context, loc Location) {
	if svc.Broadcaster == nil {
		return
	}
	payload := newLocationUpdate(loc)

	if err := svc.Broadcaster.Broadcast(tracking.TripRoom(loc.TripID), tracking.EventLocationUpdate, payload); err != nil {
		svc.Logger.Warn("could not broadcast location to trip room", err, map[string]interface{}{"tripId": loc.TripID})
	}

	riding, err := svc.Repo.QueryRidingStudents(ctx, loc.TripID)
	if err != nil {
		svc.Logger.Warn("could not list riding students", err, map[string]interface{}{"tripId": loc.TripID})
		return
	}
	for _, ts := range riding {
		if !ts.IsRiding() {
			continue
		}
		if err := svc.Broadcaster.Broadcast(tracking.TokenRoom(*ts.TrackingToken), tracking.EventLocationUpdate, payload); err != nil {
			svc.Logger.Warn("could not broadcast location to student room", err, map[string]interface{}{"tripId": loc.TripID, "studentId": ts.StudentID})
		}
	}
}

func (svc *service) CurrentLocation(ctx context.Context, tripID string) (Location, error) {
	if _, err := svc.Repo.GetTrip(ctx, tripID); err != nil {
		return Location{}, err
	}
	return svc.Repo.GetLatestLocation(ctx, tripID)
}

// LocationHistory returns the trip's samples in time order, bounded by the filter.
func (svc *service) LocationHistory(ctx context.Context, tripID string, filter LocationFilter) ([]Location, error) {
	if _, err := svc.Repo.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	filter.Limit = cleanLimit(filter.Limit)
	return svc.Repo.QueryLocations(ctx, tripID, filter)
}

// StudentLocationHistory narrows the trip history to the time the student was on the bus.
// It is empty until the student is picked up.
func (svc *service) StudentLocationHistory(ctx context.Context, tripID, studentID string, limit int) ([]Location, error) {
	ts, err := svc.Repo.GetTripStudent(ctx, tripID, studentID)
	if err != nil {
		return nil, err
	}
	if ts.ActualPickupTime == nil {
		return []Location{}, nil
	}
	return svc.Repo.QueryLocations(ctx, tripID, LocationFilter{
		Limit:     cleanLimit(limit),
		StartTime: ts.ActualPickupTime,
		EndTime:   ts.ActualDropoffTime,
	})
}

func cleanLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
