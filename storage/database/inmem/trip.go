package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/trip"
)

type tripRepository struct {
	db *DB
}

var _ trip.Repository = (*tripRepository)(nil)

func NewTripRepository(db *DB) trip.Repository {
	return &tripRepository{db: db}
}

func (repo *tripRepository) CreateTrip(_ context.Context, t trip.Trip, _ ...core.DBExecutor) (trip.Trip, error) {
	repo.db.trip.Lock()
	defer repo.db.trip.Unlock()

	t.ID = newID()
	t.Students = nil
	repo.db.trip.table[t.ID] = &t
	return t, nil
}

func (repo *tripRepository) GetTrip(_ context.Context, id string, _ ...core.DBExecutor) (trip.Trip, error) {
	repo.db.trip.RLock()
	defer repo.db.trip.RUnlock()

	if t, ok := repo.db.trip.table[id]; ok {
		return *t, nil
	}
	return trip.Trip{}, trip.ErrNotFound
}

func (repo *tripRepository) trips(match func(t trip.Trip) bool) []trip.Trip {
	repo.db.trip.RLock()
	defer repo.db.trip.RUnlock()

	trips := make([]trip.Trip, 0)
	for _, t := range repo.db.trip.table {
		if match(*t) {
			trips = append(trips, *t)
		}
	}
	sort.Slice(trips, func(i, j int) bool {
		if trips[i].TripDate.Equal(trips[j].TripDate) {
			return trips[i].CreatedAt.After(trips[j].CreatedAt)
		}
		return trips[i].TripDate.After(trips[j].TripDate)
	})
	return trips
}

func (repo *tripRepository) QueryTrips(_ context.Context, filter trip.QueryFilter, page core.Page, _ ...core.DBExecutor) ([]trip.Trip, int, error) {
	trips := repo.trips(func(t trip.Trip) bool {
		if filter.RouteID != "" && t.RouteID != filter.RouteID {
			return false
		}
		if filter.Status != "" && t.Status != filter.Status {
			return false
		}
		if filter.MinderID != "" && (t.MinderID == nil || *t.MinderID != filter.MinderID) {
			return false
		}
		if !filter.TripDateFrom.IsZero() && t.TripDate.Before(filter.TripDateFrom) {
			return false
		}
		if !filter.TripDateTo.IsZero() && t.TripDate.After(filter.TripDateTo) {
			return false
		}
		return true
	})
	return paginate(trips, page), len(trips), nil
}

func (repo *tripRepository) QueryActiveTrips(_ context.Context, filter trip.ActiveFilter, _ ...core.DBExecutor) ([]trip.Trip, error) {
	return repo.trips(func(t trip.Trip) bool {
		if !t.IsActive || (t.Status != trip.StatusScheduled && t.Status != trip.StatusInProgress) {
			return false
		}
		if filter.DriverID != "" && (t.DriverID == nil || *t.DriverID != filter.DriverID) {
			return false
		}
		if filter.MinderID != "" && (t.MinderID == nil || *t.MinderID != filter.MinderID) {
			return false
		}
		return true
	}), nil
}

func (repo *tripRepository) UpdateTrip(_ context.Context, t trip.Trip, _ ...core.DBExecutor) (trip.Trip, error) {
	repo.db.trip.Lock()
	defer repo.db.trip.Unlock()

	if _, ok := repo.db.trip.table[t.ID]; !ok {
		return trip.Trip{}, trip.ErrNotFound
	}
	t.Students = nil
	repo.db.trip.table[t.ID] = &t
	return t, nil
}

// DeleteTrip also removes the trip's roster, events and locations.
func (repo *tripRepository) DeleteTrip(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.trip.Lock()
	if _, ok := repo.db.trip.table[id]; !ok {
		repo.db.trip.Unlock()
		return trip.ErrNotFound
	}
	delete(repo.db.trip.table, id)
	repo.db.trip.Unlock()

	repo.db.tripStudent.Lock()
	for key, ts := range repo.db.tripStudent.table {
		if ts.TripID == id {
			delete(repo.db.tripStudent.table, key)
		}
	}
	repo.db.tripStudent.Unlock()

	repo.db.rfidEvent.Lock()
	events := repo.db.rfidEvent.rows[:0]
	for _, e := range repo.db.rfidEvent.rows {
		if e.TripID != id {
			events = append(events, e)
		}
	}
	repo.db.rfidEvent.rows = events
	repo.db.rfidEvent.Unlock()

	repo.db.location.Lock()
	locs := repo.db.location.rows[:0]
	for _, l := range repo.db.location.rows {
		if l.TripID != id {
			locs = append(locs, l)
		}
	}
	repo.db.location.rows = locs
	repo.db.location.Unlock()
	return nil
}

func rosterKey(tripID, studentID string) string {
	return tripID + "/" + studentID
}

func (repo *tripRepository) CreateTripStudent(_ context.Context, ts trip.TripStudent, _ ...core.DBExecutor) (trip.TripStudent, error) {
	repo.db.tripStudent.Lock()
	defer repo.db.tripStudent.Unlock()

	key := rosterKey(ts.TripID, ts.StudentID)
	if _, ok := repo.db.tripStudent.table[key]; ok {
		return trip.TripStudent{}, trip.ErrAlreadyAssigned
	}
	ts.ID = newID()
	repo.db.tripStudent.table[key] = &ts
	return ts, nil
}

func (repo *tripRepository) GetTripStudent(_ context.Context, tripID, studentID string, _ ...core.DBExecutor) (trip.TripStudent, error) {
	repo.db.tripStudent.RLock()
	defer repo.db.tripStudent.RUnlock()

	if ts, ok := repo.db.tripStudent.table[rosterKey(tripID, studentID)]; ok {
		return *ts, nil
	}
	return trip.TripStudent{}, trip.ErrNotAssigned
}

// LockTripStudent relies on DB.InTx holding the transaction lock.
func (repo *tripRepository) LockTripStudent(ctx context.Context, tripID, studentID string, exec ...core.DBExecutor) (trip.TripStudent, error) {
	return repo.GetTripStudent(ctx, tripID, studentID, exec...)
}

func (repo *tripRepository) roster(tripID string, match func(ts trip.TripStudent) bool) []trip.TripStudent {
	repo.db.tripStudent.RLock()
	defer repo.db.tripStudent.RUnlock()

	roster := make([]trip.TripStudent, 0)
	for _, ts := range repo.db.tripStudent.table {
		if ts.TripID == tripID && match(*ts) {
			roster = append(roster, *ts)
		}
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].CreatedAt.Before(roster[j].CreatedAt) })
	return roster
}

func (repo *tripRepository) QueryTripStudents(_ context.Context, tripID string, _ ...core.DBExecutor) ([]trip.TripStudent, error) {
	return repo.roster(tripID, func(trip.TripStudent) bool { return true }), nil
}

func (repo *tripRepository) QueryRidingStudents(_ context.Context, tripID string, _ ...core.DBExecutor) ([]trip.TripStudent, error) {
	return repo.roster(tripID, trip.TripStudent.IsRiding), nil
}

func (repo *tripRepository) UpdateTripStudent(_ context.Context, ts trip.TripStudent, _ ...core.DBExecutor) (trip.TripStudent, error) {
	repo.db.tripStudent.Lock()
	defer repo.db.tripStudent.Unlock()

	key := rosterKey(ts.TripID, ts.StudentID)
	if _, ok := repo.db.tripStudent.table[key]; !ok {
		return trip.TripStudent{}, trip.ErrNotAssigned
	}
	repo.db.tripStudent.table[key] = &ts
	return ts, nil
}

func (repo *tripRepository) DeleteTripStudent(_ context.Context, tripID, studentID string, _ ...core.DBExecutor) error {
	repo.db.tripStudent.Lock()
	defer repo.db.tripStudent.Unlock()

	key := rosterKey(tripID, studentID)
	if _, ok := repo.db.tripStudent.table[key]; !ok {
		return trip.ErrNotAssigned
	}
	delete(repo.db.tripStudent.table, key)
	return nil
}

func (repo *tripRepository) CreateRfidEvent(_ context.Context, e trip.RfidEvent, _ ...core.DBExecutor) (trip.RfidEvent, error) {
	repo.db.rfidEvent.Lock()
	defer repo.db.rfidEvent.Unlock()

	e.ID = newID()
	repo.db.rfidEvent.rows = append(repo.db.rfidEvent.rows, e)
	return e, nil
}

func (repo *tripRepository) QueryRfidEvents(_ context.Context, filter trip.EventFilter, _ ...core.DBExecutor) ([]trip.RfidEvent, error) {
	repo.db.rfidEvent.RLock()
	defer repo.db.rfidEvent.RUnlock()

	events := make([]trip.RfidEvent, 0)
	for _, e := range repo.db.rfidEvent.rows {
		if filter.TripID != "" && e.TripID != filter.TripID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.StartDate != nil && e.ScannedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && e.ScannedAt.After(*filter.EndDate) {
			continue
		}
		events = append(events, e)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].ScannedAt.After(events[j].ScannedAt) })
	return events, nil
}

func (repo *tripRepository) CreateLocation(_ context.Context, loc trip.Location, _ ...core.DBExecutor) (trip.Location, error) {
	repo.db.location.Lock()
	defer repo.db.location.Unlock()

	loc.ID = newID()
	repo.db.location.rows = append(repo.db.location.rows, loc)
	return loc, nil
}

func (repo *tripRepository) GetLatestLocation(_ context.Context, tripID string, _ ...core.DBExecutor) (trip.Location, error) {
	repo.db.location.RLock()
	defer repo.db.location.RUnlock()

	var (
		latest trip.Location
		found  bool
	)
	for _, l := range repo.db.location.rows {
		if l.TripID == tripID && (!found || !l.Timestamp.Before(latest.Timestamp)) {
			latest, found = l, true
		}
	}
	if !found {
		return trip.Location{}, trip.ErrNoLocation
	}
	return latest, nil
}

func (repo *tripRepository) QueryLocations(_ context.Context, tripID string, filter trip.LocationFilter, _ ...core.DBExecutor) ([]trip.Location, error) {
	repo.db.location.RLock()
	defer repo.db.location.RUnlock()

	locs := make([]trip.Location, 0)
	for _, l := range repo.db.location.rows {
		if l.TripID != tripID {
			continue
		}
		if filter.StartTime != nil && l.Timestamp.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && l.Timestamp.After(*filter.EndTime) {
			continue
		}
		locs = append(locs, l)
	}
	sort.SliceStable(locs, func(i, j int) bool { return locs[i].Timestamp.Before(locs[j].Timestamp) })
	if filter.Limit > 0 && len(locs) > filter.Limit {
		locs = locs[:filter.Limit]
	}
	return locs, nil
}
