// Package inmemdb is a process-local store backing the service and API tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
	"github.com/trezcool/shulebus/core/route"
	"github.com/trezcool/shulebus/core/student"
	"github.com/trezcool/shulebus/core/trip"
)

type (
	DB struct {
		// txMu serializes transactions; repositories ignore the executor they are given.
		txMu sync.Mutex

		trip        *tripTable
		tripStudent *tripStudentTable
		rfidEvent   *rfidEventTable
		location    *locationTable
		route       *routeTable
		student     *studentTable
		parent      *parentTable
		address     *addressTable
	}

	tripTable struct {
		sync.RWMutex
		table map[string]*trip.Trip
	}

	tripStudentTable struct {
		sync.RWMutex
		table map[string]*trip.TripStudent
	}

	rfidEventTable struct {
		sync.RWMutex
		rows []trip.RfidEvent
	}

	locationTable struct {
		sync.RWMutex
		rows []trip.Location
	}

	routeTable struct {
		sync.RWMutex
		table map[string]*route.Route
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	parentTable struct {
		sync.RWMutex
		table map[string]*student.Parent
	}

	addressTable struct {
		sync.RWMutex
		table map[string]*address.Address
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{
		trip:        &tripTable{table: make(map[string]*trip.Trip)},
		tripStudent: &tripStudentTable{table: make(map[string]*trip.TripStudent)},
		rfidEvent:   &rfidEventTable{},
		location:    &locationTable{},
		route:       &routeTable{table: make(map[string]*route.Route)},
		student:     &studentTable{table: make(map[string]*student.Student)},
		parent:      &parentTable{table: make(map[string]*student.Parent)},
		address:     &addressTable{table: make(map[string]*address.Address)},
	}
}

// InTx runs fn while holding the store's transaction lock.
// When fn fails every table is restored to its state before the call,
// discarding writes made outside a transaction in the meantime too.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	if err := fn(nil); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *DB) snapshot() *DB {
	snap := &DB{}

	db.trip.RLock()
	snap.trip = &tripTable{table: cloneTable(db.trip.table)}
	db.trip.RUnlock()

	db.tripStudent.RLock()
	snap.tripStudent = &tripStudentTable{table: cloneTable(db.tripStudent.table)}
	db.tripStudent.RUnlock()

	db.rfidEvent.RLock()
	snap.rfidEvent = &rfidEventTable{rows: append([]trip.RfidEvent(nil), db.rfidEvent.rows...)}
	db.rfidEvent.RUnlock()

	db.location.RLock()
	snap.location = &locationTable{rows: append([]trip.Location(nil), db.location.rows...)}
	db.location.RUnlock()

	db.route.RLock()
	snap.route = &routeTable{table: cloneTable(db.route.table)}
	db.route.RUnlock()

	db.student.RLock()
	snap.student = &studentTable{table: cloneTable(db.student.table)}
	db.student.RUnlock()

	db.parent.RLock()
	snap.parent = &parentTable{table: cloneTable(db.parent.table)}
	db.parent.RUnlock()

	db.address.RLock()
	snap.address = &addressTable{table: cloneTable(db.address.table)}
	db.address.RUnlock()

	return snap
}

func (db *DB) restore(snap *DB) {
	db.trip.Lock()
	db.trip.table = snap.trip.table
	db.trip.Unlock()

	db.tripStudent.Lock()
	db.tripStudent.table = snap.tripStudent.table
	db.tripStudent.Unlock()

	db.rfidEvent.Lock()
	db.rfidEvent.rows = snap.rfidEvent.rows
	db.rfidEvent.Unlock()

	db.location.Lock()
	db.location.rows = snap.location.rows
	db.location.Unlock()

	db.route.Lock()
	db.route.table = snap.route.table
	db.route.Unlock()

	db.student.Lock()
	db.student.table = snap.student.table
	db.student.Unlock()

	db.parent.Lock()
	db.parent.table = snap.parent.table
	db.parent.Unlock()

	db.address.Lock()
	db.address.table = snap.address.table
	db.address.Unlock()
}

// Counts reports the number of stored RFID events and locations.
func (db *DB) Counts() (events, locations int) {
	db.rfidEvent.RLock()
	events = len(db.rfidEvent.rows)
	db.rfidEvent.RUnlock()

	db.location.RLock()
	locations = len(db.location.rows)
	db.location.RUnlock()
	return
}

func newID() string {
	return uuid.New().String()
}

func paginate[T any](items []T, page core.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// cloneTable copies the rows so that in-place updates do not leak into the clone.
func cloneTable[T any](table map[string]*T) map[string]*T {
	c := make(map[string]*T, len(table))
	for k, v := range table {
		row := *v
		c[k] = &row
	}
	return c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
