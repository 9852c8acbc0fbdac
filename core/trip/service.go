package trip

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
	"github.com/trezcool/shulebus/core/notify"
	"github.com/trezcool/shulebus/core/route"
	"github.com/trezcool/shulebus/core/student"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("Trip not found")
	ErrNotAssigned     = core.NewNotFoundError("Student is not assigned to this trip")
	ErrAlreadyAssigned = core.NewConflictError("Student is already assigned to this trip")
	ErrNoLocation      = core.NewNotFoundError("No location data found for this trip")
)

type (
	Repository interface {
		CreateTrip(ctx context.Context, t Trip, exec ...core.DBExecutor) (Trip, error)
		GetTrip(ctx context.Context, id string, exec ...core.DBExecutor) (Trip, error)
		// QueryTrips orders by trip date, newest first.
		QueryTrips(ctx context.Context, filter QueryFilter, page core.Page, exec ...core.DBExecutor) ([]Trip, int, error)
		// QueryActiveTrips returns active trips that are SCHEDULED or IN_PROGRESS.
		QueryActiveTrips(ctx context.Context, filter ActiveFilter, exec ...core.DBExecutor) ([]Trip, error)
		UpdateTrip(ctx context.Context, t Trip, exec ...core.DBExecutor) (Trip, error)
		DeleteTrip(ctx context.Context, id string, exec ...core.DBExecutor) error

		// CreateTripStudent fails with ErrAlreadyAssigned when the student is already on the trip.
		CreateTripStudent(ctx context.Context, ts TripStudent, exec ...core.DBExecutor) (TripStudent, error)
		GetTripStudent(ctx context.Context, tripID, studentID string, exec ...core.DBExecutor) (TripStudent, error)
		// LockTripStudent reads the roster entry and holds it until exec's transaction ends.
		LockTripStudent(ctx context.Context, tripID, studentID string, exec ...core.DBExecutor) (TripStudent, error)
		QueryTripStudents(ctx context.Context, tripID string, exec ...core.DBExecutor) ([]TripStudent, error)
		// QueryRidingStudents returns the entries that are picked up, not dropped off and hold a tracking token.
		QueryRidingStudents(ctx context.Context, tripID string, exec ...core.DBExecutor) ([]TripStudent, error)
		UpdateTripStudent(ctx context.Context, ts TripStudent, exec ...core.DBExecutor) (TripStudent, error)
		DeleteTripStudent(ctx context.Context, tripID, studentID string, exec ...core.DBExecutor) error

		CreateRfidEvent(ctx context.Context, e RfidEvent, exec ...core.DBExecutor) (RfidEvent, error)
		// QueryRfidEvents orders by scan time, newest first.
		QueryRfidEvents(ctx context.Context, filter EventFilter, exec ...core.DBExecutor) ([]RfidEvent, error)

		CreateLocation(ctx context.Context, loc Location, exec ...core.DBExecutor) (Location, error)
		// GetLatestLocation fails with ErrNoLocation when the trip has no samples.
		GetLatestLocation(ctx context.Context, tripID string, exec ...core.DBExecutor) (Location, error)
		// QueryLocations orders by timestamp, oldest first.
		QueryLocations(ctx context.Context, tripID string, filter LocationFilter, exec ...core.DBExecutor) ([]Location, error)
	}

	// Notifier sends the first-pickup notice.
	Notifier interface {
		NotifyPickup(ctx context.Context, p notify.Pickup)
	}

	// Broadcaster fans messages out to tracking rooms.
	Broadcaster interface {
		Broadcast(room, event string, payload interface{}) error
	}

	// LocationArchive keeps a secondary copy of GPS samples.
	LocationArchive interface {
		ArchiveLocation(ctx context.Context, loc Location) error
	}

	Service interface {
		Create(ctx context.Context, nt NewTrip) (Trip, error)
		Get(ctx context.Context, id string) (Trip, error)
		Query(ctx context.Context, filter QueryFilter, page core.Page) ([]Trip, core.Pagination, error)
		QueryByMinder(ctx context.Context, minderID string, filter QueryFilter, page core.Page) ([]Trip, core.Pagination, error)
		QueryActive(ctx context.Context, filter ActiveFilter) ([]Trip, error)
		Update(ctx context.Context, id string, patch UpdateTrip) (Trip, error)
		Delete(ctx context.Context, id string) error

		AddStudent(ctx context.Context, tripID, studentID string) (TripStudent, error)
		UpdateStudent(ctx context.Context, tripID, studentID string, us UpdateStudent) (TripStudent, error)
		RemoveStudent(ctx context.Context, tripID, studentID string) error
		Students(ctx context.Context, tripID string) ([]TripStudent, error)

		LogEvent(ctx context.Context, tripID string, scan Scan) (ScanResult, error)
		LogEventByTag(ctx context.Context, tripID string, scan Scan) (ScanResult, error)
		LogEventsBulk(ctx context.Context, tripID string, bulk BulkScan) ([]BulkScanResult, error)
		QueryEvents(ctx context.Context, filter EventFilter) ([]RfidEvent, error)

		UpdateLocation(ctx context.Context, tripID string, nl NewLocation) (Location, error)
		CurrentLocation(ctx context.Context, tripID string) (Location, error)
		LocationHistory(ctx context.Context, tripID string, filter LocationFilter) ([]Location, error)
		StudentLocationHistory(ctx context.Context, tripID, studentID string, limit int) ([]Location, error)
	}

	// Deps are the collaborators of the trip service.
	Deps struct {
		Tx          core.Transactor
		Repo        Repository
		Routes      route.Repository
		StudentRepo student.Repository
		Addresses   address.Repository
		Notifier    Notifier
		Broadcaster Broadcaster
		Archive     LocationArchive // optional
		Logger      core.Logger
	}

	service struct {
		Deps

		now      func() time.Time
		newToken func() (string, error)
		// spawn runs work detached from the request
		spawn func(fn func())
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return newService(deps)
}

func newService(deps Deps) *service {
	if deps.Logger == nil {
		deps.Logger = core.NopLogger{}
	}
	return &service{
		Deps:     deps,
		now:      time.Now,
		newToken: NewTrackingToken,
		spawn:    func(fn func()) { go fn() },
	}
}

// InitValidators registers the trip validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, "tripstatus", Statuses...)
	core.RegisterEnumValidation(validate, translator, "pickupstatus", PickupStatuses...)
	core.RegisterEnumValidation(validate, translator, "dropoffstatus", DropoffStatuses...)
	core.RegisterEnumValidation(validate, translator, "eventtype", EventTypes...)
}

// Create derives the scheduled start time from the route's trip type when it is not given,
// and snapshots every listed student's pickup point into the roster.
func (svc *service) Create(ctx context.Context, nt NewTrip) (Trip, error) {
	rte, err := svc.Routes.GetRoute(ctx, nt.RouteID)
	if err != nil {
		return Trip{}, err
	}

	now := svc.now().UTC()
	t := Trip{
		RouteID:          rte.ID,
		BusID:            core.StringPtr(nt.BusID),
		DriverID:         core.StringPtr(nt.DriverID),
		MinderID:         core.StringPtr(nt.MinderID),
		TripDate:         nt.TripDate,
		ScheduledEndTime: nt.ScheduledEndTime,
		Status:           StatusInProgress,
		Notes:            nt.Notes,
		StartLocation:    core.StringPtr(nt.StartLocation),
		EndLocation:      core.StringPtr(nt.EndLocation),
		StartGPS:         core.StringPtr(nt.StartGPS),
		EndGPS:           core.StringPtr(nt.EndGPS),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if nt.ScheduledStartTime != nil {
		t.ScheduledStartTime = *nt.ScheduledStartTime
	} else {
		t.ScheduledStartTime = DefaultStartTime(rte.TripType, nt.TripDate, svc.now())
	}
	if nt.Status != "" {
		t.Status = nt.Status
	}
	if nt.IsActive != nil {
		t.IsActive = *nt.IsActive
	}

	err = svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if t, err = svc.Repo.CreateTrip(ctx, t, exec); err != nil {
			return errors.Wrap(err, "creating trip")
		}

		t.Students = make([]TripStudent, 0, len(nt.Students))
		seen := make(map[string]bool, len(nt.Students))
		for _, ns := range nt.Students {
			if seen[ns.StudentID] {
				continue
			}
			seen[ns.StudentID] = true

			ts, err := svc.assign(ctx, t.ID, ns.StudentID, exec)
			if err != nil {
				return err
			}
			t.Students = append(t.Students, ts)
		}
		return nil
	})
	if err != nil {
		return Trip{}, err
	}

	svc.Logger.Info("trip created", map[string]interface{}{"tripId": t.ID, "routeId": t.RouteID, "students": len(t.Students)})
	return t, nil
}

// assign adds a student to the roster with the pickup and dropoff points of their parent's primary address.
func (svc *service) assign(ctx context.Context, tripID, studentID string, exec core.DBExecutor) (TripStudent, error) {
	stu, err := svc.StudentRepo.GetStudent(ctx, studentID, exec)
	if err != nil {
		return TripStudent{}, err
	}

	now := svc.now().UTC()
	ts := TripStudent{
		TripID:        tripID,
		StudentID:     stu.ID,
		PickupStatus:  NotPickedUp,
		DropoffStatus: NotDroppedOff,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	addr, err := svc.Addresses.GetPrimaryAddress(ctx, stu.ParentID, exec)
	switch {
	case err == nil:
		ts.PickupLocation = core.StringPtr(addr.Location)
		ts.DropoffLocation = core.StringPtr(addr.Location)
		if gps := addr.GPS(); gps != nil {
			pickup, dropoff := *gps, *gps
			ts.PickupGPS, ts.DropoffGPS = &pickup, &dropoff
		}
	case core.IsNotFound(err):
		svc.Logger.Debug("parent has no primary address", map[string]interface{}{"studentId": stu.ID, "parentId": stu.ParentID})
	default:
		return TripStudent{}, errors.Wrap(err, "getting primary address")
	}

	return svc.Repo.CreateTripStudent(ctx, ts, exec)
}

func (svc *service) Get(ctx context.Context, id string) (Trip, error) {
	t, err := svc.Repo.GetTrip(ctx, id)
	if err != nil {
		return Trip{}, err
	}
	if t.Students, err = svc.Repo.QueryTripStudents(ctx, id); err != nil {
		return Trip{}, errors.Wrap(err, "querying trip students")
	}
	return t, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Page) ([]Trip, core.Pagination, error) {
	page.Clean()
	if filter.TripDate != nil {
		filter.TripDateFrom, filter.TripDateTo = dayRange(*filter.TripDate)
	}
	trips, total, err := svc.Repo.QueryTrips(ctx, filter, page)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	return trips, core.NewPagination(page, total), nil
}

func (svc *service) QueryByMinder(ctx context.Context, minderID string, filter QueryFilter, page core.Page) ([]Trip, core.Pagination, error) {
	filter.MinderID = minderID
	return svc.Query(ctx, filter, page)
}

func (svc *service) QueryActive(ctx context.Context, filter ActiveFilter) ([]Trip, error) {
	return svc.Repo.QueryActiveTrips(ctx, filter)
}

func (svc *service) Update(ctx context.Context, id string, patch UpdateTrip) (Trip, error) {
	var t Trip
	err := svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.Repo.GetTrip(ctx, id, exec)
		if err != nil {
			return err
		}
		if patch.RouteID != nil && *patch.RouteID != orig.RouteID {
			if _, err = svc.Routes.GetRoute(ctx, *patch.RouteID, exec); err != nil {
				return err
			}
		}

		t = patch.apply(orig, svc.now())
		t.UpdatedAt = svc.now().UTC()
		t, err = svc.Repo.UpdateTrip(ctx, t, exec)
		return errors.Wrap(err, "updating trip")
	})
	if err != nil {
		return Trip{}, err
	}
	return t, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if err := svc.Repo.DeleteTrip(ctx, id); err != nil {
		return errors.Wrap(err, "deleting trip")
	}
	svc.Logger.Info("trip deleted", map[string]interface{}{"tripId": id})
	return nil
}

func (svc *service) AddStudent(ctx context.Context, tripID, studentID string) (TripStudent, error) {
	var ts TripStudent
	err := svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.Repo.GetTrip(ctx, tripID, exec); err != nil {
			return err
		}
		_, err := svc.Repo.GetTripStudent(ctx, tripID, studentID, exec)
		switch {
		case err == nil:
			return ErrAlreadyAssigned
		case !core.IsNotFound(err):
			return err
		}
		ts, err = svc.assign(ctx, tripID, studentID, exec)
		return err
	})
	if err != nil {
		return TripStudent{}, err
	}
	return ts, nil
}

// UpdateStudent writes only the fields present in the patch.
func (svc *service) UpdateStudent(ctx context.Context, tripID, studentID string, us UpdateStudent) (TripStudent, error) {
	var ts TripStudent
	err := svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.Repo.LockTripStudent(ctx, tripID, studentID, exec)
		if err != nil {
			return err
		}
		ts = us.apply(orig)
		ts.UpdatedAt = svc.now().UTC()
		ts, err = svc.Repo.UpdateTripStudent(ctx, ts, exec)
		return errors.Wrap(err, "updating trip student")
	})
	if err != nil {
		return TripStudent{}, err
	}
	return ts, nil
}

func (svc *service) RemoveStudent(ctx context.Context, tripID, studentID string) error {
	return svc.Repo.DeleteTripStudent(ctx, tripID, studentID)
}

func (svc *service) Students(ctx context.Context, tripID string) ([]TripStudent, error) {
	if _, err := svc.Repo.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return svc.Repo.QueryTripStudents(ctx, tripID)
}
