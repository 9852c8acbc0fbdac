package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/trip"
)

const (
	tripColumns = `id, route_id, bus_id, driver_id, minder_id, trip_date, scheduled_start_time, scheduled_end_time,
		actual_start_time, actual_end_time, status, notes, start_location, end_location, start_gps, end_gps,
		is_active, created_at, updated_at`
	tripStudentColumns = `id, trip_id, student_id, pickup_status, dropoff_status, actual_pickup_time, actual_dropoff_time,
		pickup_location, dropoff_location, pickup_gps, dropoff_gps, tracking_token, notes, created_at, updated_at`
	rfidEventColumns = `id, trip_id, trip_student_id, student_id, event_type, rfid_tag_id, device_id, device_location,
		gps_coordinates, scanned_at, notes, created_at`
	locationColumns = `id, trip_id, latitude, longitude, speed, heading, accuracy, timestamp`
)

type (
	tripRow struct {
		ID                 string      `db:"id"`
		RouteID            string      `db:"route_id"`
		BusID              null.String `db:"bus_id"`
		DriverID           null.String `db:"driver_id"`
		MinderID           null.String `db:"minder_id"`
		TripDate           time.Time   `db:"trip_date"`
		ScheduledStartTime time.Time   `db:"scheduled_start_time"`
		ScheduledEndTime   null.Time   `db:"scheduled_end_time"`
		ActualStartTime    null.Time   `db:"actual_start_time"`
		ActualEndTime      null.Time   `db:"actual_end_time"`
		Status             string      `db:"status"`
		Notes              string      `db:"notes"`
		StartLocation      null.String `db:"start_location"`
		EndLocation        null.String `db:"end_location"`
		StartGPS           null.String `db:"start_gps"`
		EndGPS             null.String `db:"end_gps"`
		IsActive           bool        `db:"is_active"`
		CreatedAt          time.Time   `db:"created_at"`
		UpdatedAt          time.Time   `db:"updated_at"`
	}

	tripStudentRow struct {
		ID                string      `db:"id"`
		TripID            string      `db:"trip_id"`
		StudentID         string      `db:"student_id"`
		PickupStatus      string      `db:"pickup_status"`
		DropoffStatus     string      `db:"dropoff_status"`
		ActualPickupTime  null.Time   `db:"actual_pickup_time"`
		ActualDropoffTime null.Time   `db:"actual_dropoff_time"`
		PickupLocation    null.String `db:"pickup_location"`
		DropoffLocation   null.String `db:"dropoff_location"`
		PickupGPS         null.String `db:"pickup_gps"`
		DropoffGPS        null.String `db:"dropoff_gps"`
		TrackingToken     null.String `db:"tracking_token"`
		Notes             string      `db:"notes"`
		CreatedAt         time.Time   `db:"created_at"`
		UpdatedAt         time.Time   `db:"updated_at"`
	}

	rfidEventRow struct {
		ID             string      `db:"id"`
		TripID         string      `db:"trip_id"`
		TripStudentID  string      `db:"trip_student_id"`
		StudentID      string      `db:"student_id"`
		EventType      string      `db:"event_type"`
		RFIDTagID      string      `db:"rfid_tag_id"`
		DeviceID       null.String `db:"device_id"`
		DeviceLocation null.String `db:"device_location"`
		GPSCoordinates null.String `db:"gps_coordinates"`
		ScannedAt      time.Time   `db:"scanned_at"`
		Notes          null.String `db:"notes"`
		CreatedAt      time.Time   `db:"created_at"`
	}

	locationRow struct {
		ID        string       `db:"id"`
		TripID    string       `db:"trip_id"`
		Latitude  float64      `db:"latitude"`
		Longitude float64      `db:"longitude"`
		Speed     null.Float64 `db:"speed"`
		Heading   null.Float64 `db:"heading"`
		Accuracy  null.Float64 `db:"accuracy"`
		Timestamp time.Time    `db:"timestamp"`
	}
)

func boilTrip(t trip.Trip) tripRow {
	return tripRow{
		ID:                 t.ID,
		RouteID:            t.RouteID,
		BusID:              null.StringFromPtr(t.BusID),
		DriverID:           null.StringFromPtr(t.DriverID),
		MinderID:           null.StringFromPtr(t.MinderID),
		TripDate:           t.TripDate,
		ScheduledStartTime: t.ScheduledStartTime,
		ScheduledEndTime:   null.TimeFromPtr(t.ScheduledEndTime),
		ActualStartTime:    null.TimeFromPtr(t.ActualStartTime),
		ActualEndTime:      null.TimeFromPtr(t.ActualEndTime),
		Status:             string(t.Status),
		Notes:              t.Notes,
		StartLocation:      null.StringFromPtr(t.StartLocation),
		EndLocation:        null.StringFromPtr(t.EndLocation),
		StartGPS:           null.StringFromPtr(t.StartGPS),
		EndGPS:             null.StringFromPtr(t.EndGPS),
		IsActive:           t.IsActive,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func (row tripRow) unboil() trip.Trip {
	return trip.Trip{
		ID:                 row.ID,
		RouteID:            row.RouteID,
		BusID:              row.BusID.Ptr(),
		DriverID:           row.DriverID.Ptr(),
		MinderID:           row.MinderID.Ptr(),
		TripDate:           row.TripDate.UTC(),
		ScheduledStartTime: row.ScheduledStartTime.UTC(),
		ScheduledEndTime:   utcPtr(row.ScheduledEndTime),
		ActualStartTime:    utcPtr(row.ActualStartTime),
		ActualEndTime:      utcPtr(row.ActualEndTime),
		Status:             trip.Status(row.Status),
		Notes:              row.Notes,
		StartLocation:      row.StartLocation.Ptr(),
		EndLocation:        row.EndLocation.Ptr(),
		StartGPS:           row.StartGPS.Ptr(),
		EndGPS:             row.EndGPS.Ptr(),
		IsActive:           row.IsActive,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
	}
}

func boilTripStudent(ts trip.TripStudent) tripStudentRow {
	return tripStudentRow{
		ID:                ts.ID,
		TripID:            ts.TripID,
		StudentID:         ts.StudentID,
		PickupStatus:      string(ts.PickupStatus),
		DropoffStatus:     string(ts.DropoffStatus),
		ActualPickupTime:  null.TimeFromPtr(ts.ActualPickupTime),
		ActualDropoffTime: null.TimeFromPtr(ts.ActualDropoffTime),
		PickupLocation:    null.StringFromPtr(ts.PickupLocation),
		DropoffLocation:   null.StringFromPtr(ts.DropoffLocation),
		PickupGPS:         null.StringFromPtr(ts.PickupGPS),
		DropoffGPS:        null.StringFromPtr(ts.DropoffGPS),
		TrackingToken:     null.StringFromPtr(ts.TrackingToken),
		Notes:             ts.Notes,
		CreatedAt:         ts.CreatedAt,
		UpdatedAt:         ts.UpdatedAt,
	}
}

func (row tripStudentRow) unboil() trip.TripStudent {
	return trip.TripStudent{
		ID:                row.ID,
		TripID:            row.TripID,
		StudentID:         row.StudentID,
		PickupStatus:      trip.PickupStatus(row.PickupStatus),
		DropoffStatus:     trip.DropoffStatus(row.DropoffStatus),
		ActualPickupTime:  utcPtr(row.ActualPickupTime),
		ActualDropoffTime: utcPtr(row.ActualDropoffTime),
		PickupLocation:    row.PickupLocation.Ptr(),
		DropoffLocation:   row.DropoffLocation.Ptr(),
		PickupGPS:         row.PickupGPS.Ptr(),
		DropoffGPS:        row.DropoffGPS.Ptr(),
		TrackingToken:     row.TrackingToken.Ptr(),
		Notes:             row.Notes,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

func boilRfidEvent(e trip.RfidEvent) rfidEventRow {
	return rfidEventRow{
		ID:             e.ID,
		TripID:         e.TripID,
		TripStudentID:  e.TripStudentID,
		StudentID:      e.StudentID,
		EventType:      string(e.EventType),
		RFIDTagID:      e.RFIDTagID,
		DeviceID:       null.StringFromPtr(e.DeviceID),
		DeviceLocation: null.StringFromPtr(e.DeviceLocation),
		GPSCoordinates: null.StringFromPtr(e.GPSCoordinates),
		ScannedAt:      e.ScannedAt,
		Notes:          null.StringFromPtr(e.Notes),
		CreatedAt:      e.CreatedAt,
	}
}

func (row rfidEventRow) unboil() trip.RfidEvent {
	return trip.RfidEvent{
		ID:             row.ID,
		TripID:         row.TripID,
		TripStudentID:  row.TripStudentID,
		StudentID:      row.StudentID,
		EventType:      trip.EventType(row.EventType),
		RFIDTagID:      row.RFIDTagID,
		DeviceID:       row.DeviceID.Ptr(),
		DeviceLocation: row.DeviceLocation.Ptr(),
		GPSCoordinates: row.GPSCoordinates.Ptr(),
		ScannedAt:      row.ScannedAt.UTC(),
		Notes:          row.Notes.Ptr(),
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

func boilLocation(loc trip.Location) locationRow {
	return locationRow{
		ID:        loc.ID,
		TripID:    loc.TripID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Speed:     null.Float64FromPtr(loc.Speed),
		Heading:   null.Float64FromPtr(loc.Heading),
		Accuracy:  null.Float64FromPtr(loc.Accuracy),
		Timestamp: loc.Timestamp,
	}
}

func (row locationRow) unboil() trip.Location {
	return trip.Location{
		ID:        row.ID,
		TripID:    row.TripID,
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
		Speed:     row.Speed.Ptr(),
		Heading:   row.Heading.Ptr(),
		Accuracy:  row.Accuracy.Ptr(),
		Timestamp: row.Timestamp.UTC(),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// where accumulates AND-ed conditions with positional parameters.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

type TripRepository struct {
	repository
}

var _ trip.Repository = (*TripRepository)(nil)

func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{repository{db: db}}
}

func (repo *TripRepository) CreateTrip(ctx context.Context, t trip.Trip, exec ...core.DBExecutor) (trip.Trip, error) {
	t.ID = uuid.NewString()
	t.Students = nil
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO trips (`+tripColumns+`) VALUES (
		:id, :route_id, :bus_id, :driver_id, :minder_id, :trip_date, :scheduled_start_time, :scheduled_end_time,
		:actual_start_time, :actual_end_time, :status, :notes, :start_location, :end_location, :start_gps, :end_gps,
		:is_active, :created_at, :updated_at)`, boilTrip(t))
	if err != nil {
		return trip.Trip{}, mapErr(err, nil, nil, "inserting trip")
	}
	return t, nil
}

func (repo *TripRepository) GetTrip(ctx context.Context, id string, exec ...core.DBExecutor) (trip.Trip, error) {
	if !validIDs(id) {
		return trip.Trip{}, trip.ErrNotFound
	}
	var row tripRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id); err != nil {
		return trip.Trip{}, mapErr(err, trip.ErrNotFound, nil, "selecting trip")
	}
	return row.unboil(), nil
}

func (repo *TripRepository) selectTrips(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) ([]trip.Trip, error) {
	var rows []tripRow
	if err := sqlx.SelectContext(ctx, ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting trips")
	}
	trips := make([]trip.Trip, 0, len(rows))
	for _, row := range rows {
		trips = append(trips, row.unboil())
	}
	return trips, nil
}

func (repo *TripRepository) QueryTrips(ctx context.Context, filter trip.QueryFilter, page core.Page, exec ...core.DBExecutor) ([]trip.Trip, int, error) {
	ext := repo.getExec(exec)

	var w where
	if filter.RouteID != "" {
		if !validIDs(filter.RouteID) {
			return []trip.Trip{}, 0, nil
		}
		w.add("route_id = ?", filter.RouteID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.MinderID != "" {
		w.add("minder_id = ?", filter.MinderID)
	}
	if !filter.TripDateFrom.IsZero() {
		w.add("trip_date >= ?", filter.TripDateFrom)
	}
	if !filter.TripDateTo.IsZero() {
		w.add("trip_date <= ?", filter.TripDateTo)
	}

	var total int
	if err := sqlx.GetContext(ctx, ext, &total, `SELECT count(*) FROM trips`+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting trips")
	}

	query := `SELECT ` + tripColumns + ` FROM trips` + w.String() +
		` ORDER BY trip_date DESC, created_at DESC` + limitOffset(len(w.args))
	trips, err := repo.selectTrips(ctx, ext, query, append(w.args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return trips, total, nil
}

func (repo *TripRepository) QueryActiveTrips(ctx context.Context, filter trip.ActiveFilter, exec ...core.DBExecutor) ([]trip.Trip, error) {
	var w where
	w.add("is_active = ?", true)
	w.add("status = ANY(?)", activeStatuses())
	if filter.DriverID != "" {
		w.add("driver_id = ?", filter.DriverID)
	}
	if filter.MinderID != "" {
		w.add("minder_id = ?", filter.MinderID)
	}
	query := `SELECT ` + tripColumns + ` FROM trips` + w.String() + ` ORDER BY trip_date DESC, created_at DESC`
	return repo.selectTrips(ctx, repo.getExec(exec), query, w.args...)
}

func activeStatuses() interface{} {
	statuses := make([]string, 0, len(trip.ActiveStatuses))
	for _, s := range trip.ActiveStatuses {
		statuses = append(statuses, string(s))
	}
	return pq.Array(statuses)
}

func (repo *TripRepository) UpdateTrip(ctx context.Context, t trip.Trip, exec ...core.DBExecutor) (trip.Trip, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `UPDATE trips SET
		route_id = :route_id, bus_id = :bus_id, driver_id = :driver_id, minder_id = :minder_id, trip_date = :trip_date,
		scheduled_start_time = :scheduled_start_time, scheduled_end_time = :scheduled_end_time,
		actual_start_time = :actual_start_time, actual_end_time = :actual_end_time, status = :status, notes = :notes,
		start_location = :start_location, end_location = :end_location, start_gps = :start_gps, end_gps = :end_gps,
		is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, boilTrip(t))
	if err != nil {
		return trip.Trip{}, mapErr(err, nil, nil, "updating trip")
	}
	if err = mustAffect(res, trip.ErrNotFound); err != nil {
		return trip.Trip{}, err
	}
	t.Students = nil
	return t, nil
}

// DeleteTrip relies on ON DELETE CASCADE for the roster, events and locations.
func (repo *TripRepository) DeleteTrip(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validIDs(id) {
		return trip.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting trip")
	}
	return mustAffect(res, trip.ErrNotFound)
}

func (repo *TripRepository) CreateTripStudent(ctx context.Context, ts trip.TripStudent, exec ...core.DBExecutor) (trip.TripStudent, error) {
	ts.ID = uuid.NewString()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO trip_students (`+tripStudentColumns+`) VALUES (
		:id, :trip_id, :student_id, :pickup_status, :dropoff_status, :actual_pickup_time, :actual_dropoff_time,
		:pickup_location, :dropoff_location, :pickup_gps, :dropoff_gps, :tracking_token, :notes, :created_at, :updated_at)`,
		boilTripStudent(ts))
	if err != nil {
		return trip.TripStudent{}, mapErr(err, nil, trip.ErrAlreadyAssigned, "inserting trip student")
	}
	return ts, nil
}

func (repo *TripRepository) getTripStudent(ctx context.Context, tripID, studentID, suffix string, exec []core.DBExecutor) (trip.TripStudent, error) {
	if !validIDs(tripID, studentID) {
		return trip.TripStudent{}, trip.ErrNotAssigned
	}
	var row tripStudentRow
	query := `SELECT ` + tripStudentColumns + ` FROM trip_students WHERE trip_id = $1 AND student_id = $2` + suffix
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, query, tripID, studentID); err != nil {
		return trip.TripStudent{}, mapErr(err, trip.ErrNotAssigned, nil, "selecting trip student")
	}
	return row.unboil(), nil
}

func (repo *TripRepository) GetTripStudent(ctx context.Context, tripID, studentID string, exec ...core.DBExecutor) (trip.TripStudent, error) {
	return repo.getTripStudent(ctx, tripID, studentID, "", exec)
}

// LockTripStudent takes a row lock held until the transaction of exec ends.
func (repo *TripRepository) LockTripStudent(ctx context.Context, tripID, studentID string, exec ...core.DBExecutor) (trip.TripStudent, error) {
	return repo.getTripStudent(ctx, tripID, studentID, " FOR UPDATE", exec)
}

func (repo *TripRepository) selectTripStudents(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) ([]trip.TripStudent, error) {
	var rows []tripStudentRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting trip students")
	}
	roster := make([]trip.TripStudent, 0, len(rows))
	for _, row := range rows {
		roster = append(roster, row.unboil())
	}
	return roster, nil
}

func (repo *TripRepository) QueryTripStudents(ctx context.Context, tripID string, exec ...core.DBExecutor) ([]trip.TripStudent, error) {
	if !validIDs(tripID) {
		return []trip.TripStudent{}, nil
	}
	return repo.selectTripStudents(ctx, exec,
		`SELECT `+tripStudentColumns+` FROM trip_students WHERE trip_id = $1 ORDER BY created_at`, tripID)
}

func (repo *TripRepository) QueryRidingStudents(ctx context.Context, tripID string, exec ...core.DBExecutor) ([]trip.TripStudent, error) {
	if !validIDs(tripID) {
		return []trip.TripStudent{}, nil
	}
	return repo.selectTripStudents(ctx, exec, `SELECT `+tripStudentColumns+` FROM trip_students
		WHERE trip_id = $1 AND pickup_status = $2 AND dropoff_status <> $3 AND tracking_token IS NOT NULL
		ORDER BY created_at`, tripID, string(trip.PickedUp), string(trip.DroppedOff))
}

func (repo *TripRepository) UpdateTripStudent(ctx context.Context, ts trip.TripStudent, exec ...core.DBExecutor) (trip.TripStudent, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `UPDATE trip_students SET
		pickup_status = :pickup_status, dropoff_status = :dropoff_status,
		actual_pickup_time = :actual_pickup_time, actual_dropoff_time = :actual_dropoff_time,
		pickup_location = :pickup_location, dropoff_location = :dropoff_location,
		pickup_gps = :pickup_gps, dropoff_gps = :dropoff_gps, tracking_token = :tracking_token,
		notes = :notes, updated_at = :updated_at
		WHERE trip_id = :trip_id AND student_id = :student_id`, boilTripStudent(ts))
	if err != nil {
		return trip.TripStudent{}, mapErr(err, nil, nil, "updating trip student")
	}
	if err = mustAffect(res, trip.ErrNotAssigned); err != nil {
		return trip.TripStudent{}, err
	}
	return ts, nil
}

func (repo *TripRepository) DeleteTripStudent(ctx context.Context, tripID, studentID string, exec ...core.DBExecutor) error {
	if !validIDs(tripID, studentID) {
		return trip.ErrNotAssigned
	}
	res, err := repo.getExec(exec).ExecContext(ctx,
		`DELETE FROM trip_students WHERE trip_id = $1 AND student_id = $2`, tripID, studentID)
	if err != nil {
		return errors.Wrap(err, "deleting trip student")
	}
	return mustAffect(res, trip.ErrNotAssigned)
}

func (repo *TripRepository) CreateRfidEvent(ctx context.Context, e trip.RfidEvent, exec ...core.DBExecutor) (trip.RfidEvent, error) {
	e.ID = uuid.NewString()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO rfid_events (`+rfidEventColumns+`) VALUES (
		:id, :trip_id, :trip_student_id, :student_id, :event_type, :rfid_tag_id, :device_id, :device_location,
		:gps_coordinates, :scanned_at, :notes, :created_at)`, boilRfidEvent(e))
	if err != nil {
		return trip.RfidEvent{}, mapErr(err, nil, nil, "inserting rfid event")
	}
	return e, nil
}

func (repo *TripRepository) QueryRfidEvents(ctx context.Context, filter trip.EventFilter, exec ...core.DBExecutor) ([]trip.RfidEvent, error) {
	if (filter.TripID != "" && !validIDs(filter.TripID)) || (filter.StudentID != "" && !validIDs(filter.StudentID)) {
		return []trip.RfidEvent{}, nil
	}

	var w where
	if filter.TripID != "" {
		w.add("trip_id = ?", filter.TripID)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.EventType != "" {
		w.add("event_type = ?", string(filter.EventType))
	}
	if filter.StartDate != nil {
		w.add("scanned_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		w.add("scanned_at <= ?", *filter.EndDate)
	}

	var rows []rfidEventRow
	query := `SELECT ` + rfidEventColumns + ` FROM rfid_events` + w.String() + ` ORDER BY scanned_at DESC`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting rfid events")
	}
	events := make([]trip.RfidEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.unboil())
	}
	return events, nil
}

func (repo *TripRepository) CreateLocation(ctx context.Context, loc trip.Location, exec ...core.DBExecutor) (trip.Location, error) {
	loc.ID = uuid.NewString()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO trip_locations (`+locationColumns+`)
		VALUES (:id, :trip_id, :latitude, :longitude, :speed, :heading, :accuracy, :timestamp)`, boilLocation(loc))
	if err != nil {
		return trip.Location{}, mapErr(err, nil, nil, "inserting location")
	}
	return loc, nil
}

func (repo *TripRepository) GetLatestLocation(ctx context.Context, tripID string, exec ...core.DBExecutor) (trip.Location, error) {
	if !validIDs(tripID) {
		return trip.Location{}, trip.ErrNoLocation
	}
	var row locationRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+locationColumns+` FROM trip_locations
		WHERE trip_id = $1 ORDER BY timestamp DESC LIMIT 1`, tripID)
	if err != nil {
		return trip.Location{}, mapErr(err, trip.ErrNoLocation, nil, "selecting latest location")
	}
	return row.unboil(), nil
}

func (repo *TripRepository) QueryLocations(ctx context.Context, tripID string, filter trip.LocationFilter, exec ...core.DBExecutor) ([]trip.Location, error) {
	if !validIDs(tripID) {
		return []trip.Location{}, nil
	}

	var w where
	w.add("trip_id = ?", tripID)
	if filter.StartTime != nil {
		w.add("timestamp >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		w.add("timestamp <= ?", *filter.EndTime)
	}
	query := `SELECT ` + locationColumns + ` FROM trip_locations` + w.String() + ` ORDER BY timestamp`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}

	var rows []locationRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting locations")
	}
	locs := make([]trip.Location, 0, len(rows))
	for _, row := range rows {
		locs = append(locs, row.unboil())
	}
	return locs, nil
}

// PurgeLocations deletes the GPS samples recorded before t and returns how many were removed.
func (repo *TripRepository) PurgeLocations(ctx context.Context, before time.Time, exec ...core.DBExecutor) (int64, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM trip_locations WHERE timestamp < $1`, before)
	if err != nil {
		return 0, errors.Wrap(err, "purging locations")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading affected rows")
}
