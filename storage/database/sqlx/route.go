package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/route"
	"github.com/trezcool/shulebus/core/student"
)

const routeColumns = `id, name, school_id, trip_type, description, status, bus_id, driver_id, minder_id,
	is_active, created_at, updated_at`

var errRouteInUse = core.NewConflictError("Route has trips and cannot be deleted")

type (
	routeRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		SchoolID    string      `db:"school_id"`
		TripType    string      `db:"trip_type"`
		Description null.String `db:"description"`
		Status      null.String `db:"status"`
		BusID       null.String `db:"bus_id"`
		DriverID    null.String `db:"driver_id"`
		MinderID    null.String `db:"minder_id"`
		IsActive    bool        `db:"is_active"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	routeStudentRow struct {
		RouteID   string `db:"route_id"`
		StudentID string `db:"student_id"`
		RiderType string `db:"rider_type"`
	}
)

func boilRoute(r route.Route) routeRow {
	return routeRow{
		ID:          r.ID,
		Name:        r.Name,
		SchoolID:    r.SchoolID,
		TripType:    string(r.TripType),
		Description: null.NewString(r.Description, r.Description != ""),
		Status:      null.NewString(r.Status, r.Status != ""),
		BusID:       null.StringFromPtr(r.BusID),
		DriverID:    null.StringFromPtr(r.DriverID),
		MinderID:    null.StringFromPtr(r.MinderID),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (row routeRow) unboil(students []route.RouteStudent) route.Route {
	if students == nil {
		students = []route.RouteStudent{}
	}
	return route.Route{
		ID:          row.ID,
		Name:        row.Name,
		SchoolID:    row.SchoolID,
		TripType:    route.TripType(row.TripType),
		Description: row.Description.String,
		Status:      row.Status.String,
		BusID:       row.BusID.Ptr(),
		DriverID:    row.DriverID.Ptr(),
		MinderID:    row.MinderID.Ptr(),
		IsActive:    row.IsActive,
		Students:    students,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type RouteRepository struct {
	repository
}

var _ route.Repository = (*RouteRepository)(nil)

func NewRouteRepository(db *sqlx.DB) *RouteRepository {
	return &RouteRepository{repository{db: db}}
}

func (repo *RouteRepository) CreateRoute(ctx context.Context, r route.Route, exec ...core.DBExecutor) (route.Route, error) {
	ext := repo.getExec(exec)
	r.ID = uuid.NewString()
	_, err := sqlx.NamedExecContext(ctx, ext, `INSERT INTO routes (`+routeColumns+`) VALUES (
		:id, :name, :school_id, :trip_type, :description, :status, :bus_id, :driver_id, :minder_id,
		:is_active, :created_at, :updated_at)`, boilRoute(r))
	if err != nil {
		return route.Route{}, mapErr(err, nil, nil, "inserting route")
	}
	if err = repo.insertStudents(ctx, ext, r.ID, r.Students); err != nil {
		return route.Route{}, err
	}
	r.Students = append([]route.RouteStudent{}, r.Students...)
	return r, nil
}

func (repo *RouteRepository) insertStudents(ctx context.Context, ext sqlx.ExtContext, routeID string, students []route.RouteStudent) error {
	for _, s := range students {
		if !validIDs(s.StudentID) {
			return student.ErrNotFound
		}
		_, err := ext.ExecContext(ctx, `INSERT INTO route_students (route_id, student_id, rider_type) VALUES ($1, $2, $3)
			ON CONFLICT (route_id, student_id) DO UPDATE SET rider_type = EXCLUDED.rider_type`,
			routeID, s.StudentID, string(s.RiderType))
		if isForeignKeyViolation(err) {
			return student.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "inserting route student")
		}
	}
	return nil
}

func (repo *RouteRepository) students(ctx context.Context, ext sqlx.ExtContext, routeIDs ...string) (map[string][]route.RouteStudent, error) {
	byRoute := make(map[string][]route.RouteStudent, len(routeIDs))
	if len(routeIDs) == 0 {
		return byRoute, nil
	}

	query, args, err := sqlx.In(`SELECT route_id, student_id, rider_type FROM route_students
		WHERE route_id IN (?) ORDER BY student_id`, routeIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building route students query")
	}
	var rows []routeStudentRow
	if err = sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting route students")
	}
	for _, row := range rows {
		byRoute[row.RouteID] = append(byRoute[row.RouteID], route.RouteStudent{
			StudentID: row.StudentID,
			RiderType: route.RiderType(row.RiderType),
		})
	}
	return byRoute, nil
}

func (repo *RouteRepository) GetRoute(ctx context.Context, id string, exec ...core.DBExecutor) (route.Route, error) {
	if !validIDs(id) {
		return route.Route{}, route.ErrNotFound
	}
	ext := repo.getExec(exec)

	var row routeRow
	if err := sqlx.GetContext(ctx, ext, &row, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id); err != nil {
		return route.Route{}, mapErr(err, route.ErrNotFound, nil, "selecting route")
	}
	students, err := repo.students(ctx, ext, id)
	if err != nil {
		return route.Route{}, err
	}
	return row.unboil(students[id]), nil
}

func (repo *RouteRepository) QueryRoutes(ctx context.Context, filter route.QueryFilter, page core.Page, exec ...core.DBExecutor) ([]route.Route, int, error) {
	ext := repo.getExec(exec)

	var w where
	if filter.SchoolID != "" {
		w.add("school_id = ?", filter.SchoolID)
	}

	var total int
	if err := sqlx.GetContext(ctx, ext, &total, `SELECT count(*) FROM routes`+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting routes")
	}

	var rows []routeRow
	query := `SELECT ` + routeColumns + ` FROM routes` + w.String() + ` ORDER BY created_at DESC` + limitOffset(len(w.args))
	if err := sqlx.SelectContext(ctx, ext, &rows, query, append(w.args, page.Limit(), page.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting routes")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	students, err := repo.students(ctx, ext, ids...)
	if err != nil {
		return nil, 0, err
	}

	routes := make([]route.Route, 0, len(rows))
	for _, row := range rows {
		routes = append(routes, row.unboil(students[row.ID]))
	}
	return routes, total, nil
}

func (repo *RouteRepository) UpdateRoute(ctx context.Context, r route.Route, replaceStudents bool, exec ...core.DBExecutor) (route.Route, error) {
	if !validIDs(r.ID) {
		return route.Route{}, route.ErrNotFound
	}
	ext := repo.getExec(exec)

	res, err := sqlx.NamedExecContext(ctx, ext, `UPDATE routes SET
		name = :name, school_id = :school_id, trip_type = :trip_type, description = :description, status = :status,
		bus_id = :bus_id, driver_id = :driver_id, minder_id = :minder_id, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, boilRoute(r))
	if err != nil {
		return route.Route{}, mapErr(err, nil, nil, "updating route")
	}
	if err = mustAffect(res, route.ErrNotFound); err != nil {
		return route.Route{}, err
	}

	if replaceStudents {
		if _, err = ext.ExecContext(ctx, `DELETE FROM route_students WHERE route_id = $1`, r.ID); err != nil {
			return route.Route{}, errors.Wrap(err, "clearing route students")
		}
		if err = repo.insertStudents(ctx, ext, r.ID, r.Students); err != nil {
			return route.Route{}, err
		}
		r.Students = append([]route.RouteStudent{}, r.Students...)
		return r, nil
	}

	students, err := repo.students(ctx, ext, r.ID)
	if err != nil {
		return route.Route{}, err
	}
	r.Students = students[r.ID]
	if r.Students == nil {
		r.Students = []route.RouteStudent{}
	}
	return r, nil
}

func (repo *RouteRepository) DeleteRoute(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validIDs(id) {
		return route.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return errRouteInUse
	}
	if err != nil {
		return errors.Wrap(err, "deleting route")
	}
	return mustAffect(res, route.ErrNotFound)
}
