package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/trip"
)

type (
	tripApi struct {
		svc      trip.Service
		validate *validator.Validate
	}

	// newTripRequest accepts plain dates as well as timestamps for tripDate.
	newTripRequest struct {
		trip.NewTrip
		TripDate string `json:"tripDate"`
	}

	updateTripRequest struct {
		trip.UpdateTrip
		TripDate *string `json:"tripDate"`
	}

	addStudentRequest struct {
		StudentID string `json:"studentId" validate:"required,notblank"`
	}
)

func registerTripAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc trip.Service, validate *validator.Validate) {
	api := tripApi{svc: svc, validate: validate}

	tg := g.Group("/trips", jwt)
	tg.POST("", api.create)
	tg.GET("", api.query)
	tg.GET("/active", api.queryActive)
	tg.GET("/rfid-events", api.queryEvents)
	tg.GET("/minder/:minderId", api.queryByMinder)

	// detail endpoints
	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, roleMiddleware(RoleAdmin))

	// roster
	dg.GET("/students", api.students)
	dg.POST("/students", api.addStudent)
	dg.PUT("/students/:studentId", api.updateStudent)
	dg.DELETE("/students/:studentId", api.removeStudent)
	dg.GET("/students/:studentId/location/history", api.studentLocationHistory)

	// rfid
	dg.POST("/rfid-log", api.logEvent)
	dg.POST("/rfid-log-by-tag", api.logEventByTag)
	dg.POST("/rfid-log-bulk", api.logEventsBulk)
	dg.GET("/rfid-events", api.tripEvents)

	// location
	dg.POST("/location", api.updateLocation)
	dg.GET("/location", api.currentLocation)
	dg.GET("/location/history", api.locationHistory)
}

// Handlers

func (api *tripApi) create(ctx echo.Context) error {
	var data newTripRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTrip")
	}
	if data.TripDate != "" {
		tripDate, err := parseTime(data.TripDate)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "tripDate", Error: "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"})
		}
		data.NewTrip.TripDate = tripDate
	}
	if err := data.NewTrip.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data.NewTrip)
	if err != nil {
		return errors.Wrap(err, "creating trip")
	}
	return ok(ctx, http.StatusCreated, t, "Trip created successfully")
}

func (api *tripApi) query(ctx echo.Context) error {
	filter, err := bindTripFilter(ctx)
	if err != nil {
		return err
	}
	trips, p, err := api.svc.Query(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying trips")
	}
	return okPage(ctx, trips, p)
}

func (api *tripApi) queryByMinder(ctx echo.Context) error {
	filter, err := bindTripFilter(ctx)
	if err != nil {
		return err
	}
	trips, p, err := api.svc.QueryByMinder(ctx.Request().Context(), ctx.Param("minderId"), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying minder trips")
	}
	return okPage(ctx, trips, p)
}

func bindTripFilter(ctx echo.Context) (trip.QueryFilter, error) {
	tripDate, err := queryTime(ctx, "tripDate")
	if err != nil {
		return trip.QueryFilter{}, err
	}
	return trip.QueryFilter{
		RouteID:  ctx.QueryParam("routeId"),
		Status:   trip.Status(ctx.QueryParam("status")),
		TripDate: tripDate,
	}, nil
}

func (api *tripApi) queryActive(ctx echo.Context) error {
	trips, err := api.svc.QueryActive(ctx.Request().Context(), trip.ActiveFilter{
		DriverID: ctx.QueryParam("driverId"),
		MinderID: ctx.QueryParam("minderId"),
	})
	if err != nil {
		return errors.Wrap(err, "querying active trips")
	}
	return ok(ctx, http.StatusOK, trips)
}

func (api *tripApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting trip")
	}
	return ok(ctx, http.StatusOK, t)
}

func (api *tripApi) update(ctx echo.Context) error {
	var data updateTripRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTrip")
	}
	if data.TripDate != nil {
		tripDate, err := parseTime(*data.TripDate)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "tripDate", Error: "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"})
		}
		data.UpdateTrip.TripDate = &tripDate
	}
	if err := data.UpdateTrip.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data.UpdateTrip)
	if err != nil {
		return errors.Wrap(err, "updating trip")
	}
	return ok(ctx, http.StatusOK, t, "Trip updated successfully")
}

func (api *tripApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting trip")
	}
	return ok(ctx, http.StatusOK, nil, "Trip deleted successfully")
}

func (api *tripApi) students(ctx echo.Context) error {
	roster, err := api.svc.Students(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing trip students")
	}
	return ok(ctx, http.StatusOK, roster)
}

func (api *tripApi) addStudent(ctx echo.Context) error {
	var data addStudentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to addStudentRequest")
	}
	data.StudentID = core.CleanString(data.StudentID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ts, err := api.svc.AddStudent(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "adding trip student")
	}
	return ok(ctx, http.StatusCreated, ts, "Student added to trip")
}

func (api *tripApi) updateStudent(ctx echo.Context) error {
	var data trip.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ts, err := api.svc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentId"), data)
	if err != nil {
		return errors.Wrap(err, "updating trip student")
	}
	return ok(ctx, http.StatusOK, ts, "Trip student updated successfully")
}

func (api *tripApi) removeStudent(ctx echo.Context) error {
	if err := api.svc.RemoveStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "removing trip student")
	}
	return ok(ctx, http.StatusOK, nil, "Student removed from trip")
}

func (api *tripApi) bindScan(ctx echo.Context) (trip.Scan, error) {
	var data trip.Scan
	if err := ctx.Bind(&data); err != nil {
		return trip.Scan{}, errors.Wrap(err, "binding to Scan")
	}
	return data, data.Validate(api.validate)
}

func (api *tripApi) logEvent(ctx echo.Context) error {
	scan, err := api.bindScan(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.LogEvent(ctx.Request().Context(), ctx.Param("id"), scan)
	if err != nil {
		return errors.Wrap(err, "logging rfid event")
	}
	return ok(ctx, http.StatusCreated, res, "RFID event logged successfully")
}

func (api *tripApi) logEventByTag(ctx echo.Context) error {
	scan, err := api.bindScan(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.LogEventByTag(ctx.Request().Context(), ctx.Param("id"), scan)
	if err != nil {
		return errors.Wrap(err, "logging rfid event by tag")
	}
	return ok(ctx, http.StatusCreated, res, "RFID event logged successfully")
}

func (api *tripApi) logEventsBulk(ctx echo.Context) error {
	var data trip.BulkScan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkScan")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	results, err := api.svc.LogEventsBulk(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "logging rfid events")
	}
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	return ok(ctx, http.StatusOK, results, fmt.Sprintf("Processed %d events, %d succeeded", len(results), succeeded))
}

func (api *tripApi) queryEvents(ctx echo.Context) error {
	filter, err := bindEventFilter(ctx)
	if err != nil {
		return err
	}
	filter.TripID = ctx.QueryParam("tripId")
	return api.events(ctx, filter)
}

func (api *tripApi) tripEvents(ctx echo.Context) error {
	filter, err := bindEventFilter(ctx)
	if err != nil {
		return err
	}
	filter.TripID = ctx.Param("id")
	return api.events(ctx, filter)
}

func (api *tripApi) events(ctx echo.Context, filter trip.EventFilter) error {
	events, err := api.svc.QueryEvents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying rfid events")
	}
	return ok(ctx, http.StatusOK, events)
}

func bindEventFilter(ctx echo.Context) (trip.EventFilter, error) {
	start, err := queryTime(ctx, "startDate")
	if err != nil {
		return trip.EventFilter{}, err
	}
	end, err := queryTime(ctx, "endDate")
	if err != nil {
		return trip.EventFilter{}, err
	}
	return trip.EventFilter{
		StudentID: ctx.QueryParam("studentId"),
		EventType: trip.EventType(ctx.QueryParam("eventType")),
		StartDate: start,
		EndDate:   end,
	}, nil
}

func (api *tripApi) updateLocation(ctx echo.Context) error {
	var data trip.NewLocation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLocation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	loc, err := api.svc.UpdateLocation(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating location")
	}
	return ok(ctx, http.StatusCreated, loc, "Location updated successfully")
}

func (api *tripApi) currentLocation(ctx echo.Context) error {
	loc, err := api.svc.CurrentLocation(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting current location")
	}
	return ok(ctx, http.StatusOK, loc)
}

func (api *tripApi) locationHistory(ctx echo.Context) error {
	limit, err := queryInt(ctx, "limit", 0)
	if err != nil {
		return err
	}
	start, err := queryTime(ctx, "startTime")
	if err != nil {
		return err
	}
	end, err := queryTime(ctx, "endTime")
	if err != nil {
		return err
	}

	locs, err := api.svc.LocationHistory(ctx.Request().Context(), ctx.Param("id"), trip.LocationFilter{Limit: limit, StartTime: start, EndTime: end})
	if err != nil {
		return errors.Wrap(err, "getting location history")
	}
	return ok(ctx, http.StatusOK, locs)
}

func (api *tripApi) studentLocationHistory(ctx echo.Context) error {
	limit, err := queryInt(ctx, "limit", 0)
	if err != nil {
		return err
	}
	locs, err := api.svc.StudentLocationHistory(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentId"), limit)
	if err != nil {
		return errors.Wrap(err, "getting student location history")
	}
	return ok(ctx, http.StatusOK, locs)
}
