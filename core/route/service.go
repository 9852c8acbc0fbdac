package route

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("Route not found")
)

type (
	Repository interface {
		CreateRoute(ctx context.Context, r Route, exec ...core.DBExecutor) (Route, error)
		GetRoute(ctx context.Context, id string, exec ...core.DBExecutor) (Route, error)
		QueryRoutes(ctx context.Context, filter QueryFilter, page core.Page, exec ...core.DBExecutor) ([]Route, int, error)
		// UpdateRoute saves r; the student roster is only rewritten when replaceStudents is set.
		UpdateRoute(ctx context.Context, r Route, replaceStudents bool, exec ...core.DBExecutor) (Route, error)
		DeleteRoute(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nr NewRoute) (Route, error)
		Get(ctx context.Context, id string) (Route, error)
		Query(ctx context.Context, filter QueryFilter, page core.Page) ([]Route, core.Pagination, error)
		Update(ctx context.Context, id string, ur UpdateRoute) (Route, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		tx   core.Transactor
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository) Service {
	return &service{tx: tx, repo: repo}
}

// InitValidators registers the route validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, "triptype", TripTypes...)
	core.RegisterEnumValidation(validate, translator, "ridertype", RiderTypes...)
}

func (svc *service) Create(ctx context.Context, nr NewRoute) (Route, error) {
	now := time.Now().UTC()
	r := Route{
		Name:        nr.Name,
		SchoolID:    nr.SchoolID,
		TripType:    nr.TripType,
		Description: nr.Description,
		Status:      nr.Status,
		BusID:       core.StringPtr(nr.BusID),
		DriverID:    core.StringPtr(nr.DriverID),
		MinderID:    core.StringPtr(nr.MinderID),
		IsActive:    true,
		Students:    nr.Students,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nr.IsActive != nil {
		r.IsActive = *nr.IsActive
	}
	if r.Students == nil {
		r.Students = []RouteStudent{}
	}

	var err error
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		r, err = svc.repo.CreateRoute(ctx, r, exec)
		return errors.Wrap(err, "creating route")
	})
	if err != nil {
		return Route{}, err
	}
	return r, nil
}

func (svc *service) Get(ctx context.Context, id string) (Route, error) {
	return svc.repo.GetRoute(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Page) ([]Route, core.Pagination, error) {
	page.Clean()
	routes, total, err := svc.repo.QueryRoutes(ctx, filter, page)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	return routes, core.NewPagination(page, total), nil
}

func (svc *service) Update(ctx context.Context, id string, ur UpdateRoute) (Route, error) {
	var r Route
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetRoute(ctx, id, exec)
		if err != nil {
			return err
		}
		r = ur.apply(orig)
		r.UpdatedAt = time.Now().UTC()
		r, err = svc.repo.UpdateRoute(ctx, r, ur.Students != nil, exec)
		return errors.Wrap(err, "updating route")
	})
	if err != nil {
		return Route{}, err
	}
	return r, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return errors.Wrap(svc.repo.DeleteRoute(ctx, id), "deleting route")
}
