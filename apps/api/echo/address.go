package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core/address"
)

type addressApi struct {
	svc      address.Service
	validate *validator.Validate
}

func registerAddressAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc address.Service, validate *validator.Validate) {
	api := addressApi{svc: svc, validate: validate}

	ag := g.Group("/addresses", jwt)
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/statistics", api.statistics)
	ag.GET("/primary/:parentId", api.primary)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
}

func (api *addressApi) create(ctx echo.Context) error {
	var data address.NewAddress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAddress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	addr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating address")
	}
	return ok(ctx, http.StatusCreated, addr, "Address created successfully")
}

func (api *addressApi) query(ctx echo.Context) error {
	filter := address.QueryFilter{ParentID: ctx.QueryParam("parentId")}
	addrs, p, err := api.svc.Query(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying addresses")
	}
	return okPage(ctx, addrs, p)
}

func (api *addressApi) statistics(ctx echo.Context) error {
	stats, err := api.svc.Statistics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing address statistics")
	}
	return ok(ctx, http.StatusOK, stats)
}

func (api *addressApi) primary(ctx echo.Context) error {
	addr, err := api.svc.GetPrimary(ctx.Request().Context(), ctx.Param("parentId"))
	if err != nil {
		return errors.Wrap(err, "getting primary address")
	}
	return ok(ctx, http.StatusOK, addr)
}

func (api *addressApi) retrieve(ctx echo.Context) error {
	addr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting address")
	}
	return ok(ctx, http.StatusOK, addr)
}

func (api *addressApi) update(ctx echo.Context) error {
	var data address.UpdateAddress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAddress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	addr, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating address")
	}
	return ok(ctx, http.StatusOK, addr, "Address updated successfully")
}

func (api *addressApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting address")
	}
	return ok(ctx, http.StatusOK, nil, "Address deleted successfully")
}
