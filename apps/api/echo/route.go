package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core/route"
)

type routeApi struct {
	svc      route.Service
	validate *validator.Validate
}

func registerRouteAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc route.Service, validate *validator.Validate) {
	api := routeApi{svc: svc, validate: validate}

	rg := g.Group("/routes", jwt)
	rg.POST("", api.create)
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id", api.update)
	rg.DELETE("/:id", api.destroy, roleMiddleware(RoleAdmin))
}

func (api *routeApi) create(ctx echo.Context) error {
	var data route.NewRoute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoute")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating route")
	}
	return ok(ctx, http.StatusCreated, r, "Route created successfully")
}

func (api *routeApi) query(ctx echo.Context) error {
	filter := route.QueryFilter{SchoolID: ctx.QueryParam("schoolId")}
	routes, p, err := api.svc.Query(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying routes")
	}
	return okPage(ctx, routes, p)
}

func (api *routeApi) retrieve(ctx echo.Context) error {
	r, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting route")
	}
	return ok(ctx, http.StatusOK, r)
}

func (api *routeApi) update(ctx echo.Context) error {
	var data route.UpdateRoute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRoute")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating route")
	}
	return ok(ctx, http.StatusOK, r, "Route updated successfully")
}

func (api *routeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting route")
	}
	return ok(ctx, http.StatusOK, nil, "Route deleted successfully")
}
