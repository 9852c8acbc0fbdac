package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shulebus/core"
)

// Response is the envelope of every REST response.
type Response struct {
	Success    bool             `json:"success"`
	Data       interface{}      `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
	Message    string           `json:"message,omitempty"`
	Pagination *core.Pagination `json:"pagination,omitempty"`
}

func ok(ctx echo.Context, code int, data interface{}, message ...string) error {
	res := Response{Success: true, Data: data}
	if len(message) > 0 {
		res.Message = message[0]
	}
	return ctx.JSON(code, res)
}

func okPage(ctx echo.Context, data interface{}, p core.Pagination) error {
	return ctx.JSON(http.StatusOK, Response{Success: true, Data: data, Pagination: &p})
}
