package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shulebus/core"
)

const dateLayout = "2006-01-02"

// bindPage reads the page and pageSize query params; Clean applies the defaults.
func bindPage(ctx echo.Context) core.Page {
	var p core.Page
	p.Page, _ = strconv.Atoi(ctx.QueryParam("page"))
	p.PageSize, _ = strconv.Atoi(ctx.QueryParam("pageSize"))
	p.Clean()
	return p
}

// parseTime accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateLayout, value)
}

// queryTime parses the query param name, returning nil when it is absent.
func queryTime(ctx echo.Context, name string) (*time.Time, error) {
	value := ctx.QueryParam(name)
	if value == "" {
		return nil, nil
	}
	t, err := parseTime(value)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"})
	}
	return &t, nil
}

// queryInt parses the query param name, returning def when it is absent.
func queryInt(ctx echo.Context, name string, def int) (int, error) {
	value := ctx.QueryParam(name)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a positive integer"})
	}
	return n, nil
}
