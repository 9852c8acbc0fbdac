package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shulebus/core/metrics"
)

// metricsMiddleware observes request latencies by route template.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil {
			ctx.Error(err)
		}

		path := ctx.Path()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(ctx.Request().Method, path, strconv.Itoa(ctx.Response().Status)).
			Observe(time.Since(start).Seconds())
		return nil
	}
}
