package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "Missing or invalid token")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "Permission denied")
	errValidationTitle = "Validation failed"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that renders every error in the response envelope.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		res := Response{Success: false}
		var code int

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				res.Error = msg
			} else {
				res.Error = http.StatusText(code)
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			res.Error = errValidationTitle
			res.Data = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			res.Error = origErr.Error()
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				res.Data = fldErrs
				if res.Error == "" {
					res.Error = errValidationTitle
				}
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			res.Error = origErr.Error()
		case *core.ConflictError:
			code = http.StatusConflict
			res.Error = origErr.Error()
		case *core.StateError:
			code = http.StatusUnprocessableEntity
			res.Error = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			res.Error = http.StatusText(http.StatusInternalServerError)

			extra := map[string]interface{}{"method": ctx.Request().Method, "path": ctx.Path()}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				extra["userId"] = claims.Subject
			}
			logger.Error(res.Error, errors.Wrap(err, res.Error), extra)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			res.Message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				logger.Error("writing error response", err)
			}
		}
	}
}
