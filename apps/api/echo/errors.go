package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "invalid email or password")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHTTPForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errInvalidPayload       = echo.NewHTTPError(http.StatusBadRequest, "invalid request payload")
)

const genericErrorMessage = "An error occurred. Please try again later."

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Every error is rendered as {"success": false, "message": "...", "errors": {...}}.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message string
		var fields map[string]string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = errUnauthorized.Message.(string)
				break
			}
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			if m, ok := origErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			fields = core.TranslateErrors(origErr, translator)
			message = origErr[0].Translate(translator)
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
			if len(origErr.Fields) > 0 {
				fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fields[fErr.Field] = fErr.Error
				}
			}
		default:
			switch {
			case core.IsNotFound(origErr):
				code = http.StatusNotFound
				message = origErr.Error()
			case origErr == core.ErrUnauthenticated:
				code = http.StatusUnauthorized
				message = origErr.Error()
			case origErr == core.ErrForbidden:
				code = http.StatusForbidden
				message = origErr.Error()
			case origErr == admission.ErrAlreadyReviewed, origErr == admission.ErrAlreadyEnrolled:
				code = http.StatusConflict
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = genericErrorMessage

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Name = claims.Name
					usr.Email = claims.Email
				}
				logger.Error(http.StatusText(code), errors.Wrap(err, ctx.Request().Method+" "+ctx.Path()), usr)

				if core.IsShutdown(err) {
					signalShutdown()
				}
				if ctx.Echo().Debug {
					message = err.Error()
				}
			}
		}

		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, errorResponse{Success: false, Message: message, Errors: fields})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
