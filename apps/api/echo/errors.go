package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
)

var (
	errTokenMissing   = echo.NewHTTPError(http.StatusUnauthorized, "Token no proporcionado")
	errTokenInvalid   = echo.NewHTTPError(http.StatusUnauthorized, "Token inválido o expirado")
	errRefreshExpired = echo.NewHTTPError(http.StatusUnauthorized, "La sesión ha expirado, inicia sesión de nuevo")
	errAdminOnly      = echo.NewHTTPError(http.StatusForbidden, "Acceso denegado. Solo administradores")
	errInvalidID      = echo.NewHTTPError(http.StatusBadRequest, "Identificador inválido")
	errInvalidBody    = echo.NewHTTPError(http.StatusBadRequest, "Datos inválidos")
)

// domainErrorCode maps the sentinel errors of the core packages to HTTP status codes.
func domainErrorCode(err error) (int, bool) {
	switch err {
	case user.ErrNotFound, course.ErrNotFound, course.ErrSectionNotFound,
		enrollment.ErrLessonNotFound, enrollment.ErrCertificateNotFound:
		return http.StatusNotFound, true
	case user.ErrInvalidCredentials:
		return http.StatusUnauthorized, true
	case enrollment.ErrNotEnrolled:
		return http.StatusForbidden, true
	case user.ErrEmailExists, enrollment.ErrAlreadyEnrolled, enrollment.ErrCourseUnavailable:
		return http.StatusBadRequest, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		body := echo.Map{}

		cause := errors.Cause(err)
		if c, ok := domainErrorCode(cause); ok {
			code = c
			body["error"] = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
				code = origErr.Code
				if msg, ok := origErr.Message.(string); ok {
					body["error"] = msg
				} else {
					body["error"] = http.StatusText(code)
				}
			case validator.ValidationErrors:
				fields := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fields[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				body["error"] = origErr[0].Translate(translator)
				body["campos"] = fields
			case *core.ValidationError:
				code = http.StatusBadRequest
				body["error"] = origErr.Error()
				if len(origErr.Fields) > 0 {
					fields := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fields[fErr.Field] = fErr.Error
					}
					body["campos"] = fields
				}
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				body["error"] = msg

				args := []interface{}{errors.WithMessage(err, msg)}
				if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
					args = append(args, usr)
				} else if claims, cErr := getContextClaims(ctx); cErr == nil {
					args = append(args, user.User{ID: claims.UserID, Role: claims.Role})
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
