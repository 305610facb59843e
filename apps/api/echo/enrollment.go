package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
)

var errWasNotEnrolled = echo.NewHTTPError(http.StatusNotFound, "No estabas inscrito en este curso")

type enrollmentApi struct {
	svc enrollment.Service
}

func registerEnrollmentAPI(e *echo.Echo, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := enrollmentApi{svc: deps.EnrollmentSvc}

	g := e.Group("/inscripciones", authed)
	g.GET("/mis-cursos", api.myCourses)
	g.POST("/:cursoId", api.enroll)
	g.DELETE("/:cursoId", api.unenroll)
}

// enroll is shared by both enrollment routes.
func enroll(ctx echo.Context, svc enrollment.Service, courseID int) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if _, err = svc.Enroll(ctx.Request().Context(), claims.UserID, courseID); err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Inscripción exitosa"})
}

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	courseID, err := intParam(ctx, "cursoId")
	if err != nil {
		return err
	}
	return enroll(ctx, api.svc, courseID)
}

func (api *enrollmentApi) unenroll(ctx echo.Context) error {
	courseID, err := intParam(ctx, "cursoId")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Unenroll(ctx.Request().Context(), claims.UserID, courseID); err != nil {
		if errors.Cause(err) == enrollment.ErrNotEnrolled {
			return errWasNotEnrolled
		}
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Te has desinscrito del curso"})
}

func (api *enrollmentApi) myCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.ListMyCourses(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return errors.Wrap(err, "listing enrolled courses")
	}
	if courses == nil {
		courses = []enrollment.MyCourse{}
	}
	return ctx.JSON(http.StatusOK, courses)
}
