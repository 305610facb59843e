package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/stats"
)

type statsApi struct {
	svc stats.Service
}

func registerStatsAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, deps ServerDeps) {
	api := statsApi{svc: deps.StatsSvc}

	g := e.Group("/admin", authed, admin)
	g.GET("/estadisticas", api.overview)
	g.GET("/inscripciones-detalladas", api.enrollments)
}

func (api *statsApi) overview(ctx echo.Context) error {
	ov, err := api.svc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *statsApi) enrollments(ctx echo.Context) error {
	report, err := api.svc.EnrollmentReport(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building enrollment report")
	}
	return ctx.JSON(http.StatusOK, report)
}
