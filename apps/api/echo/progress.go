package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
)

type progressApi struct {
	svc enrollment.Service
}

func registerProgressAPI(e *echo.Echo, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{svc: deps.EnrollmentSvc}

	g := e.Group("/progreso", authed)
	g.GET("/mis-certificados/listar", api.certificates)
	g.GET("/:cursoId", api.courseProgress)
	g.POST("/:cursoId/leccion/:leccionId/completar", api.completeLesson)
	g.GET("/:cursoId/certificado", api.certificate)
	g.GET("/:cursoId/certificado/pdf", api.certificatePDF)
}

// userAndCourse reads the authenticated user and the :cursoId param.
func userAndCourse(ctx echo.Context) (userID, courseID int, err error) {
	if courseID, err = intParam(ctx, "cursoId"); err != nil {
		return
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return
	}
	return claims.UserID, courseID, nil
}

func (api *progressApi) courseProgress(ctx echo.Context) error {
	userID, courseID, err := userAndCourse(ctx)
	if err != nil {
		return err
	}
	cp, err := api.svc.GetCourseProgress(ctx.Request().Context(), userID, courseID)
	if err != nil {
		return errors.Wrap(err, "getting course progress")
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *progressApi) completeLesson(ctx echo.Context) error {
	userID, courseID, err := userAndCourse(ctx)
	if err != nil {
		return err
	}
	lessonID, err := intParam(ctx, "leccionId")
	if err != nil {
		return err
	}

	res, err := api.svc.MarkLessonCompleted(ctx.Request().Context(), userID, courseID, lessonID)
	if err != nil {
		return errors.Wrap(err, "marking lesson completed")
	}
	return ctx.JSON(http.StatusOK, LessonCompletedResponse{
		Message:        "Lección marcada como completada",
		ProgressResult: res,
	})
}

func (api *progressApi) certificate(ctx echo.Context) error {
	userID, courseID, err := userAndCourse(ctx)
	if err != nil {
		return err
	}
	cert, err := api.svc.GetCertificate(ctx.Request().Context(), userID, courseID)
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *progressApi) certificatePDF(ctx echo.Context) error {
	userID, courseID, err := userAndCourse(ctx)
	if err != nil {
		return err
	}
	pdf, cert, err := api.svc.CertificatePDF(ctx.Request().Context(), userID, courseID)
	if err != nil {
		return errors.Wrap(err, "rendering certificate")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", enrollment.CertificateFilename(cert)))
	return ctx.Blob(http.StatusOK, "application/pdf", pdf)
}

func (api *progressApi) certificates(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	certs, err := api.svc.ListCertificates(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	if certs == nil {
		certs = []enrollment.CertificateSummary{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

type LessonCompletedResponse struct {
	Message string `json:"message"`
	enrollment.ProgressResult
}
