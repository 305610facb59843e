package echoapi

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
)

const (
	// multipart field carrying the JSON course definition
	courseDataField = "datos"
	// multipart file fields are named archivos_<section index>
	sectionFilesPrefix = "archivos_"
)

type courseApi struct {
	svc           course.Service
	enrollmentSvc enrollment.Service
	validate      *validator.Validate
}

func registerCourseAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:           deps.CourseSvc,
		enrollmentSvc: deps.EnrollmentSvc,
		validate:      deps.Validate,
	}

	g := e.Group("/cursos")

	// public
	g.GET("", api.query)
	g.GET("/:id", api.retrieve)

	// authed
	g.GET("/mis-cursos", api.myCourses, authed)
	g.GET("/completo/:id", api.retrieveDetail, authed)
	g.POST("/:id/inscribirse", api.enroll, authed)

	// admin
	g.POST("", api.create, authed, admin)
	g.POST("/crear-con-secciones", api.createWithSections, authed, admin)
	g.PUT("/:id", api.update, authed, admin)
	g.DELETE("/:id", api.destroy, authed, admin)
	g.PUT("/:id/secciones/:seccionId", api.updateSection, authed, admin)
	g.POST("/:id/secciones/:seccionId/lecciones", api.addLesson, authed, admin)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	c, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) retrieveDetail(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	detail, err := api.svc.GetDetail(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding course detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *courseApi) myCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courses, err := api.enrollmentSvc.ListMyCourses(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return errors.Wrap(err, "listing enrolled courses")
	}
	if courses == nil {
		courses = []enrollment.MyCourse{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	return enroll(ctx, api.enrollmentSvc, id)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := defaultTeacher(ctx, &data); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, CourseCreatedResponse{Mensaje: "Curso creado exitosamente", CourseID: c.ID, Course: c})
}

func (api *courseApi) createWithSections(ctx echo.Context) error {
	data, err := bindCourseWithSections(ctx)
	if err != nil {
		return err
	}
	if err = data.NewCourse.Validate(api.validate); err != nil {
		return err
	}
	if err = course.ValidateSections(api.validate, data.Sections); err != nil {
		return err
	}
	if err = defaultTeacher(ctx, &data.NewCourse); err != nil {
		return err
	}

	detail, err := api.svc.CreateWithSections(ctx.Request().Context(), data.NewCourse, data.Sections)
	if err != nil {
		return errors.Wrap(err, "creating course with sections")
	}
	return ctx.JSON(http.StatusCreated, CourseCreatedResponse{Mensaje: "Curso creado exitosamente", CourseID: detail.ID, Course: detail})
}

// bindCourseWithSections reads a JSON body, or a multipart form made of a JSON `datos` field and
// `archivos_<i>` files attached to the i-th section.
func bindCourseWithSections(ctx echo.Context) (CourseWithSectionsRequest, error) {
	var data CourseWithSectionsRequest
	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := ctx.Bind(&data); err != nil {
			return data, errors.Wrap(err, "binding to CourseWithSectionsRequest")
		}
		return data, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return data, errInvalidBody
	}
	if vals := form.Value[courseDataField]; len(vals) > 0 {
		if err = json.Unmarshal([]byte(vals[0]), &data); err != nil {
			return data, errInvalidBody
		}
	}

	for field, fhs := range form.File {
		if !strings.HasPrefix(field, sectionFilesPrefix) {
			continue
		}
		i, err := strconv.Atoi(strings.TrimPrefix(field, sectionFilesPrefix))
		if err != nil || i < 0 || i >= len(data.Sections) {
			return data, core.NewValidationError(errInvalidSectionFiles, core.FieldError{Field: field, Error: errInvalidSectionFiles.Error()})
		}
		for _, fh := range fhs {
			data.Sections[i].Files = append(data.Sections[i].Files, newUpload(fh))
		}
	}
	return data, nil
}

// defaultTeacher assigns the course to the requesting admin unless a teacher was given.
func defaultTeacher(ctx echo.Context, nc *course.NewCourse) error {
	if nc.TeacherID != nil {
		return nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id := claims.UserID
	nc.TeacherID = &id
	return nil
}

var errInvalidSectionFiles = errors.New("Los archivos deben pertenecer a una sección existente")

func newUpload(fh *multipart.FileHeader) course.Upload {
	return course.Upload{
		Filename: fh.Filename,
		MimeType: fh.Header.Get(echo.HeaderContentType),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (api *courseApi) update(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, CourseResponse{Mensaje: "Curso actualizado exitosamente", Course: c})
}

func (api *courseApi) destroy(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.JSON(http.StatusOK, MensajeResponse{Mensaje: "Curso eliminado exitosamente"})
}

func (api *courseApi) updateSection(ctx echo.Context) error {
	courseID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	sectionID, err := intParam(ctx, "seccionId")
	if err != nil {
		return err
	}
	var data course.UpdateSection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSection")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.UpdateSection(ctx.Request().Context(), courseID, sectionID, data)
	if err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ctx.JSON(http.StatusOK, SectionResponse{Mensaje: "Sección actualizada exitosamente", Section: s})
}

func (api *courseApi) addLesson(ctx echo.Context) error {
	courseID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	sectionID, err := intParam(ctx, "seccionId")
	if err != nil {
		return err
	}
	var data course.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.AddLesson(ctx.Request().Context(), courseID, sectionID, data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, LessonResponse{Mensaje: "Lección creada exitosamente", Lesson: l})
}

type (
	CourseWithSectionsRequest struct {
		course.NewCourse
		Sections []course.NewSection `json:"secciones"`
	}

	CourseCreatedResponse struct {
		Mensaje  string      `json:"mensaje"`
		CourseID int         `json:"cursoId"`
		Course   interface{} `json:"curso"`
	}

	CourseResponse struct {
		Mensaje string        `json:"mensaje"`
		Course  course.Course `json:"curso"`
	}

	SectionResponse struct {
		Mensaje string         `json:"mensaje"`
		Section course.Section `json:"seccion"`
	}

	LessonResponse struct {
		Mensaje string        `json:"mensaje"`
		Lesson  course.Lesson `json:"leccion"`
	}
)
