package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/stats"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
	testutil "github.com/JAVIERMONRA/proyecto-cursos-online/tests"
)

func completePath(courseID, lessonID int) string {
	return "/progreso/" + itoa(courseID) + "/leccion/" + itoa(lessonID) + "/completar"
}

func Test_enrollmentApi_deletedAccount(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	token := env.getToken(t, student)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 1)

	_, err := env.usrRepo.DeleteUsersByID(context.Background(), []int{student.ID})
	require.NoError(t, err)

	for _, path := range []string{"/inscripciones/" + itoa(c.ID), "/cursos/" + itoa(c.ID) + "/inscribirse"} {
		rec := env.do(http.MethodPost, path, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Token inválido o expirado", decodeErr(t, rec).Error, path)
	}

	var cnt int
	require.NoError(t, env.db.Get(&cnt, "SELECT COUNT(*) FROM inscripciones"))
	assert.Zero(t, cnt)
}

func Test_enrollmentApi_enroll(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	token := env.getToken(t, student)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 1)
	archived := testutil.CreateCourse(t, env.courseRepo, "Rust", course.StatusArchived, 1)

	tests := []struct {
		name      string
		path      string
		token     string
		wantCode  int
		wantError string
	}{
		{name: "auth required", path: "/inscripciones/" + itoa(c.ID), wantCode: http.StatusUnauthorized},
		{name: "invalid id", path: "/inscripciones/lol", token: token, wantCode: http.StatusBadRequest},
		{name: "unknown course", path: "/inscripciones/9999", token: token, wantCode: http.StatusNotFound, wantError: course.ErrNotFound.Error()},
		{name: "archived course", path: "/inscripciones/" + itoa(archived.ID), token: token, wantCode: http.StatusBadRequest, wantError: enrollment.ErrCourseUnavailable.Error()},
		{name: "ok", path: "/inscripciones/" + itoa(c.ID), token: token, wantCode: http.StatusOK},
		{name: "already enrolled", path: "/inscripciones/" + itoa(c.ID), token: token, wantCode: http.StatusBadRequest, wantError: enrollment.ErrAlreadyEnrolled.Error()},
		{name: "already enrolled (alias)", path: "/cursos/" + itoa(c.ID) + "/inscribirse", token: token, wantCode: http.StatusBadRequest, wantError: enrollment.ErrAlreadyEnrolled.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, tt.path, tt.token)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"message": "Inscripción exitosa"}`, rec.Body.String())
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeErr(t, rec).Error)
			}
		})
	}

	for _, path := range []string{"/inscripciones/mis-cursos", "/cursos/mis-cursos"} {
		rec := env.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var mine []enrollment.MyCourse
		decode(t, rec, &mine)
		require.Len(t, mine, 1)
		assert.Equal(t, c.ID, mine[0].ID)
		assert.Equal(t, 0, mine[0].Progress)
		assert.False(t, mine[0].Completed)
	}
}

func Test_enrollmentApi_unenroll(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	token := env.getToken(t, student)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 1)

	rec := env.do(http.MethodDelete, "/inscripciones/"+itoa(c.ID), token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No estabas inscrito en este curso", decodeErr(t, rec).Error)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/inscripciones/"+itoa(c.ID), token).Code)
	lessonID := testutil.LessonIDs(c)[0]
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, completePath(c.ID, lessonID), token).Code)

	rec = env.do(http.MethodDelete, "/inscripciones/"+itoa(c.ID), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message": "Te has desinscrito del curso"}`, rec.Body.String())

	// progress and certificate are gone: re-enrolling starts from scratch
	rec = env.do(http.MethodGet, "/progreso/mis-certificados/listar", token)
	assert.JSONEq(t, "[]", rec.Body.String())
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/inscripciones/"+itoa(c.ID), token).Code)
	rec = env.do(http.MethodGet, "/progreso/"+itoa(c.ID), token)
	require.Equal(t, http.StatusOK, rec.Code)
	var cp enrollment.CourseProgress
	decode(t, rec, &cp)
	assert.Equal(t, 0, cp.Progress)
	assert.False(t, cp.Sections[0].Lessons[0].Completed)
}

func Test_progressApi_completeLesson(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	token := env.getToken(t, student)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 2, 1)
	other := testutil.CreateCourse(t, env.courseRepo, "Otro", course.StatusActive, 1)
	lessons := testutil.LessonIDs(c)

	// not enrolled
	rec := env.do(http.MethodPost, completePath(c.ID, lessons[0]), token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, enrollment.ErrNotEnrolled.Error(), decodeErr(t, rec).Error)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/inscripciones/"+itoa(c.ID), token).Code)

	// lesson of another course
	rec = env.do(http.MethodPost, completePath(c.ID, testutil.LessonIDs(other)[0]), token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, enrollment.ErrLessonNotFound.Error(), decodeErr(t, rec).Error)

	type result struct {
		Message     string  `json:"message"`
		Progress    int     `json:"progreso"`
		Completed   bool    `json:"completado"`
		Certificate *string `json:"certificado"`
	}
	steps := []struct {
		lessonID     int
		wantProgress int
	}{
		{lessons[0], 33},
		{lessons[0], 33}, // idempotent
		{lessons[1], 67},
		{lessons[2], 100},
	}
	var res result
	for _, step := range steps {
		rec = env.do(http.MethodPost, completePath(c.ID, step.lessonID), token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res = result{}
		decode(t, rec, &res)
		assert.Equal(t, "Lección marcada como completada", res.Message)
		assert.Equal(t, step.wantProgress, res.Progress)
		assert.Equal(t, step.wantProgress == 100, res.Completed)
		assert.Equal(t, step.wantProgress == 100, res.Certificate != nil)
	}
	code := *res.Certificate
	assert.True(t, strings.HasPrefix(code, "CERT-"), code)

	// completing again keeps the same certificate and sends a single email
	rec = env.do(http.MethodPost, completePath(c.ID, lessons[2]), token)
	require.Equal(t, http.StatusOK, rec.Code)
	res = result{}
	decode(t, rec, &res)
	require.NotNil(t, res.Certificate)
	assert.Equal(t, code, *res.Certificate)

	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, student.Email, sent[0].To[0].Address)
	assert.Len(t, sent[0].Attachments, 1)

	// course progress view
	rec = env.do(http.MethodGet, "/progreso/"+itoa(c.ID), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cp enrollment.CourseProgress
	decode(t, rec, &cp)
	assert.Equal(t, 100, cp.Progress)
	assert.True(t, cp.Completed)
	require.Len(t, cp.Sections, 2)
	for _, s := range cp.Sections {
		for _, l := range s.Lessons {
			assert.True(t, l.Completed, l.Title)
		}
	}
}

func Test_progressApi_certificate(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Ana Pérez", "ana@test.cd", "secreto", user.RoleStudent)
	token := env.getToken(t, student)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 1)
	certPath := "/progreso/" + itoa(c.ID) + "/certificado"

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/inscripciones/"+itoa(c.ID), token).Code)

	rec := env.do(http.MethodGet, certPath, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, enrollment.ErrCertificateNotFound.Error(), decodeErr(t, rec).Error)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, certPath+"/pdf", token).Code)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, completePath(c.ID, testutil.LessonIDs(c)[0]), token).Code)

	rec = env.do(http.MethodGet, certPath, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cert enrollment.CertificateDetail
	decode(t, rec, &cert)
	assert.Equal(t, "Ana Pérez", cert.StudentName)
	assert.Equal(t, "Go", cert.CourseTitle)
	assert.NotEmpty(t, cert.Code)

	rec = env.do(http.MethodGet, certPath+"/pdf", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "certificado-"+cert.Code+".pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	rec = env.do(http.MethodGet, "/progreso/mis-certificados/listar", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var certs []enrollment.CertificateSummary
	decode(t, rec, &certs)
	require.Len(t, certs, 1)
	assert.Equal(t, cert.Code, certs[0].Code)
	assert.Equal(t, c.ID, certs[0].CourseID)

	// certificates are private to their owner
	intruder := env.createUser(t, "Luis", "luis@test.cd", "secreto", user.RoleStudent)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, certPath, env.getToken(t, intruder)).Code)
}

func Test_statsApi(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "secreto", user.RoleAdmin)
	ana := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	luis := env.createUser(t, "Luis", "luis@test.cd", "secreto", user.RoleStudent)
	goCourse := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 1)
	rust := testutil.CreateCourse(t, env.courseRepo, "Rust", course.StatusActive, 2)

	anaToken, luisToken := env.getToken(t, ana), env.getToken(t, luis)
	for _, tok := range []string{anaToken, luisToken} {
		require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/inscripciones/"+itoa(goCourse.ID), tok).Code)
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/inscripciones/"+itoa(rust.ID), anaToken).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, completePath(goCourse.ID, testutil.LessonIDs(goCourse)[0]), anaToken).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, completePath(rust.ID, testutil.LessonIDs(rust)[0]), anaToken).Code)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/estadisticas", anaToken).Code)

	token := env.getToken(t, admin)
	rec := env.do(http.MethodGet, "/admin/estadisticas", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ov stats.Overview
	decode(t, rec, &ov)
	assert.Equal(t, 2, ov.Courses)
	assert.Equal(t, 3, ov.Users)
	assert.Equal(t, 3, ov.Enrollments)
	require.NotEmpty(t, ov.PopularCourses)
	assert.Equal(t, goCourse.ID, ov.PopularCourses[0].CourseID)
	assert.Equal(t, 2, ov.PopularCourses[0].Enrollments)
	assert.Equal(t, 33.33, ov.CompletionRate)
	assert.Equal(t, 1.5, ov.AvgStudentsPerCourse)
	require.NotEmpty(t, ov.MonthlyEnrollments)
	assert.Equal(t, 3, ov.MonthlyEnrollments[len(ov.MonthlyEnrollments)-1].Total)

	rec = env.do(http.MethodGet, "/admin/inscripciones-detalladas", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report stats.EnrollmentReport
	decode(t, rec, &report)
	assert.Len(t, report.Enrollments, 3)
	assert.Equal(t, 2, report.Summary.TotalStudents)
	assert.Equal(t, 3, report.Summary.TotalEnrollments)
	assert.Equal(t, 1, report.Summary.CompletedCourses)
	assert.Equal(t, 50.0, report.Summary.AvgProgress) // (100 + 50 + 0) / 3
}
