package tests

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
	"github.com/JAVIERMONRA/proyecto-cursos-online/services/filestore"
	testutil "github.com/JAVIERMONRA/proyecto-cursos-online/tests"
)

type courseCreated struct {
	Mensaje  string              `json:"mensaje"`
	CourseID int                 `json:"cursoId"`
	Course   course.CourseDetail `json:"curso"`
}

func Test_courseApi_create(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "secreto", user.RoleAdmin)
	student := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	token := env.getToken(t, admin)

	rec := env.do(http.MethodPost, "/cursos", "", map[string]string{"titulo": "Go", "descripcion": "Go desde cero"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/cursos", env.getToken(t, student), map[string]string{"titulo": "Go", "descripcion": "Go desde cero"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/cursos", token, map[string]string{"titulo": "  ", "descripcion": "Go desde cero"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, course.ErrTitleDescriptionRequired.Error(), decodeErr(t, rec).Error)

	rec = env.do(http.MethodPost, "/cursos", token, map[string]string{"titulo": " Go ", "descripcion": "Go desde cero", "nivel": "Básico"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp courseCreated
	decode(t, rec, &resp)
	assert.Equal(t, "Curso creado exitosamente", resp.Mensaje)
	assert.NotZero(t, resp.CourseID)
	assert.Equal(t, "Go", resp.Course.Title)
	assert.Equal(t, course.StatusActive, resp.Course.Status)
	assert.Equal(t, admin.ID, int(resp.Course.TeacherID.Int))

	rec = env.do(http.MethodGet, "/cursos/"+itoa(resp.CourseID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got course.Course
	decode(t, rec, &got)
	assert.Equal(t, "Go desde cero", got.Description)
}

func Test_courseApi_query(t *testing.T) {
	env := setup(t)
	testutil.CreateCourse(t, env.courseRepo, "Go avanzado", course.StatusActive)
	testutil.CreateCourse(t, env.courseRepo, "Python 100%", course.StatusActive)
	testutil.CreateCourse(t, env.courseRepo, "Rust", course.StatusArchived)

	tests := []struct {
		name       string
		query      string
		wantTitles []string
	}{
		{name: "all", query: "?ordering=titulo", wantTitles: []string{"Go avanzado", "Python 100%", "Rust"}},
		{name: "search", query: "?search=GO", wantTitles: []string{"Go avanzado"}},
		{name: "search escapes wildcards", query: "?search=100%25", wantTitles: []string{"Python 100%"}},
		{name: "search (unknown)", query: "?search=lol", wantTitles: []string{}},
		{name: "estado", query: "?estado=archivado", wantTitles: []string{"Rust"}},
		{name: "ordering desc", query: "?estado=activo&ordering=-titulo", wantTitles: []string{"Python 100%", "Go avanzado"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/cursos"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var courses []course.Course
			decode(t, rec, &courses)
			titles := make([]string, 0, len(courses))
			for _, c := range courses {
				titles = append(titles, c.Title)
			}
			assert.Equal(t, tt.wantTitles, titles)
		})
	}
}

func Test_courseApi_retrieve(t *testing.T) {
	env := setup(t)
	student := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 2, 1)

	rec := env.do(http.MethodGet, "/cursos/lol", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/cursos/9999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, course.ErrNotFound.Error(), decodeErr(t, rec).Error)

	rec = env.do(http.MethodGet, "/cursos/completo/"+itoa(c.ID), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/cursos/completo/"+itoa(c.ID), env.getToken(t, student))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail course.CourseDetail
	decode(t, rec, &detail)
	require.Len(t, detail.Sections, 2)
	assert.Len(t, detail.Sections[0].Lessons, 2)
	assert.Len(t, detail.Sections[1].Lessons, 1)
	assert.Equal(t, "Sección 1", detail.Sections[0].Subtitle)
	assert.Equal(t, "Lección 1.2", detail.Sections[0].Lessons[1].Title)
	assert.NotNil(t, detail.Sections[0].Files)
}

func Test_courseApi_createWithSectionsJSON(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "secreto", user.RoleAdmin)
	token := env.getToken(t, admin)

	body := `{
		"titulo": "Go",
		"descripcion": "Go desde cero",
		"secciones": [
			{"subtitulo": "Intro", "lecciones": [{"titulo": "Hola"}, {"titulo": "Tipos", "duracion": 15}]},
			{"subtitulo": "Concurrencia", "orden": 5, "lecciones": [{"titulo": "Goroutines"}]}
		]
	}`
	rec := env.do(http.MethodPost, "/cursos/crear-con-secciones", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp courseCreated
	decode(t, rec, &resp)
	detail := resp.Course
	require.Len(t, detail.Sections, 2)
	assert.Equal(t, 1, detail.Sections[0].Order)
	assert.Equal(t, 5, detail.Sections[1].Order)
	require.Len(t, detail.Sections[0].Lessons, 2)
	assert.Equal(t, []string{"Hola", "Tipos"}, []string{detail.Sections[0].Lessons[0].Title, detail.Sections[0].Lessons[1].Title})
	assert.Equal(t, 2, detail.Sections[0].Lessons[1].Order)
	assert.Equal(t, 15, detail.Sections[0].Lessons[1].Duration)

	// a blank section subtitle aborts the whole creation
	before := env.do(http.MethodGet, "/cursos", "").Body.String()
	rec = env.do(http.MethodPost, "/cursos/crear-con-secciones", token,
		`{"titulo": "Roto", "descripcion": "x", "secciones": [{"subtitulo": " "}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.JSONEq(t, before, env.do(http.MethodGet, "/cursos", "").Body.String())
}

func Test_courseApi_createWithSectionsMultipart(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "secreto", user.RoleAdmin)
	token := env.getToken(t, admin)

	data, err := json.Marshal(map[string]interface{}{
		"titulo":      "Go",
		"descripcion": "Go desde cero",
		"secciones": []map[string]interface{}{
			{"subtitulo": "Intro", "lecciones": []map[string]string{{"titulo": "Hola"}}},
			{"subtitulo": "Material"},
		},
	})
	require.NoError(t, err)

	req := newMultipartRequest(t, "/cursos/crear-con-secciones", map[string]string{"datos": string(data)},
		formFile{field: "archivos_1", name: "guia.PDF", content: "%PDF-1.4 guia"},
		formFile{field: "archivos_1", name: "notas.txt", content: "notas"},
	)
	rec := env.serve(req, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp courseCreated
	decode(t, rec, &resp)
	require.Len(t, resp.Course.Sections, 2)
	assert.Empty(t, resp.Course.Sections[0].Files)
	files := resp.Course.Sections[1].Files
	require.Len(t, files, 2)

	names := []string{files[0].OriginalName, files[1].OriginalName}
	assert.ElementsMatch(t, []string{"guia.PDF", "notas.txt"}, names)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.Path, filestore.URLPrefix+"/"), f.Path)
		_, err := os.Stat(filepath.Join(env.files.Dir(), strings.TrimPrefix(f.Path, filestore.URLPrefix+"/")))
		assert.NoError(t, err)

		// stored files are served back
		dl := env.do(http.MethodGet, f.Path, "")
		assert.Equal(t, http.StatusOK, dl.Code)
	}

	// files for an unknown section are rejected and nothing is stored
	entries, err := os.ReadDir(env.files.Dir())
	require.NoError(t, err)
	req = newMultipartRequest(t, "/cursos/crear-con-secciones", map[string]string{"datos": string(data)},
		formFile{field: "archivos_7", name: "x.txt", content: "x"},
	)
	rec = env.serve(req, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	after, err := os.ReadDir(env.files.Dir())
	require.NoError(t, err)
	assert.Len(t, after, len(entries))
}

func Test_courseApi_update(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "secreto", user.RoleAdmin)
	token := env.getToken(t, admin)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive)

	rec := env.do(http.MethodPut, "/cursos/9999", token, map[string]string{"titulo": "Nuevo"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPut, "/cursos/"+itoa(c.ID), token, map[string]string{"estado": "lol"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/cursos/"+itoa(c.ID), token, map[string]string{"titulo": "Go 2", "estado": course.StatusArchived})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Mensaje string        `json:"mensaje"`
		Course  course.Course `json:"curso"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "Curso actualizado exitosamente", resp.Mensaje)
	assert.Equal(t, "Go 2", resp.Course.Title)
	assert.Equal(t, c.Description, resp.Course.Description)
	assert.Equal(t, course.StatusArchived, resp.Course.Status)
}

func Test_courseApi_destroy(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "secreto", user.RoleAdmin)
	student := env.createUser(t, "Ana", "ana@test.cd", "secreto", user.RoleStudent)
	token := env.getToken(t, admin)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 2)

	// enrollments and progress go along with the course
	studentToken := env.getToken(t, student)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/inscripciones/"+itoa(c.ID), studentToken).Code)
	lessonID := testutil.LessonIDs(c)[0]
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/progreso/"+itoa(c.ID)+"/leccion/"+itoa(lessonID)+"/completar", studentToken).Code)

	rec := env.do(http.MethodDelete, "/cursos/"+itoa(c.ID), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/cursos/"+itoa(c.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/cursos/"+itoa(c.ID), token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/inscripciones/mis-cursos", studentToken)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func Test_courseApi_sectionsAndLessons(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "secreto", user.RoleAdmin)
	token := env.getToken(t, admin)
	c := testutil.CreateCourse(t, env.courseRepo, "Go", course.StatusActive, 2)
	other := testutil.CreateCourse(t, env.courseRepo, "Otro", course.StatusActive, 1)
	section := c.Sections[0]

	sectionPath := "/cursos/" + itoa(c.ID) + "/secciones/" + itoa(section.ID)

	// the section must belong to the course
	rec := env.do(http.MethodPut, "/cursos/"+itoa(other.ID)+"/secciones/"+itoa(section.ID), token, map[string]string{"subtitulo": "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, course.ErrSectionNotFound.Error(), decodeErr(t, rec).Error)

	rec = env.do(http.MethodPut, sectionPath, token, map[string]interface{}{"subtitulo": "Fundamentos", "orden": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sresp struct {
		Section course.Section `json:"seccion"`
	}
	decode(t, rec, &sresp)
	assert.Equal(t, "Fundamentos", sresp.Section.Subtitle)
	assert.Equal(t, 3, sresp.Section.Order)

	rec = env.do(http.MethodPost, sectionPath+"/lecciones", token, map[string]string{"titulo": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, sectionPath+"/lecciones", token, map[string]interface{}{"titulo": "Nueva", "duracion": 20})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lresp struct {
		Lesson course.Lesson `json:"leccion"`
	}
	decode(t, rec, &lresp)
	assert.Equal(t, "Nueva", lresp.Lesson.Title)
	assert.Equal(t, section.ID, lresp.Lesson.SectionID)
	assert.Equal(t, 3, lresp.Lesson.Order) // appended after the 2 existing lessons

	rec = env.do(http.MethodPost, "/cursos/"+itoa(other.ID)+"/secciones/"+itoa(section.ID)+"/lecciones", token, map[string]string{"titulo": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
