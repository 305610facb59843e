package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	echoapi "github.com/JAVIERMONRA/proyecto-cursos-online/apps/api/echo"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/stats"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
	emailsvc "github.com/JAVIERMONRA/proyecto-cursos-online/services/email"
	"github.com/JAVIERMONRA/proyecto-cursos-online/services/filestore"
	logsvc "github.com/JAVIERMONRA/proyecto-cursos-online/services/logger"
	sqlxrepos "github.com/JAVIERMONRA/proyecto-cursos-online/storage/database/sqlx"
	testutil "github.com/JAVIERMONRA/proyecto-cursos-online/tests"
)

type testEnv struct {
	app        *echoapi.Server
	db         *sqlx.DB
	usrRepo    user.Repository
	courseRepo course.Repository
	mailSvc    *emailsvc.ConsoleServiceMock
	files      *filestore.LocalStore
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := core.NewTestConfig()

	zl, err := logsvc.NewZapLogger(conf)
	require.NoError(t, err)
	logger := logsvc.NewRollbarLogger(zl, conf)
	require.NoError(t, core.ParseEmailTemplates())

	// set up DB & repos
	db := testutil.OpenDB(t)
	env := &testEnv{
		db:         db,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		courseRepo: sqlxrepos.NewCourseRepository(db),
		mailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
	}
	env.files, err = filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	// set up services
	usrSvc := user.NewService(env.usrRepo, env.mailSvc, conf)
	courseSvc := course.NewService(db, env.courseRepo, env.files)
	enrollmentSvc := enrollment.NewService(db, sqlxrepos.NewEnrollmentRepository(db), courseSvc, env.mailSvc, logger)
	statsSvc := stats.NewService(sqlxrepos.NewStatsRepository(db))

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up server
	env.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		CourseSvc:     courseSvc,
		EnrollmentSvc: enrollmentSvc,
		StatsSvc:      statsSvc,
		Validate:      validate,
		Translator:    translator,
		UploadsDir:    env.files.Dir(),
	})
	return env
}

func (env *testEnv) createUser(t *testing.T, name, email, pwd, role string) user.User {
	return testutil.CreateUser(t, env.usrRepo, name, email, pwd, role)
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	token, err := env.app.GenerateToken(usr)
	require.NoError(t, err)
	return token
}

// do serves a request with an optional JSON body.
func (env *testEnv) do(method, path, token string, body ...interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if len(body) > 0 {
		switch b := body[0].(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return env.serve(req, token)
}

func (env *testEnv) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	field, name, content string
}

func newMultipartRequest(t *testing.T, path string, values map[string]string, files ...formFile) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type httpErr struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"campos,omitempty"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httpErr {
	t.Helper()
	var e httpErr
	decode(t, rec, &e)
	return e
}

func newJSONRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func itoa(i int) string { return strconv.Itoa(i) }
