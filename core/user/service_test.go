package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
	emailsvc "github.com/JAVIERMONRA/proyecto-cursos-online/services/email"
	logsvc "github.com/JAVIERMONRA/proyecto-cursos-online/services/logger"
	inmemdb "github.com/JAVIERMONRA/proyecto-cursos-online/storage/database/inmem"
)

func newTestService(t *testing.T) (user.Service, *emailsvc.ConsoleServiceMock) {
	t.Helper()
	conf := core.NewTestConfig()
	zl, err := logsvc.NewZapLogger(conf)
	require.NoError(t, err)
	require.NoError(t, core.ParseEmailTemplates())

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(zl, conf))
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	return user.NewService(repo, mailSvc, conf), mailSvc
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.NewUser{Name: "Ana", Email: "ana@test.cd", Password: "secreto", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.NotZero(t, usr.ID)
	assert.NoError(t, usr.CheckPassword("secreto"))

	admin, err := svc.Create(ctx, user.NewUser{Name: "Luis", Email: "luis@test.cd", Password: "secreto", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	other, err := svc.Create(ctx, user.NewUser{Name: "Zoe", Email: "zoe@test.cd", Password: "secreto", Role: "superuser"})
	require.NoError(t, err)
	assert.True(t, other.IsStudent())

	_, err = svc.Register(ctx, user.NewUser{Name: "Otra", Email: "ana@test.cd", Password: "secreto"})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, user.ErrEmailExists, vErr.Err)

	assert.Error(t, svc.CheckEmailUniqueness(ctx, "ana@test.cd"))
	assert.NoError(t, svc.CheckEmailUniqueness(ctx, "ana@test.cd", usr))
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, user.NewUser{Name: "Ana", Email: "ana@test.cd", Password: "secreto"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "nadie@test.cd", pwd: "secreto", wantErr: user.ErrInvalidCredentials},
		{name: "blank email", email: "  ", pwd: "secreto", wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", email: "ana@test.cd", pwd: "Secreto", wantErr: user.ErrInvalidCredentials},
		{name: "email is normalized", email: " ANA@test.cd ", pwd: "secreto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, usr.LastLogin.Valid)
		})
	}
}

func TestService_UpdateProfileAndPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	usr, err := svc.Register(ctx, user.NewUser{Name: "Ana", Email: "ana@test.cd", Password: "secreto"})
	require.NoError(t, err)

	photo := " https://img.test/ana.png "
	usr, err = svc.UpdateProfile(ctx, usr, user.UpdateProfile{Name: "   ", PhotoURL: &photo})
	require.NoError(t, err)
	assert.Equal(t, "Ana", usr.Name)
	assert.Equal(t, "https://img.test/ana.png", usr.PhotoURL.String)

	err = svc.ChangePassword(ctx, usr, user.ChangePassword{Current: "incorrecta", New: "nuevo1"})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, user.ErrWrongPassword, vErr.Err)

	require.NoError(t, svc.ChangePassword(ctx, usr, user.ChangePassword{Current: "secreto", New: "nuevo1"}))
	_, err = svc.Authenticate(ctx, usr.Email, "nuevo1")
	assert.NoError(t, err)
}

func TestService_PasswordReset(t *testing.T) {
	svc, mailSvc := newTestService(t)
	ctx := context.Background()
	usr, err := svc.Register(ctx, user.NewUser{Name: "Ana", Email: "ana@test.cd", Password: "secreto"})
	require.NoError(t, err)

	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "nadie@test.cd"))
	assert.Empty(t, mailSvc.SentMessages())

	require.NoError(t, svc.RequestPasswordReset(ctx, "ana@test.cd"))
	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, usr.Email, sent[0].To[0].Address)
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Equal(t, user.EncodeUID(usr), uid)

	err = svc.ResetPassword(ctx, user.ResetUserPassword{UID: "!!", Token: token, Password: "nuevo1"})
	assert.Error(t, err)
	err = svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "x-y", Password: "nuevo1"})
	assert.Error(t, err)

	require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "nuevo1"}))
	_, err = svc.Authenticate(ctx, usr.Email, "nuevo1")
	assert.NoError(t, err)

	// tokens are single use
	err = svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "otro12"})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestService_QueryAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ana, err := svc.Register(ctx, user.NewUser{Name: "Ana", Email: "ana@test.cd", Password: "secreto"})
	require.NoError(t, err)
	luis, err := svc.Create(ctx, user.NewUser{Name: "Luis", Email: "luis@test.cd", Password: "secreto", Role: user.RoleAdmin})
	require.NoError(t, err)

	users, err := svc.Query(ctx, &user.QueryFilter{Role: user.RoleAdmin}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, luis.ID, users[0].ID)

	users, err = svc.Query(ctx, nil, []core.DBOrdering{{Field: "nombre", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, ana.ID, users[0].ID)

	assert.Equal(t, user.ErrNotFound, svc.Delete(ctx, 9999))
	assert.NoError(t, svc.Delete(ctx))
	require.NoError(t, svc.Delete(ctx, ana.ID))
	_, err = svc.GetByID(ctx, ana.ID)
	assert.Equal(t, user.ErrNotFound, err)
}
