package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
)

const userColumns = "id, nombre, email, password_hash, rol, foto_perfil, creado_en, actualizado_en, ultimo_acceso"

var userOrderings = map[string]string{
	"id":            "id",
	"nombre":        "nombre",
	"email":         "email",
	"rol":           "rol",
	"fechaRegistro": "creado_en",
	"ultimoAcceso":  "ultimo_acceso",
}

type userRow struct {
	ID           int         `db:"id"`
	Name         string      `db:"nombre"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"rol"`
	PhotoURL     null.String `db:"foto_perfil"`
	CreatedAt    time.Time   `db:"creado_en"`
	UpdatedAt    time.Time   `db:"actualizado_en"`
	LastLogin    null.Time   `db:"ultimo_acceso"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		PhotoURL:     r.PhotoURL,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    utcNullTime(r.LastLogin),
	}
}

func utcNullTime(t null.Time) null.Time {
	if t.Valid {
		t.Time = t.Time.UTC()
	}
	return t
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

// trapNoRowsErr maps sql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := "SELECT COUNT(*) FROM usuarios WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		q, args, err = sqlx.In(q+" AND id NOT IN (?)", email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
	}

	var cnt int
	if err := getContext(ctx, repo.getExec(exec), &cnt, q, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if cnt > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := getContext(ctx, repo.getExec(exec), &usr.ID, `
		INSERT INTO usuarios (nombre, email, password_hash, rol, foto_perfil, creado_en, actualizado_en, ultimo_acceso)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING
		RETURNING id`,
		usr.Name, usr.Email, usr.PasswordHash, usr.Role, usr.PhotoURL, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), usr.LastLogin,
	)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrEmailExists
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		// users with Name or Email matching the search keyword
		if filter.Search != "" {
			val := likePattern(filter.Search)
			where = append(where, `(LOWER(nombre) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`)
			args = append(args, val, val)
		}
		if filter.Role != "" {
			where = append(where, "rol = ?")
			args = append(args, filter.Role)
		}
	}

	q := "SELECT " + userColumns + " FROM usuarios"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, userOrderings, "creado_en DESC, id DESC")

	var rows []userRow
	if err := selectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := "SELECT " + userColumns + " FROM usuarios WHERE "
	var arg interface{}
	switch {
	case filter.ID != 0:
		q += "id = ?"
		arg = filter.ID
	case filter.Email != "":
		q += "email = ?"
		arg = filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getContext(ctx, repo.getExec(exec), &row, q, arg); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	cnt, err := execContext(ctx, repo.getExec(exec), `
		UPDATE usuarios
		SET nombre = ?, email = ?, password_hash = ?, rol = ?, foto_perfil = ?, actualizado_en = ?, ultimo_acceso = ?
		WHERE id = ?`,
		usr.Name, usr.Email, usr.PasswordHash, usr.Role, usr.PhotoURL, usr.UpdatedAt.UTC(), usr.LastLogin, usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("DELETE FROM usuarios WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	cnt, err := execContext(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return cnt, nil
}
