package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "estudiante"
)

var AllRoles = []string{RoleAdmin, RoleStudent}

type User struct {
	ID           int         `json:"id"`
	Name         string      `json:"nombre"`
	Email        string      `json:"email"`
	Role         string      `json:"rol"`
	PhotoURL     null.String `json:"fotoPerfil"`
	PasswordHash []byte      `json:"-"`
	CreatedAt    time.Time   `json:"fechaRegistro"` // UTC
	UpdatedAt    time.Time   `json:"-"`             // UTC
	LastLogin    null.Time   `json:"ultimoAcceso"`  // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name     string `json:"nombre" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"-"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, nu.Email)
}

// UpdateProfile defines what a User may change on their own profile.
type UpdateProfile struct {
	Name     string  `json:"nombre"`
	PhotoURL *string `json:"fotoPerfil"`
}

func (up *UpdateProfile) Validate(origUsr User) {
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = origUsr.Name
	}
	if up.PhotoURL != nil {
		photo := core.CleanString(*up.PhotoURL)
		up.PhotoURL = &photo
	}
}

type ChangePassword struct {
	Current string `json:"passwordActual" validate:"required"`
	New     string `json:"passwordNueva" validate:"required"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

type ResetUserPassword struct {
	Token    string `json:"token,omitempty" validate:"required"`
	UID      string `json:"uid,omitempty" validate:"required"`
	Password string `json:"password,omitempty" validate:"required"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search string `query:"search"`
	Role   string `query:"rol"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
