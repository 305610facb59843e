package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
)

const (
	contextClaimsKey = "claims"
	contextUserKey   = "user"
	bearerPrefix     = "Bearer "
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	UserID       int    `json:"id"`
	Role         string `json:"rol"`
	OrigIssuedAt int64  `json:"oriat,omitempty"`
}

func (c Claims) IsAdmin() bool { return c.Role == user.RoleAdmin }

type jwtAuth struct {
	key             []byte
	issuer          string
	expiration      time.Duration
	refreshDuration time.Duration
	userSvc         user.Service
	nowFunc         func() time.Time
}

func newJWTAuth(conf *core.Config, userSvc user.Service) *jwtAuth {
	return &jwtAuth{
		key:             []byte(conf.SecretKey),
		issuer:          conf.AppName,
		expiration:      conf.Server.JWTExpirationDelta,
		refreshDuration: conf.Server.JWTRefreshExpirationDelta,
		userSvc:         userSvc,
		nowFunc:         time.Now,
	}
}

func (a *jwtAuth) claimsFor(usr user.User, origIat ...int64) *Claims {
	now := a.nowFunc()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:       usr.ID,
		Role:         usr.Role,
		OrigIssuedAt: oriat,
	}
}

// generateToken generates a signed HS256 JWT representing the user claims.
func (a *jwtAuth) generateToken(usr user.User, origIat ...int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, a.claimsFor(usr, origIat...))
	ss, err := token.SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *jwtAuth) parseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.nowFunc),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// middleware rejects requests without a valid bearer token, or whose account no longer exists,
// and stores the claims and the user in the context.
func (a *jwtAuth) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return errTokenMissing
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
			if tokenStr == "" {
				return errTokenMissing
			}
			claims, err := a.parseToken(tokenStr)
			if err != nil {
				return errTokenInvalid
			}
			ctx.Set(contextClaimsKey, claims)
			if _, err = a.getContextUser(ctx); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return claims, nil
	}
	return nil, errTokenMissing
}

// getContextUser loads the authenticated user once per request.
func (a *jwtAuth) getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := a.userSvc.GetByID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			// the account was deleted after the token was issued
			return user.User{}, errTokenInvalid
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (a *jwtAuth) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := a.getContextUser(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshDuration)
	if a.nowFunc().After(expTime) {
		return "", errRefreshExpired
	}
	return a.generateToken(usr, claims.OrigIssuedAt)
}

// GenerateToken issues a token for usr, as the login endpoint does.
func (s *Server) GenerateToken(usr user.User) (string, error) {
	return s.auth.generateToken(usr)
}
