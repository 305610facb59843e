package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// adminMiddleware restricts a route to admins. It must run after the JWT middleware.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsAdmin() {
				return errAdminOnly
			}
			return next(ctx)
		}
	}
}

// intParam parses the positive integer path parameter `name`.
func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
