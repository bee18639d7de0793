package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/edufarm/edufarm/core/user"
)

// roleMiddleware lets through users holding a role starting with one of `prefixes`.
func roleMiddleware(prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range claims.Roles {
				for _, prefix := range prefixes {
					if strings.HasPrefix(role, prefix) {
						return next(ctx)
					}
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

// teacherMiddleware also lets admins through.
func teacherMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleTeacher, user.RoleAdmin)
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleStudent)
}
