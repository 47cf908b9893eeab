package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SuperAdminRole bypasses every permission check.
const SuperAdminRole = "super-admin"

// RequirePermission returns middleware that checks the caller holds at least
// one of the given "module.action" permission strings. A super-admin role
// always passes.
func RequirePermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			for _, role := range RolesFromContext(ctx) {
				if role == SuperAdminRole {
					return next(c)
				}
			}

			granted := PermissionsFromContext(ctx)
			for _, required := range permissions {
				for _, has := range granted {
					if has == required {
						return next(c)
					}
				}
			}

			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required permission: %s", strings.Join(permissions, " or ")))
		}
	}
}
