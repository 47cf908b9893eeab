package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	RolesKey       contextKey = "user_roles"
	PermissionsKey contextKey = "user_permissions"
)

// ActiveTokenChecker reports whether tokenID is still the user's active
// token. Logging in rotates the stored id, which invalidates every token
// issued before (one active token per login).
type ActiveTokenChecker interface {
	IsActiveToken(ctx context.Context, userID, tokenID uuid.UUID) (bool, error)
}

// Middleware validates the Authorization bearer token and loads the caller's
// identity, roles, and permissions into the request context.
func Middleware(issuer *TokenIssuer, tokens ActiveTokenChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := issuer.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			tokenID, err := uuid.Parse(claims.TokenID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			active, err := tokens.IsActiveToken(c.Request().Context(), userID, tokenID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authorization unavailable")
			}
			if !active {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has been superseded")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, RolesKey, claims.Roles)
			ctx = context.WithValue(ctx, PermissionsKey, claims.Permissions)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(RolesKey).([]string)
	return roles
}

func PermissionsFromContext(ctx context.Context) []string {
	perms, _ := ctx.Value(PermissionsKey).([]string)
	return perms
}
