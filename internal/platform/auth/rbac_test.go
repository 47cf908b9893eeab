package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWith(roles, permissions []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := req.Context()
	ctx = context.WithValue(ctx, RolesKey, roles)
	ctx = context.WithValue(ctx, PermissionsKey, permissions)
	return e.NewContext(req.WithContext(ctx), httptest.NewRecorder())
}

func runGuard(c echo.Context, permissions ...string) error {
	handler := RequirePermission(permissions...)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return handler(c)
}

func TestRequirePermissionGranted(t *testing.T) {
	c := requestWith([]string{"pharmacist"}, []string{"stock.in", "stock.out"})
	if err := runGuard(c, "stock.out"); err != nil {
		t.Fatalf("guard rejected granted permission: %v", err)
	}
}

func TestRequirePermissionDenied(t *testing.T) {
	c := requestWith([]string{"receptionist"}, []string{"patient.view"})
	err := runGuard(c, "stock.out")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("err = %v, want 403", err)
	}
}

func TestSuperAdminBypassesChecks(t *testing.T) {
	c := requestWith([]string{SuperAdminRole}, nil)
	if err := runGuard(c, "anything.at_all"); err != nil {
		t.Fatalf("super-admin rejected: %v", err)
	}
}

func TestAnyOfSeveralPermissionsSuffices(t *testing.T) {
	c := requestWith(nil, []string{"queue.manage"})
	if err := runGuard(c, "queue.call", "queue.manage"); err != nil {
		t.Fatalf("guard rejected one of the accepted permissions: %v", err)
	}
}
