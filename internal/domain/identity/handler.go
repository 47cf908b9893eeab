package identity

import (
	"errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/klinika/klinika/internal/platform/auth"
	"github.com/klinika/klinika/pkg/apiresp"
	"github.com/klinika/klinika/pkg/pagination"
)

// Handler exposes the auth, user, role, and permission endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic mounts the unauthenticated auth endpoints.
func (h *Handler) RegisterPublic(g *echo.Group) {
	g.POST("/auth/login", h.login)
}

// Register mounts the authenticated endpoints.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/auth/logout", h.logout)
	g.GET("/auth/me", h.me)

	users := g.Group("/users")
	users.GET("", h.listUsers, auth.RequirePermission("user.view"))
	users.POST("", h.createUser, auth.RequirePermission("user.create"))
	users.GET("/:id", h.getUser, auth.RequirePermission("user.view"))
	users.PUT("/:id", h.updateUser, auth.RequirePermission("user.update"))
	users.DELETE("/:id", h.deleteUser, auth.RequirePermission("user.delete"))

	roles := g.Group("/roles")
	roles.GET("", h.listRoles, auth.RequirePermission("role.view"))
	roles.POST("", h.createRole, auth.RequirePermission("role.create"))
	roles.GET("/:id", h.getRole, auth.RequirePermission("role.view"))
	roles.PUT("/:id", h.updateRole, auth.RequirePermission("role.update"))
	roles.DELETE("/:id", h.deleteRole, auth.RequirePermission("role.delete"))

	g.GET("/permissions", h.listPermissions, auth.RequirePermission("role.view"))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}

	result, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return apiresp.Unauthorized(c, "invalid credentials")
		}
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "login successful", result)
}

func (h *Handler) logout(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apiresp.BadRequest(c, "invalid user id")
	}
	if err := h.svc.Logout(c.Request().Context(), userID); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "logged out", nil)
}

func (h *Handler) me(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apiresp.BadRequest(c, "invalid user id")
	}
	u, err := h.svc.Me(c.Request().Context(), userID)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", u)
}

func (h *Handler) listUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("search"), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, users, pagination.NewMeta(p, total))
}

func (h *Handler) createUser(c echo.Context) error {
	var in CreateUserInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "user created", u)
}

func (h *Handler) getUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", u)
}

func (h *Handler) updateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in UpdateUserInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "user updated", u)
}

func (h *Handler) deleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "user deleted", nil)
}

func (h *Handler) listRoles(c echo.Context) error {
	p := pagination.FromContext(c)
	roles, total, err := h.svc.ListRoles(c.Request().Context(), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, roles, pagination.NewMeta(p, total))
}

func (h *Handler) createRole(c echo.Context) error {
	var in RoleInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	r, err := h.svc.CreateRole(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "role created", r)
}

func (h *Handler) getRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	r, err := h.svc.GetRole(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", r)
}

func (h *Handler) updateRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in RoleInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	r, err := h.svc.UpdateRole(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "role updated", r)
}

func (h *Handler) deleteRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteRole(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "role deleted", nil)
}

func (h *Handler) listPermissions(c echo.Context) error {
	perms, err := h.svc.ListPermissions(c.Request().Context())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", perms)
}
