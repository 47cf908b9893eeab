package patient

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/klinika/klinika/internal/platform/auth"
	"github.com/klinika/klinika/pkg/apiresp"
	"github.com/klinika/klinika/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(g *echo.Group) {
	patients := g.Group("/patients")
	patients.GET("", h.list, auth.RequirePermission("patient.view"))
	patients.POST("", h.create, auth.RequirePermission("patient.create"))
	patients.GET("/:id", h.get, auth.RequirePermission("patient.view"))
	patients.PUT("/:id", h.update, auth.RequirePermission("patient.update"))
	patients.DELETE("/:id", h.delete, auth.RequirePermission("patient.delete"))
}

func (h *Handler) list(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("search"), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "patient registered", p)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", p)
}

func (h *Handler) update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "patient updated", p)
}

func (h *Handler) delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "patient deleted", nil)
}
