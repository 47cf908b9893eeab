package queue

import (
	"time"

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
	settings := g.Group("/queue-settings")
	settings.GET("", h.listSettings, auth.RequirePermission("queue.view"))
	settings.POST("", h.createSetting, auth.RequirePermission("queue.manage"))
	settings.GET("/:id", h.getSetting, auth.RequirePermission("queue.view"))
	settings.PUT("/:id", h.updateSetting, auth.RequirePermission("queue.manage"))
	settings.DELETE("/:id", h.deleteSetting, auth.RequirePermission("queue.manage"))

	queues := g.Group("/queues")
	queues.GET("", h.list, auth.RequirePermission("queue.view"))
	queues.POST("", h.take, auth.RequirePermission("queue.take"))
	queues.GET("/board", h.board, auth.RequirePermission("queue.view"))
	queues.GET("/:id", h.get, auth.RequirePermission("queue.view"))
	queues.POST("/:id/call", h.call, auth.RequirePermission("queue.call"))
	queues.POST("/:id/start", h.start, auth.RequirePermission("queue.call"))
	queues.POST("/:id/complete", h.complete, auth.RequirePermission("queue.call"))
	queues.POST("/:id/skip", h.skip, auth.RequirePermission("queue.call"))
	queues.POST("/:id/cancel", h.cancel, auth.RequirePermission("queue.cancel"))
}

func (h *Handler) listSettings(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListSettings(c.Request().Context(), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createSetting(c echo.Context) error {
	var in SettingInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	setting, err := h.svc.CreateSetting(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "queue setting created", setting)
}

func (h *Handler) getSetting(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	setting, err := h.svc.GetSetting(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", setting)
}

func (h *Handler) updateSetting(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in SettingInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	setting, err := h.svc.UpdateSetting(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "queue setting updated", setting)
}

func (h *Handler) deleteSetting(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteSetting(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "queue setting deleted", nil)
}

func (h *Handler) list(c echo.Context) error {
	p := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status"), Limit: p.Limit(), Offset: p.Offset()}

	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid department_id")
		}
		f.DepartmentID = &id
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if raw := c.QueryParam("date_from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid date_from")
		}
		f.DateFrom = &d
	}
	if raw := c.QueryParam("date_to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid date_to")
		}
		f.DateTo = &d
	}

	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) take(c echo.Context) error {
	var in TakeInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	q, err := h.svc.Take(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "queue ticket issued", q)
}

func (h *Handler) board(c echo.Context) error {
	entries, err := h.svc.Board(c.Request().Context())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", entries)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	q, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", q)
}

func (h *Handler) transitionHandler(c echo.Context, fn func(echo.Context, uuid.UUID) (*Queue, error), message string) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	q, err := fn(c, id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, message, q)
}

func (h *Handler) call(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Queue, error) {
		return h.svc.Call(c.Request().Context(), id)
	}, "queue called")
}

func (h *Handler) start(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Queue, error) {
		return h.svc.Start(c.Request().Context(), id)
	}, "queue in service")
}

func (h *Handler) complete(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Queue, error) {
		return h.svc.Complete(c.Request().Context(), id)
	}, "queue completed")
}

func (h *Handler) skip(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Queue, error) {
		return h.svc.Skip(c.Request().Context(), id)
	}, "queue skipped")
}

func (h *Handler) cancel(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Queue, error) {
		return h.svc.Cancel(c.Request().Context(), id)
	}, "queue cancelled")
}
