package billing

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
	invoices := g.Group("/invoices")
	invoices.GET("", h.list, auth.RequirePermission("billing.view"))
	invoices.POST("", h.create, auth.RequirePermission("billing.create"))
	invoices.GET("/:id", h.get, auth.RequirePermission("billing.view"))
	invoices.PUT("/:id", h.update, auth.RequirePermission("billing.update"))
	invoices.POST("/:id/pay", h.pay, auth.RequirePermission("billing.pay"))
	invoices.POST("/:id/cancel", h.cancel, auth.RequirePermission("billing.update"))
}

func (h *Handler) list(c echo.Context) error {
	p := pagination.FromContext(c)
	f := Filter{
		Status: c.QueryParam("status"),
		Limit:  p.Limit(),
		Offset: p.Offset(),
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
		// Include the whole end day.
		end := d.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}

	items, total, err := h.svc.ListInvoices(c.Request().Context(), f)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) create(c echo.Context) error {
	var in InvoiceInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "invoice created", inv)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", inv)
}

func (h *Handler) update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in InvoiceInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	inv, err := h.svc.UpdateInvoice(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "invoice updated", inv)
}

func (h *Handler) pay(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in PayInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	inv, err := h.svc.Pay(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "payment recorded", inv)
}

func (h *Handler) cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	inv, err := h.svc.CancelInvoice(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "invoice cancelled", inv)
}
