package pharmacy

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
	medicines := g.Group("/medicines")
	medicines.GET("", h.listMedicines, auth.RequirePermission("medicine.view"))
	medicines.POST("", h.createMedicine, auth.RequirePermission("medicine.create"))
	medicines.GET("/:id", h.getMedicine, auth.RequirePermission("medicine.view"))
	medicines.PUT("/:id", h.updateMedicine, auth.RequirePermission("medicine.update"))
	medicines.DELETE("/:id", h.deleteMedicine, auth.RequirePermission("medicine.delete"))
	medicines.GET("/:id/batches", h.availableBatches, auth.RequirePermission("stock.view"))

	stock := g.Group("/stock")
	stock.POST("/in", h.stockIn, auth.RequirePermission("stock.in"))
	stock.POST("/out", h.stockOut, auth.RequirePermission("stock.out"))
	stock.GET("/movements", h.listMovements, auth.RequirePermission("stock.view"))
}

func (h *Handler) listMedicines(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListMedicines(c.Request().Context(),
		c.QueryParam("search"), c.QueryParam("category"), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createMedicine(c echo.Context) error {
	var in MedicineInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	m, err := h.svc.CreateMedicine(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "medicine created", m)
}

func (h *Handler) getMedicine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	m, err := h.svc.GetMedicine(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", m)
}

func (h *Handler) updateMedicine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in MedicineInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	m, err := h.svc.UpdateMedicine(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "medicine updated", m)
}

func (h *Handler) deleteMedicine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteMedicine(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "medicine deleted", nil)
}

func (h *Handler) availableBatches(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	batches, err := h.svc.AvailableBatches(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", batches)
}

func (h *Handler) stockIn(c echo.Context) error {
	var in StockInInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		in.CreatedBy = &uid
	}
	movement, err := h.svc.StockIn(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "stock added", movement)
}

func (h *Handler) stockOut(c echo.Context) error {
	var in StockOutInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		in.CreatedBy = &uid
	}
	movements, err := h.svc.StockOut(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "stock removed", movements)
}

func (h *Handler) listMovements(c echo.Context) error {
	p := pagination.FromContext(c)
	f := MovementFilter{
		Direction: c.QueryParam("direction"),
		Reason:    c.QueryParam("reason"),
		Limit:     p.Limit(),
		Offset:    p.Offset(),
	}
	if raw := c.QueryParam("medicine_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid medicine_id")
		}
		f.MedicineID = &id
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

	items, total, err := h.svc.ListMovements(c.Request().Context(), f)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}
