package purchasing

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
	suppliers := g.Group("/suppliers")
	suppliers.GET("", h.listSuppliers, auth.RequirePermission("supplier.view"))
	suppliers.POST("", h.createSupplier, auth.RequirePermission("supplier.create"))
	suppliers.GET("/:id", h.getSupplier, auth.RequirePermission("supplier.view"))
	suppliers.PUT("/:id", h.updateSupplier, auth.RequirePermission("supplier.update"))
	suppliers.DELETE("/:id", h.deleteSupplier, auth.RequirePermission("supplier.delete"))

	orders := g.Group("/purchase-orders")
	orders.GET("", h.listOrders, auth.RequirePermission("purchase.view"))
	orders.POST("", h.createOrder, auth.RequirePermission("purchase.create"))
	orders.GET("/:id", h.getOrder, auth.RequirePermission("purchase.view"))
	orders.PUT("/:id", h.updateOrder, auth.RequirePermission("purchase.update"))
	orders.POST("/:id/submit", h.submitOrder, auth.RequirePermission("purchase.update"))
	orders.POST("/:id/approve", h.approveOrder, auth.RequirePermission("purchase.approve"))
	orders.POST("/:id/reject", h.rejectOrder, auth.RequirePermission("purchase.approve"))
	orders.POST("/:id/order", h.markOrdered, auth.RequirePermission("purchase.update"))
	orders.POST("/:id/cancel", h.cancelOrder, auth.RequirePermission("purchase.update"))

	receipts := g.Group("/goods-receipts")
	receipts.GET("", h.listReceipts, auth.RequirePermission("purchase.view"))
	receipts.POST("", h.createReceipt, auth.RequirePermission("purchase.receive"))
	receipts.GET("/:id", h.getReceipt, auth.RequirePermission("purchase.view"))
	receipts.POST("/:id/complete", h.completeReceipt, auth.RequirePermission("purchase.receive"))
	receipts.POST("/:id/cancel", h.cancelReceipt, auth.RequirePermission("purchase.receive"))
}

func (h *Handler) listSuppliers(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListSuppliers(c.Request().Context(),
		c.QueryParam("search"), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createSupplier(c echo.Context) error {
	var in SupplierInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	sup, err := h.svc.CreateSupplier(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "supplier created", sup)
}

func (h *Handler) getSupplier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	sup, err := h.svc.GetSupplier(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", sup)
}

func (h *Handler) updateSupplier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in SupplierInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	sup, err := h.svc.UpdateSupplier(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "supplier updated", sup)
}

func (h *Handler) deleteSupplier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteSupplier(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "supplier deleted", nil)
}

func (h *Handler) listOrders(c echo.Context) error {
	p := pagination.FromContext(c)
	f := OrderFilter{
		Status: c.QueryParam("status"),
		Limit:  p.Limit(),
		Offset: p.Offset(),
	}
	if raw := c.QueryParam("supplier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid supplier_id")
		}
		f.SupplierID = &id
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

	items, total, err := h.svc.ListOrders(c.Request().Context(), f)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createOrder(c echo.Context) error {
	var in OrderInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	po, err := h.svc.CreateOrder(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "purchase order created", po)
}

func (h *Handler) getOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	po, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", po)
}

func (h *Handler) updateOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in OrderInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	po, err := h.svc.UpdateOrder(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "purchase order updated", po)
}

func (h *Handler) submitOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	po, err := h.svc.Submit(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "purchase order submitted", po)
}

func (h *Handler) approveOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	approverID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apiresp.Unauthorized(c, "unauthorized")
	}
	po, err := h.svc.Approve(c.Request().Context(), id, approverID)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "purchase order approved", po)
}

func (h *Handler) rejectOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in struct {
		Reason string `json:"rejection_reason"`
	}
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	po, err := h.svc.Reject(c.Request().Context(), id, in.Reason)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "purchase order rejected", po)
}

func (h *Handler) markOrdered(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	po, err := h.svc.MarkOrdered(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "purchase order marked as ordered", po)
}

func (h *Handler) cancelOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	po, err := h.svc.CancelOrder(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "purchase order cancelled", po)
}

func (h *Handler) listReceipts(c echo.Context) error {
	p := pagination.FromContext(c)
	f := ReceiptFilter{
		Status: c.QueryParam("status"),
		Limit:  p.Limit(),
		Offset: p.Offset(),
	}
	if raw := c.QueryParam("supplier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid supplier_id")
		}
		f.SupplierID = &id
	}
	if raw := c.QueryParam("purchase_order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid purchase_order_id")
		}
		f.PurchaseOrderID = &id
	}

	items, total, err := h.svc.ListReceipts(c.Request().Context(), f)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createReceipt(c echo.Context) error {
	var in ReceiptInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	gr, err := h.svc.CreateReceipt(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "goods receipt created", gr)
}

func (h *Handler) getReceipt(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	gr, err := h.svc.GetReceipt(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", gr)
}

func (h *Handler) completeReceipt(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	gr, err := h.svc.CompleteReceipt(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "goods receipt completed", gr)
}

func (h *Handler) cancelReceipt(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	gr, err := h.svc.CancelReceipt(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "goods receipt cancelled", gr)
}
