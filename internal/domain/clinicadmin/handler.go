package clinicadmin

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
	departments := g.Group("/departments")
	departments.GET("", h.listDepartments, auth.RequirePermission("department.view"))
	departments.POST("", h.createDepartment, auth.RequirePermission("department.create"))
	departments.GET("/:id", h.getDepartment, auth.RequirePermission("department.view"))
	departments.PUT("/:id", h.updateDepartment, auth.RequirePermission("department.update"))
	departments.DELETE("/:id", h.deleteDepartment, auth.RequirePermission("department.delete"))

	services := g.Group("/services")
	services.GET("", h.listServices, auth.RequirePermission("service.view"))
	services.POST("", h.createService, auth.RequirePermission("service.create"))
	services.GET("/:id", h.getService, auth.RequirePermission("service.view"))
	services.PUT("/:id", h.updateService, auth.RequirePermission("service.update"))
	services.DELETE("/:id", h.deleteService, auth.RequirePermission("service.delete"))

	profile := g.Group("/clinic-profile")
	profile.GET("", h.getProfile, auth.RequirePermission("clinic.view"))
	profile.PUT("", h.updateProfile, auth.RequirePermission("clinic.update"))
	profile.POST("/logo", h.uploadLogo, auth.RequirePermission("clinic.update"))
	profile.POST("/favicon", h.uploadFavicon, auth.RequirePermission("clinic.update"))

	icd := g.Group("/icd-codes")
	icd.GET("", h.listICDCodes, auth.RequirePermission("icd.view"))
	icd.POST("/import", h.importICDCodes, auth.RequirePermission("icd.import"))
}

func (h *Handler) listDepartments(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListDepartments(c.Request().Context(), c.QueryParam("search"), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createDepartment(c echo.Context) error {
	var in DepartmentInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	d, err := h.svc.CreateDepartment(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "department created", d)
}

func (h *Handler) getDepartment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", d)
}

func (h *Handler) updateDepartment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in DepartmentInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	d, err := h.svc.UpdateDepartment(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "department updated", d)
}

func (h *Handler) deleteDepartment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteDepartment(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "department deleted", nil)
}

func (h *Handler) listServices(c echo.Context) error {
	p := pagination.FromContext(c)

	var departmentID *uuid.UUID
	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid department_id")
		}
		departmentID = &id
	}

	items, total, err := h.svc.ListServices(c.Request().Context(), c.QueryParam("search"), departmentID, p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createService(c echo.Context) error {
	var in ServiceInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	svc, err := h.svc.CreateService(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "service created", svc)
}

func (h *Handler) getService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	svc, err := h.svc.GetService(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", svc)
}

func (h *Handler) updateService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in ServiceInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	svc, err := h.svc.UpdateService(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "service updated", svc)
}

func (h *Handler) deleteService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteService(c.Request().Context(), id); err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "service deleted", nil)
}

func (h *Handler) getProfile(c echo.Context) error {
	p, err := h.svc.GetProfile(c.Request().Context())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", p)
}

func (h *Handler) updateProfile(c echo.Context) error {
	var in ProfileInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "clinic profile updated", p)
}

func (h *Handler) uploadLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return apiresp.BadRequest(c, "logo file is required")
	}
	p, err := h.svc.UploadLogo(c.Request().Context(), fh)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "logo uploaded", p)
}

func (h *Handler) uploadFavicon(c echo.Context) error {
	fh, err := c.FormFile("favicon")
	if err != nil {
		return apiresp.BadRequest(c, "favicon file is required")
	}
	p, err := h.svc.UploadFavicon(c.Request().Context(), fh)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "favicon uploaded", p)
}

func (h *Handler) listICDCodes(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListICDCodes(c.Request().Context(), c.QueryParam("search"), p.Limit(), p.Offset())
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) importICDCodes(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apiresp.BadRequest(c, "import file is required")
	}
	result, err := h.svc.ImportICDCodes(c.Request().Context(), fh)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "icd codes imported", result)
}
