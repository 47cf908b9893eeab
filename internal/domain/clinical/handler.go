package clinical

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
	records := g.Group("/medical-records")
	records.GET("", h.listRecords, auth.RequirePermission("medical_record.view"))
	records.POST("", h.createRecord, auth.RequirePermission("medical_record.create"))
	records.GET("/:id", h.getRecord, auth.RequirePermission("medical_record.view"))
	records.PUT("/:id", h.updateRecord, auth.RequirePermission("medical_record.update"))
	records.POST("/:id/finalize", h.finalizeRecord, auth.RequirePermission("medical_record.update"))
	records.POST("/:id/amend", h.amendRecord, auth.RequirePermission("medical_record.update"))

	prescriptions := g.Group("/prescriptions")
	prescriptions.GET("", h.listPrescriptions, auth.RequirePermission("prescription.view"))
	prescriptions.POST("", h.createPrescription, auth.RequirePermission("prescription.create"))
	prescriptions.GET("/:id", h.getPrescription, auth.RequirePermission("prescription.view"))
	prescriptions.POST("/:id/dispense", h.dispense, auth.RequirePermission("prescription.dispense"))
	prescriptions.POST("/:id/cancel", h.cancelPrescription, auth.RequirePermission("prescription.update"))
}

func (h *Handler) listRecords(c echo.Context) error {
	p := pagination.FromContext(c)
	f := RecordFilter{
		Status: c.QueryParam("status"),
		Limit:  p.Limit(),
		Offset: p.Offset(),
	}
	for param, dst := range map[string]**uuid.UUID{
		"patient_id":    &f.PatientID,
		"doctor_id":     &f.DoctorID,
		"department_id": &f.DepartmentID,
	} {
		if raw := c.QueryParam(param); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return apiresp.BadRequest(c, "invalid "+param)
			}
			*dst = &id
		}
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

	items, total, err := h.svc.ListRecords(c.Request().Context(), f)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createRecord(c echo.Context) error {
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	rec, err := h.svc.CreateRecord(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "medical record created", rec)
}

func (h *Handler) getRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", rec)
}

func (h *Handler) updateRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	rec, err := h.svc.UpdateRecord(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "medical record updated", rec)
}

func (h *Handler) finalizeRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	rec, err := h.svc.FinalizeRecord(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "medical record finalized", rec)
}

func (h *Handler) amendRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	rec, err := h.svc.Amend(c.Request().Context(), id, in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "medical record amended", rec)
}

func (h *Handler) listPrescriptions(c echo.Context) error {
	p := pagination.FromContext(c)
	f := PrescriptionFilter{
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
	if raw := c.QueryParam("medical_record_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apiresp.BadRequest(c, "invalid medical_record_id")
		}
		f.MedicalRecordID = &id
	}

	items, total, err := h.svc.ListPrescriptions(c.Request().Context(), f)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Collection(c, items, pagination.NewMeta(p, total))
}

func (h *Handler) createPrescription(c echo.Context) error {
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return apiresp.BadRequest(c, "invalid request body")
	}
	p, err := h.svc.CreatePrescription(c.Request().Context(), in)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.Created(c, "prescription created", p)
}

func (h *Handler) getPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "ok", p)
}

func (h *Handler) dispense(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	var dispensedBy *uuid.UUID
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		dispensedBy = &uid
	}
	p, err := h.svc.Dispense(c.Request().Context(), id, dispensedBy)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "prescription dispensed", p)
}

func (h *Handler) cancelPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apiresp.BadRequest(c, "invalid id")
	}
	p, err := h.svc.CancelPrescription(c.Request().Context(), id)
	if err != nil {
		return apiresp.Error(c, err)
	}
	return apiresp.OK(c, "prescription cancelled", p)
}
