package clinical

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the clinical endpoints. Every route needs the doctor
// role; admins pass any role check.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleDoctor))

	g.GET("/medical-records", h.ListRecords)
	g.GET("/medical-records/:id", h.GetRecord)
	g.GET("/medical-records/patient/:id", h.ListRecordsByPatient)
	g.GET("/patients/:id/medical-records", h.ListRecordsByPatient)
	g.POST("/medical-records", h.CreateRecord)
	g.PUT("/medical-records/:id", h.UpdateRecord)
	g.POST("/medical-records/:id/archive", h.ArchiveRecord)
	g.DELETE("/medical-records/:id", h.ArchiveRecord)

	g.GET("/prescriptions", h.ListPrescriptions)
	g.GET("/prescriptions/:id", h.GetPrescription)
	g.GET("/prescriptions/patient/:id", h.ListPrescriptionsByPatient)
	g.GET("/prescriptions/doctor/:id", h.ListPrescriptionsByDoctor)
	g.GET("/patients/:id/prescriptions", h.ListPrescriptionsByPatient)
	g.POST("/prescriptions", h.CreatePrescription)
	g.PUT("/prescriptions/:id", h.UpdatePrescription)
	g.POST("/prescriptions/:id/cancel", h.CancelPrescription)
	g.DELETE("/prescriptions/:id", h.CancelPrescription)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Medical Record Handlers --

func (h *Handler) CreateRecord(c echo.Context) error {
	var r MedicalRecord
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateRecord(c.Request().Context(), &r); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRecords(c echo.Context) error {
	patientID, err := queryUUID(c, "patientId")
	if err != nil {
		return err
	}
	return h.listRecords(c, patientID)
}

func (h *Handler) ListRecordsByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	return h.listRecords(c, id)
}

func (h *Handler) listRecords(c echo.Context, patientID uuid.UUID) error {
	f := RecordFilter{PatientID: patientID}
	if v := c.QueryParam("includeArchived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid includeArchived")
		}
		f.IncludeArchived = b
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecords(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := c.Bind(r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r.ID = id
	if err := h.svc.UpdateRecord(c.Request().Context(), r); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ArchiveRecord(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.ArchiveRecord(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if c.Request().Method == http.MethodDelete {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, r)
}

// -- Prescription Handlers --

func (h *Handler) CreatePrescription(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreatePrescription(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	f := PrescriptionFilter{Status: PrescriptionStatus(c.QueryParam("status"))}
	var err error
	if f.PatientID, err = queryUUID(c, "patientId"); err != nil {
		return err
	}
	if f.DoctorID, err = queryUUID(c, "doctorId"); err != nil {
		return err
	}
	return h.listPrescriptions(c, f)
}

func (h *Handler) ListPrescriptionsByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	return h.listPrescriptions(c, PrescriptionFilter{PatientID: id, Status: PrescriptionStatus(c.QueryParam("status"))})
}

func (h *Handler) ListPrescriptionsByDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	return h.listPrescriptions(c, PrescriptionFilter{DoctorID: id, Status: PrescriptionStatus(c.QueryParam("status"))})
}

func (h *Handler) listPrescriptions(c echo.Context, f PrescriptionFilter) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPrescriptions(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := c.Bind(p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = id
	if err := h.svc.UpdatePrescription(c.Request().Context(), p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CancelPrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CancelPrescription(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if c.Request().Method == http.MethodDelete {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, p)
}
