// Package reporting evaluates predefined aggregate measures over the
// hospital data and exports them as JSON, CSV or XLSX.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/pkg/civil"
)

// MeasureDefinition is a named aggregate query returning Columns. Measures
// with a DateFilter take two nullable date parameters ($1 from, $2 to);
// the others take none and ignore from/to.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
	DateFilter  string   `json:"dateFilter,omitempty"`
	SQL         string   `json:"-"`
}

// Report holds one evaluation of a measure.
type Report struct {
	MeasureID   string           `json:"measureId"`
	MeasureName string           `json:"measureName"`
	GeneratedAt time.Time        `json:"generatedAt"`
	From        *civil.Date      `json:"from,omitempty"`
	To          *civil.Date      `json:"to,omitempty"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
}

// Values returns the rows as ordered cells, following Columns.
func (r *Report) Values() [][]any {
	out := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]any, len(r.Columns))
		for j, col := range r.Columns {
			cells[j] = row[col]
		}
		out[i] = cells
	}
	return out
}

var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patients-by-status",
		Name:        "Patients by Status",
		Description: "Number of patients per status, by registration date",
		Columns:     []string{"status", "total"},
		DateFilter:  "created",
		SQL: `SELECT status, COUNT(*) AS total
			FROM patients
			WHERE ($1::date IS NULL OR created_at::date >= $1)
			  AND ($2::date IS NULL OR created_at::date <= $2)
			GROUP BY status ORDER BY status`,
	},
	{
		ID:          "appointments-by-status",
		Name:        "Appointments by Status",
		Description: "Number of appointments per status, by appointment date",
		Columns:     []string{"status", "total"},
		DateFilter:  "appointmentDate",
		SQL: `SELECT status, COUNT(*) AS total
			FROM appointments
			WHERE ($1::date IS NULL OR appointment_date >= $1)
			  AND ($2::date IS NULL OR appointment_date <= $2)
			GROUP BY status ORDER BY status`,
	},
	{
		ID:          "appointments-by-doctor",
		Name:        "Appointments by Doctor",
		Description: "Scheduled, completed and cancelled appointments per doctor",
		Columns:     []string{"doctor", "specialization", "scheduled", "completed", "cancelled", "total"},
		DateFilter:  "appointmentDate",
		SQL: `SELECT u.full_name AS doctor, d.specialization,
				COUNT(*) FILTER (WHERE a.status = 'scheduled') AS scheduled,
				COUNT(*) FILTER (WHERE a.status = 'completed') AS completed,
				COUNT(*) FILTER (WHERE a.status = 'cancelled') AS cancelled,
				COUNT(*) AS total
			FROM appointments a
			JOIN doctors d ON d.id = a.doctor_id
			JOIN users u ON u.id = d.user_id
			WHERE ($1::date IS NULL OR a.appointment_date >= $1)
			  AND ($2::date IS NULL OR a.appointment_date <= $2)
			GROUP BY u.full_name, d.specialization
			ORDER BY total DESC, doctor`,
	},
	{
		ID:          "bills-by-status",
		Name:        "Bills by Status",
		Description: "Bill counts, billed and collected amounts per status, by bill date",
		Columns:     []string{"status", "total", "billed", "collected", "outstanding"},
		DateFilter:  "billDate",
		SQL: `SELECT status, COUNT(*) AS total,
				COALESCE(SUM(total_amount), 0)::float8 AS billed,
				COALESCE(SUM(paid_amount), 0)::float8 AS collected,
				COALESCE(SUM(total_amount - paid_amount), 0)::float8 AS outstanding
			FROM bills
			WHERE ($1::date IS NULL OR bill_date >= $1)
			  AND ($2::date IS NULL OR bill_date <= $2)
			GROUP BY status ORDER BY status`,
	},
	{
		ID:          "ward-occupancy",
		Name:        "Ward Occupancy",
		Description: "Occupied beds and rooms per ward",
		Columns:     []string{"wardNumber", "wardType", "status", "capacity", "occupiedBeds", "occupancyPct", "rooms", "occupiedRooms"},
		SQL: `SELECT w.ward_number AS "wardNumber", w.ward_type AS "wardType", w.status,
				w.capacity, w.occupied_beds AS "occupiedBeds",
				ROUND(100.0 * w.occupied_beds / w.capacity, 1)::float8 AS "occupancyPct",
				COUNT(r.id) AS rooms,
				COUNT(r.id) FILTER (WHERE r.occupied) AS "occupiedRooms"
			FROM wards w
			LEFT JOIN rooms r ON r.ward_id = w.id
			GROUP BY w.id
			ORDER BY w.ward_number`,
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Service evaluates measures against the database.
type Service struct {
	conn db.Querier
	now  func() time.Time
}

func NewService(conn db.Querier) *Service {
	return &Service{conn: conn, now: time.Now}
}

// Evaluate runs a measure. Zero from/to dates leave that side unbounded.
func (s *Service) Evaluate(ctx context.Context, id string, from, to civil.Date) (*Report, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, apperr.NotFound("report %q not found", id)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperr.Validation("to must not be before from")
	}

	var args []any
	if m.DateFilter != "" {
		args = []any{from, to}
	}
	rows, err := s.conn.Query(ctx, m.SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", m.ID, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", m.ID, err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", m.ID, err)
	}

	report := &Report{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: s.now().UTC(),
		Columns:     m.Columns,
		Rows:        results,
	}
	if !from.IsZero() {
		report.From = &from
	}
	if !to.IsZero() {
		report.To = &to
	}
	return report, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAdmin, auth.RoleStaff))
	g.GET("", h.ListMeasures)
	g.GET("/:id", h.Export)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// Export evaluates a measure and writes it in the requested format
// (json by default, csv or xlsx as attachments).
func (h *Handler) Export(c echo.Context) error {
	format := Format(c.QueryParam("format"))
	if format == "" {
		format = FormatJSON
	}
	if !format.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be one of: json, csv, xlsx")
	}

	from, err := dateParam(c, "from")
	if err != nil {
		return err
	}
	to, err := dateParam(c, "to")
	if err != nil {
		return err
	}

	report, err := h.svc.Evaluate(c.Request().Context(), c.Param("id"), from, to)
	if err != nil {
		return apperr.HTTP(err)
	}

	if format == FormatJSON {
		return c.JSON(http.StatusOK, report)
	}

	c.Response().Header().Set(echo.HeaderContentType, format.ContentType())
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, format.Filename(report)))
	c.Response().WriteHeader(http.StatusOK)
	return Write(c.Response(), format, report)
}

func dateParam(c echo.Context, name string) (civil.Date, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return civil.Date{}, nil
	}
	d, err := civil.Parse(raw)
	if err != nil {
		return civil.Date{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be a date (YYYY-MM-DD)")
	}
	return d, nil
}
