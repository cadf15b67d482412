package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/pkg/pagination"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func appointmentBody(doctorID uuid.UUID, clock string) string {
	return `{"patientId":"` + uuid.NewString() + `","doctorId":"` + doctorID.String() +
		`","date":"2024-06-15","time":"` + clock + `","reason":"Fever"}`
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, _, e := newTestHandler()
	doctor := uuid.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", appointmentBody(doctor, "08:45")), rec)
	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var a Appointment
	json.Unmarshal(rec.Body.Bytes(), &a)
	if a.Status != StatusScheduled || a.Date.String() != "2024-06-15" {
		t.Errorf("unexpected appointment %+v", a)
	}

	c = e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", appointmentBody(doctor, "08:45")), httptest.NewRecorder())
	if code := httpCode(t, h.CreateAppointment(c)); code != http.StatusConflict {
		t.Errorf("expected 409 for double booking, got %d", code)
	}
	c = e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", appointmentBody(doctor, "8:45")), httptest.NewRecorder())
	if code := httpCode(t, h.CreateAppointment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad time, got %d", code)
	}
}

func TestHandler_DeleteCancels(t *testing.T) {
	h, svc, e := newTestHandler()
	a := create(t, svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	got, err := svc.GetAppointment(context.Background(), a.ID)
	if err != nil || got.Status != StatusCancelled {
		t.Errorf("expected row kept as cancelled, got %+v %v", got, err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.CompleteAppointment(c)); code != http.StatusConflict {
		t.Errorf("expected 409 completing a cancelled appointment, got %d", code)
	}
}

func TestHandler_UpdateAppointment_TerminalNotesOnly(t *testing.T) {
	h, svc, e := newTestHandler()
	a := create(t, svc)
	if _, err := svc.CompleteAppointment(context.Background(), a.ID); err != nil {
		t.Fatal(err)
	}

	put := func(body string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodPut, "/", body), rec)
		c.SetParamNames("id")
		c.SetParamValues(a.ID.String())
		return rec, h.UpdateAppointment(c)
	}

	rec, err := put(`{"notes":"prescribed rest"}`)
	if err != nil {
		t.Fatalf("notes edit: %v", err)
	}
	var got Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Notes != "prescribed rest" || got.Status != StatusCompleted {
		t.Errorf("unexpected appointment %+v", got)
	}

	if _, err := put(`{"status":"scheduled"}`); httpCode(t, err) != http.StatusConflict {
		t.Errorf("expected 409 reopening, got %v", err)
	}
	if _, err := put(`{"time":"16:00"}`); httpCode(t, err) != http.StatusConflict {
		t.Errorf("expected 409 moving a completed appointment, got %v", err)
	}
}

func TestHandler_Reschedule(t *testing.T) {
	h, svc, e := newTestHandler()
	a := create(t, svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"date":"2024-06-18","time":"15:30"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.RescheduleAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Date.String() != "2024-06-18" || got.Time != "15:30" {
		t.Errorf("unexpected appointment %+v", got)
	}
}

func TestHandler_ListByDate(t *testing.T) {
	h, svc, e := newTestHandler()
	create(t, svc)
	create(t, svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=1", nil), rec)
	c.SetParamNames("date")
	c.SetParamValues("2024-06-15")
	if err := h.ListByDate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 || !resp.HasMore {
		t.Errorf("unexpected page %+v", resp)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("date")
	c.SetParamValues("15-06-2024")
	if code := httpCode(t, h.ListByDate(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?doctorId=bogus", nil), httptest.NewRecorder())
	if code := httpCode(t, h.ListAppointments(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad doctorId, got %d", code)
	}
}

func TestHandler_RoutesRoles(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	for _, tt := range []struct {
		method, path, role string
		want               int
	}{
		{http.MethodGet, "/api/appointments", auth.RolePatient, http.StatusOK},
		{http.MethodGet, "/api/patients/" + uuid.NewString() + "/appointments", auth.RolePatient, http.StatusOK},
		{http.MethodPost, "/api/appointments", auth.RolePatient, http.StatusForbidden},
		{http.MethodPost, "/api/appointments", auth.RoleStaff, http.StatusBadRequest},
		{http.MethodPost, "/api/appointments", auth.RoleDoctor, http.StatusBadRequest},
	} {
		req := jsonRequest(tt.method, tt.path, `{}`)
		req = req.WithContext(auth.WithIdentity(req.Context(), uuid.NewString(), tt.role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s as %s: expected %d, got %d", tt.method, tt.path, tt.role, tt.want, rec.Code)
		}
	}
}
