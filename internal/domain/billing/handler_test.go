package billing

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

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
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

func createViaHandler(t *testing.T, h *Handler, e *echo.Echo, body string) Bill {
	t.Helper()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/bills", body), rec)
	if err := h.CreateBill(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	var b Bill
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandler_CreateBill(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patientId":"` + uuid.NewString() + `","billDate":"2024-06-01","dueDate":"2024-06-30",
		"services":[{"name":"Consultation","amount":100},{"name":"X-Ray","description":"chest","amount":50}],
		"paidAmount":150,"status":"pending"}`

	b := createViaHandler(t, h, e, body)
	if b.TotalAmount != 150 || b.Status != StatusPaid {
		t.Errorf("expected computed total 150 and status paid, got %v %s", b.TotalAmount, b.Status)
	}
	if b.BillDate.String() != "2024-06-01" {
		t.Errorf("unexpected bill date %s", b.BillDate)
	}
}

func TestHandler_CreateBill_Errors(t *testing.T) {
	h, e := newTestHandler()
	tests := []struct {
		name string
		body string
	}{
		{"empty services", `{"patientId":"` + uuid.NewString() + `","billDate":"2024-06-01","dueDate":"2024-06-30","services":[]}`},
		{"overpaid", `{"patientId":"` + uuid.NewString() + `","billDate":"2024-06-01","dueDate":"2024-06-30","services":[{"name":"a","amount":10}],"paidAmount":11}`},
		{"total too large", `{"patientId":"` + uuid.NewString() + `","billDate":"2024-06-01","dueDate":"2024-06-30","services":[{"name":"a","amount":60000000},{"name":"b","amount":60000000}]}`},
		{"bad date", `{"patientId":"` + uuid.NewString() + `","billDate":"June 1st","dueDate":"2024-06-30","services":[{"name":"a","amount":10}]}`},
		{"malformed", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(jsonRequest(http.MethodPost, "/api/bills", tt.body), httptest.NewRecorder())
			if code := httpCode(t, h.CreateBill(c)); code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
		})
	}
}

func TestHandler_GetBill(t *testing.T) {
	h, e := newTestHandler()
	b := newBill(0, 40)
	if err := h.svc.CreateBill(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())
	if err := h.GetBill(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	if code := httpCode(t, h.GetBill(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if code := httpCode(t, h.GetBill(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_UpdateBill_PartialBody(t *testing.T) {
	h, e := newTestHandler()
	b := newBill(0, 100, 100)
	if err := h.svc.CreateBill(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"paidAmount":50}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())
	if err := h.UpdateBill(c); err != nil {
		t.Fatal(err)
	}

	var got Bill
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusPartiallyPaid || got.TotalAmount != 200 || len(got.Services) != 2 {
		t.Errorf("unexpected bill after partial update: %+v", got)
	}
}

func TestHandler_RecordPaymentAndCancel(t *testing.T) {
	h, e := newTestHandler()
	b := newBill(0, 100)
	if err := h.svc.CreateBill(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"amount":30}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())
	if err := h.RecordPayment(c); err != nil {
		t.Fatal(err)
	}
	var got Bill
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.PaidAmount != 30 {
		t.Errorf("expected paid 30, got %v", got.PaidAmount)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())
	if err := h.CancelBill(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c = e.NewContext(jsonRequest(http.MethodPost, "/", `{"amount":10}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())
	if code := httpCode(t, h.RecordPayment(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_ListPatientBills(t *testing.T) {
	h, e := newTestHandler()
	patient := uuid.New()
	for i := 0; i < 2; i++ {
		b := newBill(0, 10)
		b.PatientID = patient
		h.svc.CreateBill(context.Background(), b)
	}
	h.svc.CreateBill(context.Background(), newBill(0, 10))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=1", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(patient.String())
	if err := h.ListPatientBills(c); err != nil {
		t.Fatal(err)
	}

	var resp pagination.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 || !resp.HasMore || resp.Limit != 1 {
		t.Errorf("unexpected page %+v", resp)
	}
}

func TestHandler_RoutesRequireBillingRole(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	for _, tt := range []struct {
		role string
		want int
	}{
		{auth.RoleDoctor, http.StatusForbidden},
		{auth.RoleStaff, http.StatusOK},
		{auth.RoleAdmin, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/bills", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), uuid.NewString(), tt.role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("role %s: expected %d, got %d", tt.role, tt.want, rec.Code)
		}
	}
}
