package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

func httpCode(t *testing.T, err error) (int, interface{}) {
	t.Helper()
	he, ok := HTTP(err).(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", HTTP(err))
	}
	return he.Code, he.Message
}

func TestHTTP_Kinds(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{Validation("paid amount exceeds total"), http.StatusBadRequest},
		{NotFound("bill not found"), http.StatusNotFound},
		{Conflict("appointment is already cancelled"), http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := httpCode(t, tt.err)
		if code != tt.code {
			t.Errorf("HTTP(%v) = %d, want %d", tt.err, code, tt.code)
		}
	}
}

func TestHTTP_HidesInternalText(t *testing.T) {
	_, msg := httpCode(t, errors.New("pq: password authentication failed"))
	if msg != "internal server error" {
		t.Errorf("expected generic message, got %v", msg)
	}
}

func TestHTTP_WrappedError(t *testing.T) {
	err := fmt.Errorf("update ward: %w", Conflict("ward has rooms"))
	code, msg := httpCode(t, err)
	if code != http.StatusConflict || msg != "ward has rooms" {
		t.Errorf("unexpected %d %v", code, msg)
	}
}

func TestFromDB(t *testing.T) {
	if FromDB(nil, "bill") != nil {
		t.Error("nil stays nil")
	}
	if KindOf(FromDB(pgx.ErrNoRows, "bill")) != KindNotFound {
		t.Error("expected not found")
	}
	if KindOf(FromDB(&pgconn.PgError{Code: "23505"}, "user")) != KindConflict {
		t.Error("expected conflict for unique violation")
	}
	if KindOf(FromDB(&pgconn.PgError{Code: "23503"}, "room")) != KindValidation {
		t.Error("expected validation for foreign key violation")
	}
	if KindOf(FromDB(&pgconn.PgError{Code: "22003"}, "bill")) != KindValidation {
		t.Error("expected numeric overflow to be a validation error")
	}
	if KindOf(FromDB(&pgconn.PgError{Code: "23514", ConstraintName: "wards_occupancy_check"}, "ward")) != KindValidation {
		t.Error("expected validation for check violation")
	}
	plain := errors.New("boom")
	if FromDB(plain, "x") != plain {
		t.Error("unclassified errors pass through")
	}
}

func TestError_Unwrap(t *testing.T) {
	err := FromDB(pgx.ErrNoRows, "patient")
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Error("expected wrapped ErrNoRows")
	}
	if err.Error() != "patient not found: no rows in result set" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
