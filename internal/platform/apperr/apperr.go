// Package apperr classifies service errors so handlers can map them to
// HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/db"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

// Error carries a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, KindInternal when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromDB classifies a repository error. what names the resource, e.g.
// "patient".
func FromDB(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
	case db.IsUniqueViolation(err):
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	case db.IsForeignKeyViolation(err):
		return &Error{Kind: KindValidation, Message: what + " references a record that does not exist", Err: err}
	case db.IsOutOfRange(err):
		return &Error{Kind: KindValidation, Message: what + " has a value out of range", Err: err}
	case db.IsCheckViolation(err):
		return &Error{Kind: KindValidation, Message: what + " violates constraint " + db.ConstraintName(err), Err: err}
	}
	return err
}

// HTTP converts err into an *echo.HTTPError. Unclassified errors become a
// generic 500 without the underlying text.
func HTTP(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	code := http.StatusInternalServerError
	switch e.Kind {
	case KindValidation:
		code = http.StatusBadRequest
	case KindNotFound:
		code = http.StatusNotFound
	case KindConflict:
		code = http.StatusConflict
	}
	return echo.NewHTTPError(code, e.Message).SetInternal(err)
}
