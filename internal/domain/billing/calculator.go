package billing

import (
	"math"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/pkg/civil"
)

var (
	ErrNoServices        = apperr.Validation("a bill needs at least one service")
	ErrNonPositiveAmount = apperr.Validation("service amounts must be greater than zero")
	ErrNegativePayment   = apperr.Validation("paid amount must not be negative")
	ErrOverpaid          = apperr.Validation("paid amount exceeds the bill total")
	ErrInvalidAmount     = apperr.Validation("amount is not a valid number")
	ErrTotalTooLarge     = apperr.Validation("bill total exceeds 99999999.99")
)

// MaxTotalCents is the largest total the bills table can store
// (NUMERIC(10, 2)).
const MaxTotalCents int64 = 9_999_999_999

// Totals is the calculator's output, in cents.
type Totals struct {
	TotalCents int64
	PaidCents  int64
	Status     Status
}

func (t Totals) Total() float64 { return FromCents(t.TotalCents) }
func (t Totals) Paid() float64  { return FromCents(t.PaidCents) }

// ToCents converts a currency amount to integer cents, rounding half away
// from zero.
func ToCents(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || math.Abs(amount) > 1e12 {
		return 0, ErrInvalidAmount
	}
	return int64(math.Round(amount * 100)), nil
}

func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// Calculate derives the bill total from its services and the status from the
// paid/total relationship. Arithmetic is done in cents.
func Calculate(services []ServiceLine, paid float64) (Totals, error) {
	if len(services) == 0 {
		return Totals{}, ErrNoServices
	}

	var total int64
	for _, s := range services {
		cents, err := ToCents(s.Amount)
		if err != nil {
			return Totals{}, err
		}
		if cents <= 0 {
			return Totals{}, ErrNonPositiveAmount
		}
		total += cents
		if total > MaxTotalCents {
			return Totals{}, ErrTotalTooLarge
		}
	}

	paidCents, err := ToCents(paid)
	if err != nil {
		return Totals{}, err
	}
	if paidCents < 0 {
		return Totals{}, ErrNegativePayment
	}
	if paidCents > total {
		return Totals{}, ErrOverpaid
	}

	return Totals{TotalCents: total, PaidCents: paidCents, Status: statusFor(total, paidCents)}, nil
}

func statusFor(total, paid int64) Status {
	switch {
	case paid == 0:
		return StatusPending
	case paid == total:
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}

// DisplayStatus is the status shown to users: unpaid bills past their due
// date read as overdue. The stored status is unchanged.
func DisplayStatus(status Status, due, today civil.Date) Status {
	if status == StatusPaid || status == StatusCancelled {
		return status
	}
	if !due.IsZero() && today.After(due) {
		return StatusOverdue
	}
	return status
}
