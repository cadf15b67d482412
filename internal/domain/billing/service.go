package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/internal/platform/validate"
	"github.com/medicore/hms/pkg/civil"
)

type Service struct {
	bills     BillRepository
	tx        db.Transactor
	publisher events.Publisher
	today     func() civil.Date
}

func NewService(bills BillRepository, tx db.Transactor, publisher events.Publisher) *Service {
	if tx == nil {
		tx = db.NoTx
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{bills: bills, tx: tx, publisher: publisher, today: civil.Today}
}

func (s *Service) CreateBill(ctx context.Context, b *Bill) error {
	if err := s.prepare(b); err != nil {
		return err
	}
	if err := s.bills.Create(ctx, b); err != nil {
		return apperr.FromDB(err, "bill")
	}
	s.decorate(b)
	s.publish(ctx, events.ActionCreated, b.ID)
	return nil
}

func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "bill")
	}
	s.decorate(b)
	return b, nil
}

// UpdateBill replaces the editable fields and re-runs the calculator.
// Cancelled bills are read-only.
func (s *Service) UpdateBill(ctx context.Context, b *Bill) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.bills.GetForUpdate(ctx, b.ID)
		if err != nil {
			return apperr.FromDB(err, "bill")
		}
		if current.Status == StatusCancelled {
			return apperr.Conflict("bill is cancelled")
		}
		if err := s.prepare(b); err != nil {
			return err
		}
		b.CreatedAt = current.CreatedAt
		return apperr.FromDB(s.bills.Update(ctx, b), "bill")
	})
	if err != nil {
		return err
	}
	s.decorate(b)
	s.publish(ctx, events.ActionUpdated, b.ID)
	return nil
}

// RecordPayment adds amount to the paid total and recomputes the status.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, amount float64) (*Bill, error) {
	cents, err := ToCents(amount)
	if err != nil {
		return nil, err
	}
	if cents <= 0 {
		return nil, apperr.Validation("payment amount must be greater than zero")
	}

	var bill *Bill
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.bills.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "bill")
		}
		switch b.Status {
		case StatusCancelled:
			return apperr.Conflict("bill is cancelled")
		case StatusPaid:
			return apperr.Conflict("bill is already paid")
		}
		paid, err := ToCents(b.PaidAmount)
		if err != nil {
			return err
		}
		b.PaidAmount = FromCents(paid + cents)
		if err := s.prepare(b); err != nil {
			return err
		}
		if err := s.bills.Update(ctx, b); err != nil {
			return apperr.FromDB(err, "bill")
		}
		bill = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.decorate(bill)
	s.publish(ctx, "paid", bill.ID)
	return bill, nil
}

// CancelBill voids a bill. Cancelling twice is a conflict, as is cancelling
// a bill that has already been settled.
func (s *Service) CancelBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	var bill *Bill
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.bills.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "bill")
		}
		switch b.Status {
		case StatusCancelled:
			return apperr.Conflict("bill is already cancelled")
		case StatusPaid:
			return apperr.Conflict("a paid bill cannot be cancelled")
		}
		b.Status = StatusCancelled
		if err := s.bills.Update(ctx, b); err != nil {
			return apperr.FromDB(err, "bill")
		}
		bill = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.decorate(bill)
	s.publish(ctx, "cancelled", bill.ID)
	return bill, nil
}

func (s *Service) ListBills(ctx context.Context, f Filter, limit, offset int) ([]*Bill, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Validation("status must be one of: pending, partially-paid, paid, overdue, cancelled")
	}
	items, total, err := s.bills.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, b := range items {
		s.decorate(b)
	}
	return items, total, nil
}

// prepare validates b and sets the derived fields.
func (s *Service) prepare(b *Bill) error {
	if err := validate.Struct(b); err != nil {
		return err
	}
	if b.BillDate.IsZero() {
		return apperr.Validation("billDate is required")
	}
	if b.DueDate.IsZero() {
		return apperr.Validation("dueDate is required")
	}
	if b.DueDate.Before(b.BillDate) {
		return apperr.Validation("dueDate must not be before billDate")
	}
	totals, err := Calculate(b.Services, b.PaidAmount)
	if err != nil {
		return err
	}
	b.TotalAmount = totals.Total()
	b.PaidAmount = totals.Paid()
	b.Status = totals.Status
	return nil
}

func (s *Service) decorate(b *Bill) {
	b.DisplayStatus = DisplayStatus(b.Status, b.DueDate, s.today())
}

func (s *Service) publish(ctx context.Context, action string, id uuid.UUID) {
	s.publisher.Publish(ctx, events.Change{Resource: events.Bills, Action: action, ID: id.String(), At: time.Now().UTC()})
}

func validStatus(st Status) bool {
	switch st {
	case StatusPending, StatusPartiallyPaid, StatusPaid, StatusCancelled, StatusOverdue:
		return true
	}
	return false
}
