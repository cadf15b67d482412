package scheduling

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/internal/platform/validate"
)

var ErrSlotTaken = apperr.Conflict("doctor already has an appointment at that time")

// slotIndex backs checkSlot when two bookings race for the same slot.
const slotIndex = "idx_appointments_doctor_slot"

type Service struct {
	appointments AppointmentRepository
	tx           db.Transactor
	publisher    events.Publisher
}

func NewService(appointments AppointmentRepository, tx db.Transactor, publisher events.Publisher) *Service {
	if tx == nil {
		tx = db.NoTx
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{appointments: appointments, tx: tx, publisher: publisher}
}

// CreateAppointment books a new appointment. New appointments always start
// scheduled.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Status != StatusScheduled {
		return apperr.Validation("new appointments must be scheduled, got %q", a.Status)
	}
	if err := check(a); err != nil {
		return err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkSlot(ctx, a); err != nil {
			return err
		}
		return saveErr(s.appointments.Create(ctx, a))
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.ActionCreated, a.ID)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "appointment")
	}
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("unknown appointment status %q", f.Status)
	}
	return s.appointments.List(ctx, f, limit, offset)
}

// UpdateAppointment saves edits. Status may only move along an allowed
// edge, and terminal appointments accept notes edits only.
func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	action := events.ActionUpdated
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.appointments.GetForUpdate(ctx, a.ID)
		if err != nil {
			return apperr.FromDB(err, "appointment")
		}
		if a.Status == "" {
			a.Status = current.Status
		}
		if !a.Status.Valid() {
			return apperr.Validation("status must be one of: scheduled, completed, cancelled")
		}
		if current.Status.Terminal() {
			if !onlyNotesChanged(current, a) {
				return apperr.Conflict("appointment is %s; only notes can be edited", current.Status)
			}
		} else if !CanTransition(current.Status, a.Status) {
			return apperr.Conflict("cannot move appointment from %s to %s", current.Status, a.Status)
		}
		if err := check(a); err != nil {
			return err
		}
		if a.Status == StatusScheduled && slotChanged(current, a) {
			if err := s.checkSlot(ctx, a); err != nil {
				return err
			}
		}
		a.CreatedAt = current.CreatedAt
		if err := s.appointments.Update(ctx, a); err != nil {
			return saveErr(err)
		}
		if a.Status != current.Status {
			action = string(a.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, action, a.ID)
	return nil
}

// CancelAppointment is also the delete operation for appointments.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "appointment")
		}
		if a.Status == to {
			return apperr.Conflict("appointment is already %s", to)
		}
		if !CanTransition(a.Status, to) {
			return apperr.Conflict("cannot move appointment from %s to %s", a.Status, to)
		}
		a.Status = to
		if err := s.appointments.Update(ctx, a); err != nil {
			return saveErr(err)
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, string(to), appt.ID)
	return appt, nil
}

// RescheduleAppointment moves a scheduled appointment to a new date and
// time, optionally replacing the reason.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	if req.Date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "appointment")
		}
		if a.Status != StatusScheduled {
			return apperr.Conflict("only scheduled appointments can be rescheduled")
		}
		a.Date = req.Date
		a.Time = req.Time
		if r := strings.TrimSpace(req.Reason); r != "" {
			a.Reason = r
		}
		if err := s.checkSlot(ctx, a); err != nil {
			return err
		}
		if err := s.appointments.Update(ctx, a); err != nil {
			return saveErr(err)
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "rescheduled", appt.ID)
	return appt, nil
}

func (s *Service) checkSlot(ctx context.Context, a *Appointment) error {
	taken, err := s.appointments.SlotTaken(ctx, a.DoctorID, a.Date, a.Time, a.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotTaken
	}
	return nil
}

func saveErr(err error) error {
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == slotIndex {
		return ErrSlotTaken
	}
	return apperr.FromDB(err, "appointment")
}

func check(a *Appointment) error {
	a.Time = strings.TrimSpace(a.Time)
	a.Reason = strings.TrimSpace(a.Reason)
	if err := validate.Struct(a); err != nil {
		return err
	}
	if a.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	return nil
}

func onlyNotesChanged(current, next *Appointment) bool {
	return current.PatientID == next.PatientID &&
		current.DoctorID == next.DoctorID &&
		current.Date == next.Date &&
		current.Time == next.Time &&
		current.Status == next.Status &&
		current.Reason == next.Reason
}

func slotChanged(current, next *Appointment) bool {
	return current.DoctorID != next.DoctorID || current.Date != next.Date ||
		current.Time != next.Time || current.Status != StatusScheduled
}

func (s *Service) publish(ctx context.Context, action string, id uuid.UUID) {
	s.publisher.Publish(ctx, events.NewChange(events.Appointments, action, id))
}
