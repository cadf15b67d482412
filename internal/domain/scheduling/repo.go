package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/medicore/hms/pkg/civil"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	// SlotTaken reports whether the doctor already has a scheduled
	// appointment at date and clock, ignoring the appointment exclude.
	SlotTaken(ctx context.Context, doctorID uuid.UUID, date civil.Date, clock string, exclude uuid.UUID) (bool, error)
}
