package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/medicore/hms/pkg/civil"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment is a patient visit booked with a doctor. Time is a 24h HH:MM
// clock reading on Date.
type Appointment struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patientId" validate:"required"`
	DoctorID  uuid.UUID  `json:"doctorId" validate:"required"`
	Date      civil.Date `json:"date"`
	Time      string     `json:"time" validate:"required,clock"`
	Status    Status     `json:"status" validate:"oneof=scheduled completed cancelled"`
	Reason    string     `json:"reason" validate:"required"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Filter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      civil.Date
	Status    Status
}

type RescheduleRequest struct {
	Date   civil.Date `json:"date"`
	Time   string     `json:"time" validate:"required,clock"`
	Reason string     `json:"reason"`
}
