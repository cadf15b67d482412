package clinical

import (
	"time"

	"github.com/google/uuid"

	"github.com/medicore/hms/pkg/civil"
)

// Attachment describes a file attached to a medical record.
type Attachment struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type"`
	Size int64  `json:"size" validate:"gte=0"`
}

// MedicalRecord is one visit's diagnosis and treatment. Archived records are
// read-only and hidden from lists by default.
type MedicalRecord struct {
	ID          uuid.UUID    `json:"id"`
	PatientID   uuid.UUID    `json:"patientId" validate:"required"`
	Diagnosis   string       `json:"diagnosis" validate:"required"`
	Treatment   string       `json:"treatment" validate:"required"`
	VisitDate   civil.Date   `json:"visitDate"`
	Notes       string       `json:"notes,omitempty"`
	Attachments []Attachment `json:"attachments" validate:"dive"`
	ArchivedAt  *time.Time   `json:"archivedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type RecordFilter struct {
	PatientID       uuid.UUID
	IncludeArchived bool
}

type PrescriptionStatus string

const (
	PrescriptionActive    PrescriptionStatus = "active"
	PrescriptionCancelled PrescriptionStatus = "cancelled"
)

// Prescription lists medicines with their dosage and duration. The three
// slices are parallel: entry i of each describes the same medicine.
type Prescription struct {
	ID               uuid.UUID          `json:"id"`
	PatientID        uuid.UUID          `json:"patientId" validate:"required"`
	DoctorID         uuid.UUID          `json:"doctorId" validate:"required"`
	PrescriptionDate civil.Date         `json:"prescriptionDate"`
	Medicines        []string           `json:"medicines" validate:"min=1,dive,required"`
	Dosage           []string           `json:"dosage" validate:"min=1,dive,required"`
	Duration         []string           `json:"duration" validate:"min=1,dive,required"`
	Notes            string             `json:"notes,omitempty"`
	Status           PrescriptionStatus `json:"status" validate:"oneof=active cancelled"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

type PrescriptionFilter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    PrescriptionStatus
}
