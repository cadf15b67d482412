package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/medicore/hms/pkg/civil"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusPartiallyPaid Status = "partially-paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
)

// ServiceLine is one billable service on a bill.
type ServiceLine struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// Bill maps to the bills table. TotalAmount and Status are always derived
// from Services and PaidAmount; DisplayStatus is computed on read.
type Bill struct {
	ID            uuid.UUID     `json:"id"`
	PatientID     uuid.UUID     `json:"patientId" validate:"required"`
	BillDate      civil.Date    `json:"billDate"`
	DueDate       civil.Date    `json:"dueDate"`
	Services      []ServiceLine `json:"services" validate:"dive"`
	TotalAmount   float64       `json:"totalAmount"`
	PaidAmount    float64       `json:"paidAmount"`
	Status        Status        `json:"status"`
	DisplayStatus Status        `json:"displayStatus"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Filter narrows bill listings. Zero values match everything. Status
// "overdue" matches unpaid bills past their due date.
type Filter struct {
	PatientID uuid.UUID
	Status    Status
}

// PaymentRequest is the body of POST /bills/:id/payments.
type PaymentRequest struct {
	Amount float64 `json:"amount"`
}
