package clinical

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/internal/platform/validate"
	"github.com/medicore/hms/pkg/civil"
)

var (
	ErrRecordArchived        = apperr.Conflict("medical record is archived")
	ErrPrescriptionCancelled = apperr.Conflict("prescription is cancelled")
	ErrPrescriptionLengths   = apperr.Validation("medicines, dosage and duration must have the same number of entries")
	ErrPrescriptionNewStatus = apperr.Validation("new prescriptions must be active")
	ErrVisitDateInFuture     = apperr.Validation("visitDate cannot be in the future")
)

type Service struct {
	records       MedicalRecordRepository
	prescriptions PrescriptionRepository
	tx            db.Transactor
	publisher     events.Publisher
}

func NewService(records MedicalRecordRepository, prescriptions PrescriptionRepository, tx db.Transactor, publisher events.Publisher) *Service {
	if tx == nil {
		tx = db.NoTx
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{records: records, prescriptions: prescriptions, tx: tx, publisher: publisher}
}

// -- Medical Records --

func (s *Service) CreateRecord(ctx context.Context, r *MedicalRecord) error {
	r.ArchivedAt = nil
	if err := checkRecord(r); err != nil {
		return err
	}
	if err := s.records.Create(ctx, r); err != nil {
		return apperr.FromDB(err, "medical record")
	}
	s.publisher.Publish(ctx, events.NewChange(events.MedicalRecords, events.ActionCreated, r.ID))
	return nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "medical record")
	}
	return r, nil
}

func (s *Service) ListRecords(ctx context.Context, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.records.List(ctx, f, limit, offset)
}

// UpdateRecord saves edits to a live record. Archived records are read-only.
func (s *Service) UpdateRecord(ctx context.Context, r *MedicalRecord) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.records.GetByID(ctx, r.ID)
		if err != nil {
			return apperr.FromDB(err, "medical record")
		}
		if current.ArchivedAt != nil {
			return ErrRecordArchived
		}
		r.ArchivedAt = nil
		r.CreatedAt = current.CreatedAt
		if err := checkRecord(r); err != nil {
			return err
		}
		return apperr.FromDB(s.records.Update(ctx, r), "medical record")
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(ctx, events.NewChange(events.MedicalRecords, events.ActionUpdated, r.ID))
	return nil
}

// ArchiveRecord hides a record from default listings. It is also the delete
// operation for medical records.
func (s *Service) ArchiveRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	var archived *MedicalRecord
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.records.GetByID(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "medical record")
		}
		if current.ArchivedAt != nil {
			return apperr.Conflict("medical record is already archived")
		}
		archived, err = s.records.Archive(ctx, id)
		return apperr.FromDB(err, "medical record")
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.NewChange(events.MedicalRecords, "archived", id))
	return archived, nil
}

func checkRecord(r *MedicalRecord) error {
	r.Diagnosis = strings.TrimSpace(r.Diagnosis)
	r.Treatment = strings.TrimSpace(r.Treatment)
	if r.VisitDate.IsZero() {
		r.VisitDate = civil.Today()
	}
	if r.Attachments == nil {
		r.Attachments = []Attachment{}
	}
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.VisitDate.After(civil.Today()) {
		return ErrVisitDateInFuture
	}
	return nil
}

// -- Prescriptions --

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.Status == "" {
		p.Status = PrescriptionActive
	}
	if p.Status != PrescriptionActive {
		return ErrPrescriptionNewStatus
	}
	if err := checkPrescription(p); err != nil {
		return err
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return apperr.FromDB(err, "prescription")
	}
	s.publisher.Publish(ctx, events.NewChange(events.Prescriptions, events.ActionCreated, p.ID))
	return nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "prescription")
	}
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, f PrescriptionFilter, limit, offset int) ([]*Prescription, int, error) {
	switch f.Status {
	case "", PrescriptionActive, PrescriptionCancelled:
	default:
		return nil, 0, apperr.Validation("unknown prescription status %q", f.Status)
	}
	return s.prescriptions.List(ctx, f, limit, offset)
}

// UpdatePrescription saves edits to an active prescription. Setting the
// status to cancelled here behaves like CancelPrescription.
func (s *Service) UpdatePrescription(ctx context.Context, p *Prescription) error {
	action := events.ActionUpdated
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.prescriptions.GetByID(ctx, p.ID)
		if err != nil {
			return apperr.FromDB(err, "prescription")
		}
		if current.Status == PrescriptionCancelled {
			return ErrPrescriptionCancelled
		}
		if p.Status == "" {
			p.Status = current.Status
		}
		p.CreatedAt = current.CreatedAt
		if err := checkPrescription(p); err != nil {
			return err
		}
		if p.Status != current.Status {
			action = string(p.Status)
		}
		return apperr.FromDB(s.prescriptions.Update(ctx, p), "prescription")
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(ctx, events.NewChange(events.Prescriptions, action, p.ID))
	return nil
}

// CancelPrescription is also the delete operation for prescriptions.
func (s *Service) CancelPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var cancelled *Prescription
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "prescription")
		}
		if p.Status == PrescriptionCancelled {
			return apperr.Conflict("prescription is already cancelled")
		}
		p.Status = PrescriptionCancelled
		if err := s.prescriptions.Update(ctx, p); err != nil {
			return apperr.FromDB(err, "prescription")
		}
		cancelled = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.NewChange(events.Prescriptions, string(PrescriptionCancelled), id))
	return cancelled, nil
}

func checkPrescription(p *Prescription) error {
	p.Medicines = trimAll(p.Medicines)
	p.Dosage = trimAll(p.Dosage)
	p.Duration = trimAll(p.Duration)
	if p.PrescriptionDate.IsZero() {
		p.PrescriptionDate = civil.Today()
	}
	if err := validate.Struct(p); err != nil {
		return err
	}
	if len(p.Medicines) != len(p.Dosage) || len(p.Medicines) != len(p.Duration) {
		return ErrPrescriptionLengths
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
