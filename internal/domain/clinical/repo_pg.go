package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medicore/hms/internal/platform/db"
)

// -- Medical Record Repository --

type recordRepoPG struct {
	pool db.Querier
}

func NewMedicalRecordRepo(pool db.Querier) MedicalRecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, patient_id, diagnosis, treatment, visit_date, COALESCE(notes, ''),
	attachments, archived_at, created_at, updated_at`

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (patient_id, diagnosis, treatment, visit_date, notes, attachments)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at, updated_at`,
		m.PatientID, m.Diagnosis, m.Treatment, m.VisitDate, m.Notes, m.Attachments,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
}

func (r *recordRepoPG) Update(ctx context.Context, m *MedicalRecord) error {
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET
			patient_id = $2, diagnosis = $3, treatment = $4, visit_date = $5,
			notes = NULLIF($6, ''), attachments = $7, updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
		RETURNING updated_at`,
		m.ID, m.PatientID, m.Diagnosis, m.Treatment, m.VisitDate, m.Notes, m.Attachments,
	).Scan(&m.UpdatedAt)
}

// Archive stamps archived_at on a live record. Already archived or missing
// records yield pgx.ErrNoRows.
func (r *recordRepoPG) Archive(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET archived_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
		RETURNING `+recordCols, id))
}

func (r *recordRepoPG) List(ctx context.Context, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != uuid.Nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, f.PatientID)
		idx++
	}
	if !f.IncludeArchived {
		where += " AND archived_at IS NULL"
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordCols + ` FROM medical_records` + where +
		fmt.Sprintf(" ORDER BY visit_date DESC, created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*MedicalRecord{}
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.Diagnosis, &m.Treatment, &m.VisitDate, &m.Notes,
		&m.Attachments, &m.ArchivedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	return &m, nil
}

// -- Prescription Repository --

type prescriptionRepoPG struct {
	pool db.Querier
}

func NewPrescriptionRepo(pool db.Querier) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const prescriptionCols = `id, patient_id, doctor_id, prescription_date, medicines, dosage, duration,
	COALESCE(notes, ''), status, created_at, updated_at`

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (patient_id, doctor_id, prescription_date, medicines, dosage, duration, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id, created_at, updated_at`,
		p.PatientID, p.DoctorID, p.PrescriptionDate, p.Medicines, p.Dosage, p.Duration, p.Notes, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET
			patient_id = $2, doctor_id = $3, prescription_date = $4, medicines = $5, dosage = $6,
			duration = $7, notes = NULLIF($8, ''), status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.PrescriptionDate, p.Medicines, p.Dosage, p.Duration, p.Notes, p.Status,
	).Scan(&p.UpdatedAt)
}

func (r *prescriptionRepoPG) List(ctx context.Context, f PrescriptionFilter, limit, offset int) ([]*Prescription, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != uuid.Nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, f.PatientID)
		idx++
	}
	if f.DoctorID != uuid.Nil {
		where += fmt.Sprintf(" AND doctor_id = $%d", idx)
		args = append(args, f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + prescriptionCols + ` FROM prescriptions` + where +
		fmt.Sprintf(" ORDER BY prescription_date DESC, created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Prescription{}
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.PrescriptionDate, &p.Medicines, &p.Dosage,
		&p.Duration, &p.Notes, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
