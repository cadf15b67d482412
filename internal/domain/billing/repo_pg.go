package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medicore/hms/internal/platform/db"
)

type billRepoPG struct {
	pool db.Querier
}

func NewBillRepo(pool db.Querier) BillRepository {
	return &billRepoPG{pool: pool}
}

func (r *billRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const billCols = `id, patient_id, bill_date, due_date, services,
	total_amount::float8, paid_amount::float8, status, created_at, updated_at`

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bills (patient_id, bill_date, due_date, services, total_amount, paid_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		b.PatientID, b.BillDate, b.DueDate, b.Services, b.TotalAmount, b.PaidAmount, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+` FROM bills WHERE id = $1`, id))
}

func (r *billRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+` FROM bills WHERE id = $1 FOR UPDATE`, id))
}

func (r *billRepoPG) Update(ctx context.Context, b *Bill) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE bills SET
			patient_id = $2, bill_date = $3, due_date = $4, services = $5,
			total_amount = $6, paid_amount = $7, status = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.PatientID, b.BillDate, b.DueDate, b.Services, b.TotalAmount, b.PaidAmount, b.Status,
	).Scan(&b.UpdatedAt)
	return err
}

func (r *billRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Bill, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != uuid.Nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, f.PatientID)
		idx++
	}
	if f.Status == StatusOverdue {
		where += " AND status IN ('pending', 'partially-paid') AND due_date < CURRENT_DATE"
	} else if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bills`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + billCols + ` FROM bills` + where +
		fmt.Sprintf(" ORDER BY bill_date DESC, created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.PatientID, &b.BillDate, &b.DueDate, &b.Services,
		&b.TotalAmount, &b.PaidAmount, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
