package facility

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medicore/hms/internal/platform/db"
)

// -- Ward Repository --

type wardRepoPG struct {
	pool db.Querier
}

func NewWardRepo(pool db.Querier) WardRepository {
	return &wardRepoPG{pool: pool}
}

func (r *wardRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const wardCols = `id, ward_number, ward_type, capacity, occupied_beds, floor, status, created_at, updated_at`

func (r *wardRepoPG) Create(ctx context.Context, w *Ward) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO wards (ward_number, ward_type, capacity, occupied_beds, floor, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		w.WardNumber, w.WardType, w.Capacity, w.OccupiedBeds, w.Floor, w.Status,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (r *wardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardCols+` FROM wards WHERE id = $1`, id))
}

func (r *wardRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardCols+` FROM wards WHERE id = $1 FOR UPDATE`, id))
}

func (r *wardRepoPG) Update(ctx context.Context, w *Ward) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE wards SET
			ward_number = $2, ward_type = $3, capacity = $4, occupied_beds = $5,
			floor = $6, status = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		w.ID, w.WardNumber, w.WardType, w.Capacity, w.OccupiedBeds, w.Floor, w.Status,
	).Scan(&w.UpdatedAt)
}

func (r *wardRepoPG) List(ctx context.Context, f WardFilter, limit, offset int) ([]*Ward, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Floor != nil {
		where += fmt.Sprintf(" AND floor = $%d", idx)
		args = append(args, *f.Floor)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM wards`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + wardCols + ` FROM wards` + where +
		fmt.Sprintf(" ORDER BY ward_number LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Ward{}
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, w)
	}
	return items, total, rows.Err()
}

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	err := row.Scan(&w.ID, &w.WardNumber, &w.WardType, &w.Capacity, &w.OccupiedBeds,
		&w.Floor, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// -- Room Repository --

type roomRepoPG struct {
	pool db.Querier
}

func NewRoomRepo(pool db.Querier) RoomRepository {
	return &roomRepoPG{pool: pool}
}

func (r *roomRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const roomCols = `id, ward_id, room_number, room_type, occupied, patient_id, created_at, updated_at`

func (r *roomRepoPG) Create(ctx context.Context, rm *Room) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rooms (ward_id, room_number, room_type, occupied, patient_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		rm.WardID, rm.RoomNumber, rm.RoomType, rm.Occupied, rm.PatientID,
	).Scan(&rm.ID, &rm.CreatedAt, &rm.UpdatedAt)
}

func (r *roomRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE id = $1`, id))
}

func (r *roomRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE id = $1 FOR UPDATE`, id))
}

func (r *roomRepoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE patient_id = $1`, patientID))
}

func (r *roomRepoPG) Update(ctx context.Context, rm *Room) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE rooms SET
			ward_id = $2, room_number = $3, room_type = $4, occupied = $5,
			patient_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rm.ID, rm.WardID, rm.RoomNumber, rm.RoomType, rm.Occupied, rm.PatientID,
	).Scan(&rm.UpdatedAt)
}

func (r *roomRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *roomRepoPG) List(ctx context.Context, f RoomFilter, limit, offset int) ([]*Room, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.WardID != uuid.Nil {
		where += fmt.Sprintf(" AND ward_id = $%d", idx)
		args = append(args, f.WardID)
		idx++
	}
	if f.Occupied != nil {
		where += fmt.Sprintf(" AND occupied = $%d", idx)
		args = append(args, *f.Occupied)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM rooms`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + roomCols + ` FROM rooms` + where +
		fmt.Sprintf(" ORDER BY room_number LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rm)
	}
	return items, total, rows.Err()
}

func (r *roomRepoPG) CountByWard(ctx context.Context, wardID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE ward_id = $1`, wardID).Scan(&n)
	return n, err
}

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	err := row.Scan(&rm.ID, &rm.WardID, &rm.RoomNumber, &rm.RoomType, &rm.Occupied,
		&rm.PatientID, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rm, nil
}
