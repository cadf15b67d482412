package dashboard

import (
	"context"

	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/pkg/civil"
)

type statsRepoPG struct {
	pool db.Querier
}

func NewStatsRepo(pool db.Querier) StatsRepository {
	return &statsRepoPG{pool: pool}
}

func (r *statsRepoPG) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *statsRepoPG) CountPatients(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM patients`)
}

func (r *statsRepoPG) CountAppointmentsOn(ctx context.Context, day civil.Date) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM appointments WHERE appointment_date = $1 AND status <> 'cancelled'`, day)
}

func (r *statsRepoPG) CountAvailableDoctors(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM doctors WHERE status = 'available'`)
}

func (r *statsRepoPG) CountAvailableRooms(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM rooms WHERE occupied = FALSE`)
}
