package dashboard

import (
	"context"

	"github.com/medicore/hms/pkg/civil"
)

type StatsRepository interface {
	CountPatients(ctx context.Context) (int, error)
	// CountAppointmentsOn ignores cancelled appointments.
	CountAppointmentsOn(ctx context.Context, day civil.Date) (int, error)
	CountAvailableDoctors(ctx context.Context) (int, error)
	CountAvailableRooms(ctx context.Context) (int, error)
}
