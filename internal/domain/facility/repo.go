package facility

import (
	"context"

	"github.com/google/uuid"
)

type WardRepository interface {
	Create(ctx context.Context, w *Ward) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Ward, error)
	Update(ctx context.Context, w *Ward) error
	List(ctx context.Context, f WardFilter, limit, offset int) ([]*Ward, int, error)
}

type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Room, error)
	// GetByPatient returns the room the patient occupies, or pgx.ErrNoRows.
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*Room, error)
	Update(ctx context.Context, r *Room) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f RoomFilter, limit, offset int) ([]*Room, int, error)
	CountByWard(ctx context.Context, wardID uuid.UUID) (int, error)
}
