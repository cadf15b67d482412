package facility

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/internal/platform/validate"
)

var (
	ErrWardFull        = apperr.Conflict("ward has no free beds")
	ErrWardEmpty       = apperr.Conflict("ward has no occupied beds")
	ErrWardMaintenance = apperr.Conflict("ward is under maintenance")
	ErrWardHasRooms    = apperr.Conflict("ward still has rooms assigned")
	ErrRoomOccupied    = apperr.Conflict("room is occupied")
	ErrRoomVacant      = apperr.Conflict("room is not occupied")
	ErrOccupiedFlag    = apperr.Validation("occupied must match whether patientId is set")
)

type Service struct {
	wards     WardRepository
	rooms     RoomRepository
	tx        db.Transactor
	publisher events.Publisher
}

func NewService(wards WardRepository, rooms RoomRepository, tx db.Transactor, publisher events.Publisher) *Service {
	if tx == nil {
		tx = db.NoTx
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{wards: wards, rooms: rooms, tx: tx, publisher: publisher}
}

// -- Wards --

// CheckWard enforces the occupancy invariant: 0 <= occupiedBeds <= capacity,
// and "full" only when every bed is taken.
func CheckWard(w *Ward) error {
	if err := validate.Struct(w); err != nil {
		return err
	}
	if w.OccupiedBeds > w.Capacity {
		return apperr.Validation("occupiedBeds (%d) exceeds capacity (%d)", w.OccupiedBeds, w.Capacity)
	}
	if w.Status == WardFull && w.OccupiedBeds != w.Capacity {
		return apperr.Validation("status full requires occupiedBeds to equal capacity")
	}
	return nil
}

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	w.WardNumber = strings.TrimSpace(w.WardNumber)
	if w.Status == "" {
		w.Status = WardAvailable
	}
	if err := CheckWard(w); err != nil {
		return err
	}
	if err := s.wards.Create(ctx, w); err != nil {
		return apperr.FromDB(err, "ward")
	}
	s.publish(ctx, events.Wards, events.ActionCreated, w.ID)
	return nil
}

func (s *Service) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	w, err := s.wards.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "ward")
	}
	return w, nil
}

func (s *Service) ListWards(ctx context.Context, f WardFilter, limit, offset int) ([]*Ward, int, error) {
	return s.wards.List(ctx, f, limit, offset)
}

// UpdateWard saves ward edits. Moving a ward into maintenance follows the
// same rooms check as DeactivateWard.
func (s *Service) UpdateWard(ctx context.Context, w *Ward) error {
	w.WardNumber = strings.TrimSpace(w.WardNumber)
	if w.Status == "" {
		w.Status = WardAvailable
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.wards.GetForUpdate(ctx, w.ID)
		if err != nil {
			return apperr.FromDB(err, "ward")
		}
		if err := CheckWard(w); err != nil {
			return err
		}
		if w.Status == WardMaintenance && current.Status != WardMaintenance {
			n, err := s.rooms.CountByWard(ctx, w.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrWardHasRooms
			}
		}
		w.CreatedAt = current.CreatedAt
		return apperr.FromDB(s.wards.Update(ctx, w), "ward")
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.Wards, events.ActionUpdated, w.ID)
	return nil
}

// AdmitToWard takes one bed. Wards under maintenance accept no admissions.
func (s *Service) AdmitToWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return s.adjustBeds(ctx, id, "admitted", func(w *Ward) error {
		if w.Status == WardMaintenance {
			return ErrWardMaintenance
		}
		if w.OccupiedBeds >= w.Capacity {
			return ErrWardFull
		}
		w.OccupiedBeds++
		return nil
	})
}

// ReleaseFromWard frees one bed. A full ward becomes available again.
func (s *Service) ReleaseFromWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return s.adjustBeds(ctx, id, "released", func(w *Ward) error {
		if w.OccupiedBeds <= 0 {
			return ErrWardEmpty
		}
		w.OccupiedBeds--
		if w.Status == WardFull {
			w.Status = WardAvailable
		}
		return nil
	})
}

func (s *Service) adjustBeds(ctx context.Context, id uuid.UUID, action string, apply func(w *Ward) error) (*Ward, error) {
	var ward *Ward
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		w, err := s.wards.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "ward")
		}
		if err := apply(w); err != nil {
			return err
		}
		if err := CheckWard(w); err != nil {
			return err
		}
		if err := s.wards.Update(ctx, w); err != nil {
			return apperr.FromDB(err, "ward")
		}
		ward = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Wards, action, ward.ID)
	return ward, nil
}

// DeactivateWard puts a ward into maintenance. Wards that rooms still
// reference cannot be deactivated.
func (s *Service) DeactivateWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	var ward *Ward
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		w, err := s.wards.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "ward")
		}
		n, err := s.rooms.CountByWard(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrWardHasRooms
		}
		w.Status = WardMaintenance
		if err := s.wards.Update(ctx, w); err != nil {
			return apperr.FromDB(err, "ward")
		}
		ward = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Wards, "deactivated", ward.ID)
	return ward, nil
}

// -- Rooms --

// applyRoomInput merges in over r and re-derives Occupied from PatientID.
func applyRoomInput(r *Room, in RoomInput) error {
	if in.WardID != nil {
		r.WardID = *in.WardID
	}
	if in.RoomNumber != nil {
		r.RoomNumber = strings.TrimSpace(*in.RoomNumber)
	}
	if in.RoomType != nil {
		r.RoomType = *in.RoomType
	}
	if in.PatientID.Set {
		r.PatientID = in.PatientID.Value
		if r.PatientID != nil && *r.PatientID == uuid.Nil {
			r.PatientID = nil
		}
	}
	if in.Occupied != nil && *in.Occupied != (r.PatientID != nil) {
		return ErrOccupiedFlag
	}
	r.Occupied = r.PatientID != nil
	return validate.Struct(r)
}

func (s *Service) CreateRoom(ctx context.Context, in RoomInput) (*Room, error) {
	room := &Room{}
	if err := applyRoomInput(room, in); err != nil {
		return nil, err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkRoomTargets(ctx, room); err != nil {
			return err
		}
		return apperr.FromDB(s.rooms.Create(ctx, room), "room")
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Rooms, events.ActionCreated, room.ID)
	return room, nil
}

func (s *Service) UpdateRoom(ctx context.Context, id uuid.UUID, in RoomInput) (*Room, error) {
	var room *Room
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.rooms.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "room")
		}
		if err := applyRoomInput(r, in); err != nil {
			return err
		}
		if err := s.checkRoomTargets(ctx, r); err != nil {
			return err
		}
		if err := s.rooms.Update(ctx, r); err != nil {
			return apperr.FromDB(err, "room")
		}
		room = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Rooms, events.ActionUpdated, room.ID)
	return room, nil
}

// checkRoomTargets verifies the ward exists and the patient is not already
// in a different room.
func (s *Service) checkRoomTargets(ctx context.Context, r *Room) error {
	if _, err := s.wards.GetByID(ctx, r.WardID); err != nil {
		if db.IsNotFound(err) {
			return apperr.Validation("ward %s does not exist", r.WardID)
		}
		return err
	}
	if r.PatientID == nil {
		return nil
	}
	other, err := s.rooms.GetByPatient(ctx, *r.PatientID)
	switch {
	case err == nil && other.ID != r.ID:
		return apperr.Conflict("patient already occupies room %s", other.RoomNumber)
	case err != nil && !db.IsNotFound(err):
		return err
	}
	return nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	r, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "room")
	}
	return r, nil
}

func (s *Service) ListRooms(ctx context.Context, f RoomFilter, limit, offset int) ([]*Room, int, error) {
	return s.rooms.List(ctx, f, limit, offset)
}

// AssignRoom places a patient in a vacant room.
func (s *Service) AssignRoom(ctx context.Context, id, patientID uuid.UUID) (*Room, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Validation("patientId is required")
	}
	var room *Room
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.rooms.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "room")
		}
		if r.Occupied {
			return ErrRoomOccupied
		}
		r.PatientID = &patientID
		r.Occupied = true
		if err := s.checkRoomTargets(ctx, r); err != nil {
			return err
		}
		if err := s.rooms.Update(ctx, r); err != nil {
			return apperr.FromDB(err, "room")
		}
		room = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Rooms, "assigned", room.ID)
	return room, nil
}

// VacateRoom removes the patient from an occupied room.
func (s *Service) VacateRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	var room *Room
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.rooms.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "room")
		}
		if !r.Occupied {
			return ErrRoomVacant
		}
		r.PatientID = nil
		r.Occupied = false
		if err := s.rooms.Update(ctx, r); err != nil {
			return apperr.FromDB(err, "room")
		}
		room = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Rooms, "vacated", room.ID)
	return room, nil
}

// DeleteRoom removes a vacant room.
func (s *Service) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.rooms.GetForUpdate(ctx, id)
		if err != nil {
			return apperr.FromDB(err, "room")
		}
		if r.Occupied {
			return ErrRoomOccupied
		}
		return apperr.FromDB(s.rooms.Delete(ctx, id), "room")
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.Rooms, events.ActionDeleted, id)
	return nil
}

func (s *Service) publish(ctx context.Context, resource, action string, id uuid.UUID) {
	s.publisher.Publish(ctx, events.NewChange(resource, action, id))
}
