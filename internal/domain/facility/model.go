package facility

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WardStatus string

const (
	WardAvailable   WardStatus = "available"
	WardFull        WardStatus = "full"
	WardMaintenance WardStatus = "maintenance"
)

// Ward maps to the wards table. OccupiedBeds stays within [0, Capacity].
type Ward struct {
	ID           uuid.UUID  `json:"id"`
	WardNumber   string     `json:"wardNumber" validate:"required"`
	WardType     string     `json:"wardType" validate:"required"`
	Capacity     int        `json:"capacity" validate:"gt=0"`
	OccupiedBeds int        `json:"occupiedBeds" validate:"gte=0"`
	Floor        int        `json:"floor"`
	Status       WardStatus `json:"status" validate:"omitempty,oneof=available full maintenance"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Room maps to the rooms table. Occupied always equals PatientID != nil.
type Room struct {
	ID         uuid.UUID  `json:"id"`
	WardID     uuid.UUID  `json:"wardId" validate:"required"`
	RoomNumber string     `json:"roomNumber" validate:"required"`
	RoomType   string     `json:"roomType" validate:"required"`
	Occupied   bool       `json:"occupied"`
	PatientID  *uuid.UUID `json:"patientId"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// RoomInput is the write body for rooms. Absent fields keep their current
// value on update. Occupied is optional and, when sent, must agree with
// PatientID.
type RoomInput struct {
	WardID     *uuid.UUID   `json:"wardId"`
	RoomNumber *string      `json:"roomNumber"`
	RoomType   *string      `json:"roomType"`
	Occupied   *bool        `json:"occupied"`
	PatientID  NullableUUID `json:"patientId"`
}

// NullableUUID tells an absent field apart from an explicit null.
type NullableUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (n *NullableUUID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	n.Value = &id
	return nil
}

func (n NullableUUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value)
}

type AssignRequest struct {
	PatientID uuid.UUID `json:"patientId"`
}

type WardFilter struct {
	Status WardStatus
	Floor  *int
}

type RoomFilter struct {
	WardID   uuid.UUID
	Occupied *bool
}
