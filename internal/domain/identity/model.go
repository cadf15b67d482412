package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medicore/hms/pkg/civil"
)

// User is an account that can log in. PasswordHash never leaves the server.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username" validate:"required,min=3"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email" validate:"required,email"`
	FullName     string    `json:"fullName" validate:"required"`
	Role         string    `json:"role" validate:"oneof=admin doctor staff patient"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summary is the subset of User embedded in doctor responses.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, Email: u.Email}
}

type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin doctor staff patient"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// UserUpdate is a profile edit. Nil fields are left unchanged.
type UserUpdate struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"fullName" validate:"omitempty,min=1"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin doctor staff patient"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

type DoctorStatus string

const (
	DoctorAvailable   DoctorStatus = "available"
	DoctorUnavailable DoctorStatus = "unavailable"
	DoctorOnLeave     DoctorStatus = "on-leave"
)

// Doctor is the clinical profile of a user. A user has at most one.
type Doctor struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"userId" validate:"required"`
	Specialization string       `json:"specialization" validate:"required"`
	Qualification  string       `json:"qualification" validate:"required"`
	Experience     int          `json:"experience" validate:"gte=0"`
	Phone          string       `json:"phone" validate:"required"`
	Status         DoctorStatus `json:"status" validate:"omitempty,oneof=available unavailable on-leave"`
	User           *UserSummary `json:"user,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

type DoctorFilter struct {
	Q              string
	Status         DoctorStatus
	Specialization string
}

type PatientStatus string

const (
	PatientActive     PatientStatus = "active"
	PatientDischarged PatientStatus = "discharged"
	PatientCritical   PatientStatus = "critical"
)

type Patient struct {
	ID               uuid.UUID     `json:"id"`
	FirstName        string        `json:"firstName" validate:"required"`
	LastName         string        `json:"lastName" validate:"required"`
	DateOfBirth      civil.Date    `json:"dateOfBirth"`
	Gender           string        `json:"gender" validate:"required"`
	Phone            string        `json:"phone" validate:"required"`
	Email            string        `json:"email,omitempty" validate:"omitempty,email"`
	Address          string        `json:"address" validate:"required"`
	EmergencyContact string        `json:"emergencyContact,omitempty"`
	BloodGroup       string        `json:"bloodGroup,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Status           PatientStatus `json:"status" validate:"omitempty,oneof=active discharged critical"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type PatientFilter struct {
	Q      string
	Status PatientStatus
}
