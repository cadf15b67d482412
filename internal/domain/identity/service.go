package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/internal/platform/validate"
	"github.com/medicore/hms/pkg/civil"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password, without saying which.
var ErrInvalidCredentials = errors.New("invalid username or password")

// SessionRevoker ends every session a user holds.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type Service struct {
	users     UserRepository
	doctors   DoctorRepository
	patients  PatientRepository
	tx        db.Transactor
	publisher events.Publisher
	sessions  SessionRevoker
}

func NewService(users UserRepository, doctors DoctorRepository, patients PatientRepository, tx db.Transactor, publisher events.Publisher) *Service {
	if tx == nil {
		tx = db.NoTx
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{users: users, doctors: doctors, patients: patients, tx: tx, publisher: publisher}
}

// RevokeSessionsWith makes role changes log the user out everywhere, so
// the next login carries the new role.
func (s *Service) RevokeSessionsWith(r SessionRevoker) {
	s.sessions = r
}

// -- Users --

// Register creates an account. The role defaults to staff.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Role == "" {
		req.Role = auth.RoleStaff
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	u := &User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, apperr.FromDB(err, "username or email")
	}
	s.publish(ctx, events.Users, events.ActionCreated, u.ID)
	return u, nil
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// UpdateUser applies a profile edit. Only admins may change roles.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, upd UserUpdate, asAdmin bool) (*User, error) {
	if err := validate.Struct(&upd); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	roleChanged := upd.Role != nil && *upd.Role != u.Role
	if roleChanged {
		if !asAdmin {
			return nil, apperr.Validation("only admins may change roles")
		}
		u.Role = *upd.Role
	}
	if upd.Email != nil {
		u.Email = strings.TrimSpace(strings.ToLower(*upd.Email))
	}
	if upd.FullName != nil {
		u.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
		u.PasswordHash = hash
	}
	if err := validate.Struct(u); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, apperr.FromDB(err, "email")
	}
	s.publish(ctx, events.Users, events.ActionUpdated, u.ID)
	if roleChanged && s.sessions != nil {
		if _, err := s.sessions.RevokeUser(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("role changed but sessions were kept: %w", err)
		}
	}
	return u, nil
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.Status == "" {
		d.Status = DoctorAvailable
	}
	if err := validate.Struct(d); err != nil {
		return err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, d.UserID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperr.Validation("user %s does not exist", d.UserID)
			}
			return err
		}
		if _, err := s.doctors.GetByUserID(ctx, d.UserID); err == nil {
			return apperr.Conflict("user already has a doctor profile")
		} else if !db.IsNotFound(err) {
			return err
		}
		if err := s.doctors.Create(ctx, d); err != nil {
			return apperr.FromDB(err, "doctor")
		}
		d.User = u.Summary()
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.Doctors, events.ActionCreated, d.ID)
	return nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "doctor")
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	if f.Status != "" {
		switch f.Status {
		case DoctorAvailable, DoctorUnavailable, DoctorOnLeave:
		default:
			return nil, 0, apperr.Validation("unknown doctor status %q", f.Status)
		}
	}
	f.Q = strings.TrimSpace(f.Q)
	return s.doctors.List(ctx, f, limit, offset)
}

// UpdateDoctor saves profile changes. The owning user cannot be changed.
func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	current, err := s.doctors.GetByID(ctx, d.ID)
	if err != nil {
		return apperr.FromDB(err, "doctor")
	}
	d.UserID = current.UserID
	d.User = current.User
	d.CreatedAt = current.CreatedAt
	if d.Status == "" {
		d.Status = current.Status
	}
	if err := validate.Struct(d); err != nil {
		return err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return apperr.FromDB(err, "doctor")
	}
	s.publish(ctx, events.Doctors, events.ActionUpdated, d.ID)
	return nil
}

// DeactivateDoctor marks a doctor unavailable. Doctors are never removed.
func (s *Service) DeactivateDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "doctor")
	}
	d.Status = DoctorUnavailable
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, apperr.FromDB(err, "doctor")
	}
	s.publish(ctx, events.Doctors, "deactivated", d.ID)
	return d, nil
}

func (s *Service) Specializations(ctx context.Context) ([]string, error) {
	return s.doctors.Specializations(ctx)
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.Status == "" {
		p.Status = PatientActive
	}
	if err := checkPatient(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return apperr.FromDB(err, "patient")
	}
	s.publish(ctx, events.Patients, events.ActionCreated, p.ID)
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "patient")
	}
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	if f.Status != "" {
		switch f.Status {
		case PatientActive, PatientDischarged, PatientCritical:
		default:
			return nil, 0, apperr.Validation("unknown patient status %q", f.Status)
		}
	}
	f.Q = strings.TrimSpace(f.Q)
	return s.patients.List(ctx, f, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.Status == "" {
		p.Status = PatientActive
	}
	if err := checkPatient(p); err != nil {
		return err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return apperr.FromDB(err, "patient")
	}
	s.publish(ctx, events.Patients, events.ActionUpdated, p.ID)
	return nil
}

// DischargePatient is the delete operation for patients.
func (s *Service) DischargePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "patient")
	}
	p.Status = PatientDischarged
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, apperr.FromDB(err, "patient")
	}
	s.publish(ctx, events.Patients, "discharged", p.ID)
	return p, nil
}

func checkPatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.DateOfBirth.IsZero() {
		return apperr.Validation("dateOfBirth is required")
	}
	if p.DateOfBirth.After(civil.Today()) {
		return apperr.Validation("dateOfBirth cannot be in the future")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, resource, action string, id uuid.UUID) {
	s.publisher.Publish(ctx, events.NewChange(resource, action, id))
}
