package scheduling

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/pkg/civil"
)

type mockAppointmentRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID {
			continue
		}
		if !f.Date.IsZero() && a.Date != f.Date {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	total := len(result)
	if offset >= total {
		return []*Appointment{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (m *mockAppointmentRepo) SlotTaken(_ context.Context, doctorID uuid.UUID, date civil.Date, clock string, exclude uuid.UUID) (bool, error) {
	for _, a := range m.appts {
		if a.ID != exclude && a.DoctorID == doctorID && a.Date == date && a.Time == clock && a.Status == StatusScheduled {
			return true, nil
		}
	}
	return false, nil
}

var testDate = civil.Date{Year: 2024, Month: 6, Day: 15}

func newTestService() (*Service, *mockAppointmentRepo, *events.Recorder) {
	repo := newMockAppointmentRepo()
	rec := &events.Recorder{}
	return NewService(repo, db.NoTx, rec), repo, rec
}

func newAppointment() *Appointment {
	return &Appointment{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Date:      testDate,
		Time:      "09:30",
		Reason:    "Annual checkup",
	}
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("expected kind %v, got %v (%v)", want, got, err)
	}
}

func create(t *testing.T, svc *Service) *Appointment {
	t.Helper()
	a := newAppointment()
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestService_CreateAppointment(t *testing.T) {
	svc, _, rec := newTestService()

	a := create(t, svc)
	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", a.Status)
	}
	last, ok := rec.Last()
	if !ok || last.Resource != events.Appointments || last.Action != events.ActionCreated {
		t.Errorf("unexpected change event %+v", last)
	}
}

func TestService_CreateAppointment_Validation(t *testing.T) {
	svc, repo, _ := newTestService()

	tests := []struct {
		name   string
		mutate func(a *Appointment)
	}{
		{"completed on create", func(a *Appointment) { a.Status = StatusCompleted }},
		{"unknown status", func(a *Appointment) { a.Status = "noshow" }},
		{"bad time", func(a *Appointment) { a.Time = "9:30am" }},
		{"hour out of range", func(a *Appointment) { a.Time = "24:00" }},
		{"missing date", func(a *Appointment) { a.Date = civil.Date{} }},
		{"missing reason", func(a *Appointment) { a.Reason = " " }},
		{"missing doctor", func(a *Appointment) { a.DoctorID = uuid.Nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAppointment()
			tt.mutate(a)
			assertKind(t, svc.CreateAppointment(context.Background(), a), apperr.KindValidation)
		})
	}
	if len(repo.appts) != 0 {
		t.Errorf("expected nothing persisted, got %d", len(repo.appts))
	}
}

func TestService_CreateAppointment_SlotTaken(t *testing.T) {
	svc, _, _ := newTestService()
	first := create(t, svc)

	clash := newAppointment()
	clash.DoctorID = first.DoctorID
	assertKind(t, svc.CreateAppointment(context.Background(), clash), apperr.KindConflict)

	if _, err := svc.CancelAppointment(context.Background(), first.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.CreateAppointment(context.Background(), clash); err != nil {
		t.Errorf("cancelled appointment must free the slot: %v", err)
	}
}

// racingRepo loses the slot check race: SlotTaken sees nothing and the
// insert hits the partial unique index instead.
type racingRepo struct {
	*mockAppointmentRepo
	saveErr error
}

func (r *racingRepo) SlotTaken(context.Context, uuid.UUID, civil.Date, string, uuid.UUID) (bool, error) {
	return false, nil
}

func (r *racingRepo) Create(context.Context, *Appointment) error { return r.saveErr }

func TestService_CreateAppointment_SlotIndexViolation(t *testing.T) {
	tests := []struct {
		name    string
		saveErr error
		want    error
	}{
		{"slot index", &pgconn.PgError{Code: "23505", ConstraintName: slotIndex}, ErrSlotTaken},
		{"other unique", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &racingRepo{mockAppointmentRepo: newMockAppointmentRepo(), saveErr: tt.saveErr}
			rec := &events.Recorder{}
			svc := NewService(repo, db.NoTx, rec)

			err := svc.CreateAppointment(context.Background(), newAppointment())
			assertKind(t, err, apperr.KindConflict)
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if tt.want == nil && errors.Is(err, ErrSlotTaken) {
				t.Errorf("unrelated unique violation reported as slot clash")
			}
			if len(rec.Changes()) != 0 {
				t.Errorf("failed insert must not publish, got %d", len(rec.Changes()))
			}
		})
	}
}

func TestService_Transitions(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	a := create(t, svc)
	got, err := svc.CompleteAppointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if last, _ := rec.Last(); last.Action != "completed" {
		t.Errorf("expected completed event, got %s", last.Action)
	}
	_, err = svc.CancelAppointment(ctx, a.ID)
	assertKind(t, err, apperr.KindConflict)

	b := create(t, svc)
	if _, err := svc.CancelAppointment(ctx, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = svc.CancelAppointment(ctx, b.ID)
	assertKind(t, err, apperr.KindConflict)
	_, err = svc.CompleteAppointment(ctx, b.ID)
	assertKind(t, err, apperr.KindConflict)

	_, err = svc.CancelAppointment(ctx, uuid.New())
	assertKind(t, err, apperr.KindNotFound)
}

func TestService_UpdateAppointment(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()
	a := create(t, svc)

	a.Time = "14:00"
	a.Notes = "bring reports"
	if err := svc.UpdateAppointment(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last, _ := rec.Last(); last.Action != events.ActionUpdated {
		t.Errorf("expected updated event, got %s", last.Action)
	}

	a.Status = StatusCancelled
	if err := svc.UpdateAppointment(ctx, a); err != nil {
		t.Fatalf("status edit: %v", err)
	}
	if last, _ := rec.Last(); last.Action != "cancelled" {
		t.Errorf("expected cancelled event, got %s", last.Action)
	}

	reopened := *a
	reopened.Status = StatusScheduled
	assertKind(t, svc.UpdateAppointment(ctx, &reopened), apperr.KindConflict)

	moved := *a
	moved.Date = civil.Date{Year: 2024, Month: 7, Day: 1}
	assertKind(t, svc.UpdateAppointment(ctx, &moved), apperr.KindConflict)

	notes := *a
	notes.Notes = "patient called to cancel"
	if err := svc.UpdateAppointment(ctx, &notes); err != nil {
		t.Errorf("notes edit on terminal appointment must succeed: %v", err)
	}

	missing := *a
	missing.ID = uuid.New()
	assertKind(t, svc.UpdateAppointment(ctx, &missing), apperr.KindNotFound)
}

func TestService_UpdateAppointment_SlotClash(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	first := create(t, svc)

	second := newAppointment()
	second.DoctorID = first.DoctorID
	second.Time = "10:00"
	if err := svc.CreateAppointment(ctx, second); err != nil {
		t.Fatal(err)
	}

	second.Time = first.Time
	assertKind(t, svc.UpdateAppointment(ctx, second), apperr.KindConflict)

	first.Notes = "unchanged slot"
	if err := svc.UpdateAppointment(ctx, first); err != nil {
		t.Errorf("editing without moving must not clash with itself: %v", err)
	}
}

func TestService_Reschedule(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()
	a := create(t, svc)
	next := civil.Date{Year: 2024, Month: 6, Day: 20}

	got, err := svc.RescheduleAppointment(ctx, a.ID, RescheduleRequest{Date: next, Time: "11:15", Reason: "follow-up"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Date != next || got.Time != "11:15" || got.Reason != "follow-up" {
		t.Errorf("unexpected appointment %+v", got)
	}
	if last, _ := rec.Last(); last.Action != "rescheduled" {
		t.Errorf("expected rescheduled event, got %s", last.Action)
	}

	got, err = svc.RescheduleAppointment(ctx, a.ID, RescheduleRequest{Date: next, Time: "12:00"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Reason != "follow-up" {
		t.Errorf("blank reason must keep the existing one, got %q", got.Reason)
	}

	_, err = svc.RescheduleAppointment(ctx, a.ID, RescheduleRequest{Date: next, Time: "noon"})
	assertKind(t, err, apperr.KindValidation)
	_, err = svc.RescheduleAppointment(ctx, a.ID, RescheduleRequest{Time: "12:00"})
	assertKind(t, err, apperr.KindValidation)

	if _, err := svc.CompleteAppointment(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	_, err = svc.RescheduleAppointment(ctx, a.ID, RescheduleRequest{Date: next, Time: "13:00"})
	assertKind(t, err, apperr.KindConflict)
}

func TestService_ListAppointments(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	a := create(t, svc)
	create(t, svc)
	if _, err := svc.CancelAppointment(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	_, total, err := svc.ListAppointments(ctx, Filter{Date: testDate, Status: StatusScheduled}, 20, 0)
	if err != nil || total != 1 {
		t.Errorf("expected 1 scheduled appointment, got %d (%v)", total, err)
	}
	_, total, _ = svc.ListAppointments(ctx, Filter{PatientID: a.PatientID}, 20, 0)
	if total != 1 {
		t.Errorf("expected 1 appointment for patient, got %d", total)
	}
	_, _, err = svc.ListAppointments(ctx, Filter{Status: "noshow"}, 20, 0)
	assertKind(t, err, apperr.KindValidation)
}
