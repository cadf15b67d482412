//go:build integration

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/hms/internal/platform/db/dbtest"
)

func TestMain(m *testing.M) { dbtest.Main(m) }

func TestPGSessionStore_Lifecycle(t *testing.T) {
	pool := dbtest.New(t)
	ctx := context.Background()

	var userID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, full_name, role)
		VALUES ('nurse', 'x', 'nurse@hospital.test', 'Nurse Joy', 'staff')
		RETURNING id`).Scan(&userID)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}

	store := NewPGSessionStore(pool)
	mgr := NewSessionManager(store, SessionConfig{Secret: testSecret, TTL: time.Hour})

	token, sess, err := mgr.Issue(ctx, Principal{UserID: userID, Username: "nurse", Role: RoleStaff}, "curl/8", "10.0.0.1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != userID || got.UserAgent != "curl/8" || got.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected stored session %+v", got)
	}
	if _, err := mgr.Verify(ctx, token); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	stale := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("Create: %v", err)
	}
	n, err := mgr.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned session, got %d", n)
	}

	if err := mgr.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	p := Principal{UserID: userID, Username: "nurse", Role: RoleStaff}
	for i := 0; i < 2; i++ {
		if _, _, err := mgr.Issue(ctx, p, "", ""); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}
	n, err = mgr.RevokeUser(ctx, userID)
	if err != nil {
		t.Fatalf("RevokeUser: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 revoked sessions, got %d", n)
	}
}
