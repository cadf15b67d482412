package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medicore/hms/internal/platform/db"
)

// PGSessionStore keeps sessions in the sessions table.
type PGSessionStore struct {
	conn db.Querier
}

func NewPGSessionStore(conn db.Querier) *PGSessionStore {
	return &PGSessionStore{conn: conn}
}

func (s *PGSessionStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sessions (id, user_id, user_agent, ip_address, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.UserID, sess.UserAgent, sess.IPAddress, sess.ExpiresAt, sess.CreatedAt)
	return err
}

func (s *PGSessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	var ua, ip *string
	err := s.conn.QueryRow(ctx, `
		SELECT id, user_id, user_agent, ip_address, expires_at, created_at
		FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.UserID, &ua, &ip, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if ua != nil {
		sess.UserAgent = *ua
	}
	if ip != nil {
		sess.IPAddress = *ip
	}
	return &sess, nil
}

func (s *PGSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PGSessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.conn.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PGSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.conn.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
