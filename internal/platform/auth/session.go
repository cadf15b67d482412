package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const tokenIssuer = "hms"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid token")
)

// Session is a server-side login record. Deleting it logs the user out even
// while the signed token is still within its expiry.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Principal is the identity a session is issued for.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     string
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// SessionManager issues and verifies session tokens. Tokens are HS256 JWTs
// whose jti is the session id.
type SessionManager struct {
	store SessionStore
	cfg   SessionConfig
	now   func() time.Time
}

func NewSessionManager(store SessionStore, cfg SessionConfig) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = "hms_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &SessionManager{store: store, cfg: cfg, now: time.Now}
}

func (m *SessionManager) CookieName() string { return m.cfg.CookieName }

// Issue creates a session for p and returns its signed token.
func (m *SessionManager) Issue(ctx context.Context, p Principal, userAgent, ip string) (string, *Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.New(),
		UserID:    p.UserID,
		UserAgent: userAgent,
		IPAddress: ip,
		ExpiresAt: now.Add(m.cfg.TTL),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID.String(),
			Subject:   p.UserID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Username: p.Username,
		Role:     p.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, s, nil
}

// Verify checks the token signature and that its session is still live.
func (m *SessionManager) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sid, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	s, err := m.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !s.ExpiresAt.After(m.now()) {
		return nil, ErrSessionExpired
	}
	if s.UserID.String() != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke deletes a session. Unknown sessions are not an error.
func (m *SessionManager) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeUser deletes every session of a user. Tokens carry the role, so
// this is how a role change takes effect before they expire.
func (m *SessionManager) RevokeUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := m.store.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return n, nil
}

// PruneExpired removes sessions past their expiry.
func (m *SessionManager) PruneExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// SetCookie writes the session cookie.
func (m *SessionManager) SetCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie in the browser.
func (m *SessionManager) ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
