package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/repository"
)

// DefaultSessionTTL is the absolute session lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionOpts carries request metadata attached to a new session.
type SessionOpts struct {
	DeviceInfo string
	IP         string
	UserAgent  string
}

// SessionService issues, validates, and revokes opaque session tokens.
type SessionService struct {
	sessions *repository.SessionsRepository
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionService creates a new session service. A zero ttl falls back
// to DefaultSessionTTL.
func NewSessionService(sessions *repository.SessionsRepository, ttl time.Duration, logger *slog.Logger) *SessionService {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{sessions: sessions, ttl: ttl, logger: logger}
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create issues a fresh session for the given user. The owning email is
// required and always passed explicitly; sessions are never created
// against an inferred or placeholder identity.
func (s *SessionService) Create(ctx context.Context, email string, opts SessionOpts) (*domain.Session, error) {
	if email == "" {
		return nil, fmt.Errorf("owning user email is required")
	}

	token, err := GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.Session{
		ID:           uuid.New(),
		UserEmail:    NormalizeEmail(email),
		Token:        token,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.ttl),
		Active:       true,
	}
	if opts.DeviceInfo != "" {
		session.DeviceInfo = &opts.DeviceInfo
	}
	if opts.IP != "" {
		session.IP = &opts.IP
	}
	if opts.UserAgent != "" {
		session.UserAgent = &opts.UserAgent
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get returns the session for a token only while it is usable (active and
// unexpired). A revoked or expired row still exists but reads as absent:
// (nil, nil).
func (s *SessionService) Get(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !session.IsValid() {
		return nil, nil
	}
	return session, nil
}

// Touch refreshes the session's activity timestamp. Expiry is absolute:
// touching never extends expires_at.
func (s *SessionService) Touch(ctx context.Context, token string) error {
	return s.sessions.Touch(ctx, token)
}

// Revoke soft-revokes one session with reason "logout". The row is kept
// for audit.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token, domain.RevocationLogout)
}

// RevokeAll soft-revokes every active session a user holds. Used both for
// "log out everywhere" and for forced logout after a password reset.
func (s *SessionService) RevokeAll(ctx context.Context, email string, reason domain.RevocationReason) error {
	return s.sessions.RevokeAllByEmail(ctx, NormalizeEmail(email), reason)
}

// ListActive returns the user's currently usable sessions.
func (s *SessionService) ListActive(ctx context.Context, email string) ([]*domain.Session, error) {
	return s.sessions.GetActiveByEmail(ctx, NormalizeEmail(email))
}

// CleanupExpired bulk soft-revokes sessions past expiry still marked
// active and returns the count swept.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessions.RevokeExpired(ctx)
}
