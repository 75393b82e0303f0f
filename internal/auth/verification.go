package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/security"
)

// VerificationConfig holds token lifetimes.
type VerificationConfig struct {
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
}

// TokenStore is the persistence the verification service needs.
// Implemented by repository.TokensRepository.
type TokenStore interface {
	Create(ctx context.Context, token *domain.AccountToken) error
	GetByToken(ctx context.Context, kind domain.TokenKind, opaque string) (*domain.AccountToken, error)
	MarkUsed(ctx context.Context, kind domain.TokenKind, opaque string) (bool, error)
	DeleteExpired(ctx context.Context, kind domain.TokenKind) (int64, error)
}

// UserUpdater applies partial user updates. Implemented by
// repository.UsersRepository.
type UserUpdater interface {
	Update(ctx context.Context, email string, update *domain.UserUpdate) error
}

// VerificationService manages the single-use token lifecycles for
// password reset and email verification. Multiple outstanding tokens per
// email may coexist; callers validate by token string and the newest
// valid one supersedes older ones from their perspective.
type VerificationService struct {
	config  VerificationConfig
	tokens  TokenStore
	users   UserUpdater
	monitor *security.Monitor
	logger  *slog.Logger
}

// NewVerificationService creates a new verification service.
func NewVerificationService(
	config VerificationConfig,
	tokens TokenStore,
	users UserUpdater,
	monitor *security.Monitor,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		config:  config,
		tokens:  tokens,
		users:   users,
		monitor: monitor,
		logger:  logger,
	}
}

// CreatePasswordResetToken issues a fresh reset token for an email.
func (s *VerificationService) CreatePasswordResetToken(ctx context.Context, email string, evCtx security.EventContext) (*domain.AccountToken, error) {
	token, err := s.createToken(ctx, email, domain.TokenKindPasswordReset, s.config.PasswordResetTTL)
	if err != nil {
		return nil, err
	}
	_ = s.monitor.LogEvent(ctx, token.Email, domain.EventPasswordResetRequest, evCtx)
	return token, nil
}

// CreateEmailVerificationToken issues a fresh verification token.
func (s *VerificationService) CreateEmailVerificationToken(ctx context.Context, email string) (*domain.AccountToken, error) {
	return s.createToken(ctx, email, domain.TokenKindEmailVerification, s.config.EmailVerificationTTL)
}

func (s *VerificationService) createToken(ctx context.Context, email string, kind domain.TokenKind, ttl time.Duration) (*domain.AccountToken, error) {
	opaque, err := GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &domain.AccountToken{
		ID:        uuid.New(),
		Email:     NormalizeEmail(email),
		Token:     opaque,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// GetToken looks a token up by its exact string. No expiry filtering:
// an expired-but-unused token is returned so the caller can distinguish
// "expired" from "not found".
func (s *VerificationService) GetToken(ctx context.Context, kind domain.TokenKind, opaque string) (*domain.AccountToken, error) {
	token, err := s.tokens.GetByToken(ctx, kind, opaque)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return nil, nil
	}
	return token, err
}

// ValidateToken resolves a token and checks it is trustworthy, mapping
// each failure mode to a distinct error: ErrTokenNotFound, ErrTokenUsed,
// ErrTokenExpired.
func (s *VerificationService) ValidateToken(ctx context.Context, kind domain.TokenKind, opaque string) (*domain.AccountToken, error) {
	token, err := s.tokens.GetByToken(ctx, kind, opaque)
	if err != nil {
		return nil, err
	}
	if token.Used {
		return nil, domain.ErrTokenUsed
	}
	if token.IsExpired() {
		return nil, domain.ErrTokenExpired
	}
	return token, nil
}

// ConsumeToken marks a token used, stamping used_at server-side.
// Idempotent: consuming an already-used token is a no-op.
func (s *VerificationService) ConsumeToken(ctx context.Context, kind domain.TokenKind, opaque string) error {
	_, err := s.tokens.MarkUsed(ctx, kind, opaque)
	return err
}

// RedeemToken validates a token and consumes it in one step, before the
// caller performs the action the token authorizes. Under concurrent
// redemption exactly one caller wins; the rest get ErrTokenUsed even if
// they validated first.
func (s *VerificationService) RedeemToken(ctx context.Context, kind domain.TokenKind, opaque string) (*domain.AccountToken, error) {
	token, err := s.ValidateToken(ctx, kind, opaque)
	if err != nil {
		return nil, err
	}

	consumed, err := s.tokens.MarkUsed(ctx, kind, opaque)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, domain.ErrTokenUsed
	}
	return token, nil
}

// VerifyEmail redeems an email-verification token and marks the owning
// user's email verified.
func (s *VerificationService) VerifyEmail(ctx context.Context, opaque string, evCtx security.EventContext) error {
	token, err := s.RedeemToken(ctx, domain.TokenKindEmailVerification, opaque)
	if err != nil {
		return err
	}

	verified := true
	if err := s.users.Update(ctx, token.Email, &domain.UserUpdate{EmailVerified: &verified}); err != nil {
		return err
	}
	_ = s.monitor.LogEvent(ctx, token.Email, domain.EventEmailVerified, evCtx)
	return nil
}

// CleanupExpiredTokens deletes all rows past expiry for one kind,
// regardless of used state, and returns the number removed. Scheduled by
// the maintenance loop, never run inline on a request path.
func (s *VerificationService) CleanupExpiredTokens(ctx context.Context, kind domain.TokenKind) (int64, error) {
	return s.tokens.DeleteExpired(ctx, kind)
}
