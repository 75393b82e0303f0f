package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/repository"
	"github.com/citzn/civic-auth/internal/security"
)

// recentActivityLimit caps how many suspicious activities GetUser attaches.
const recentActivityLimit = 10

// LockoutPolicy drives the failed-login lockout.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// DefaultLockoutPolicy returns the lockout applied to login attempts:
// five failures lock the account for fifteen minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: 5, Duration: 15 * time.Minute}
}

// AccountService is the central entity manager for user records.
type AccountService struct {
	db       *sql.DB
	users    *repository.UsersRepository
	sessions *repository.SessionsRepository
	events   *repository.SecurityEventsRepository
	monitor  *security.Monitor
	policy   *PasswordPolicy
	lockout  LockoutPolicy
	logger   *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	db *sql.DB,
	users *repository.UsersRepository,
	sessions *repository.SessionsRepository,
	events *repository.SecurityEventsRepository,
	monitor *security.Monitor,
	policy *PasswordPolicy,
	lockout LockoutPolicy,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		db:       db,
		users:    users,
		sessions: sessions,
		events:   events,
		monitor:  monitor,
		policy:   policy,
		lockout:  lockout,
		logger:   logger,
	}
}

// RegisterParams holds the fields a new registration provides.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
	ZipCode   *string
}

// Register validates, hashes, and creates a new user record. A duplicate
// normalized email fails with domain.ErrUserAlreadyExists.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (*domain.User, error) {
	if err := ValidateEmail(params.Email); err != nil {
		return nil, err
	}
	if err := s.policy.ValidatePassword(params.Password); err != nil {
		return nil, err
	}
	if params.ZipCode != nil {
		if err := ValidateZipCode(*params.ZipCode); err != nil {
			return nil, err
		}
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(params.Email),
		PasswordHash: hash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		ZipCode:      params.ZipCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser persists a prepared user record with sane defaults
// (failed_login_attempts 0, email_verified false), cascading creation of
// any initial sessions in the same transaction.
func (s *AccountService) CreateUser(ctx context.Context, user *domain.User) error {
	user.Email = NormalizeEmail(user.Email)
	user.FailedLoginAttempts = 0
	user.EmailVerified = false
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
		user.UpdatedAt = user.CreatedAt
	}

	return repository.Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.CreateTx(ctx, tx, user); err != nil {
			return err
		}
		for _, session := range user.ActiveSessions {
			session.UserEmail = user.Email
			if err := s.sessions.CreateTx(ctx, tx, session); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetUser retrieves the full record for a normalized email: the user row,
// its currently usable sessions, the most recent security event, and up
// to the last ten suspicious activities. Absence is a normal outcome and
// returns (nil, nil).
func (s *AccountService) GetUser(ctx context.Context, email string) (*domain.User, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.ActiveSessions, err = s.sessions.GetActiveByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	user.LastSecurityEvent, err = s.events.LatestEventByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load security events: %w", err)
	}
	user.RecentSuspiciousActs, err = s.events.RecentActivitiesByEmail(ctx, email, recentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load suspicious activities: %w", err)
	}
	return user, nil
}

// UpdateUser applies a partial update and bumps updated_at. Security-
// relevant mutations (password change, email verification) are written to
// the audit log; the log write never fails the update.
func (s *AccountService) UpdateUser(ctx context.Context, email string, update *domain.UserUpdate, evCtx security.EventContext) error {
	email = NormalizeEmail(email)

	if err := s.users.Update(ctx, email, update); err != nil {
		return err
	}

	if update.PasswordHash != nil {
		_ = s.monitor.LogEvent(ctx, email, domain.EventPasswordChange, evCtx)
	}
	if update.EmailVerified != nil && *update.EmailVerified {
		_ = s.monitor.LogEvent(ctx, email, domain.EventEmailVerified, evCtx)
	}
	if update.SecurityAnswer1Hash != nil || update.SecurityAnswer2Hash != nil {
		_ = s.monitor.LogEvent(ctx, email, domain.EventSecurityQuestionsSet, evCtx)
	}
	return nil
}

// DeleteUser removes a user and every dependent row (sessions, events,
// activities, tokens) in dependency order.
func (s *AccountService) DeleteUser(ctx context.Context, email string) error {
	return s.users.Delete(ctx, NormalizeEmail(email))
}

// GetUsersByZipCode returns all users registered in a ZIP code; empty
// slice when none match.
func (s *AccountService) GetUsersByZipCode(ctx context.Context, zip string) ([]*domain.User, error) {
	return s.users.GetByZipCode(ctx, zip)
}

// SearchUsersByName performs a case-insensitive partial name match; empty
// slice when none match.
func (s *AccountService) SearchUsersByName(ctx context.Context, first, last *string) ([]*domain.User, error) {
	return s.users.SearchByName(ctx, first, last)
}

// PasswordPolicy exposes the active policy so handlers can reject a weak
// password up front, before spending a single-use credential on it.
func (s *AccountService) PasswordPolicy() *PasswordPolicy {
	return s.policy
}

// Authenticate verifies an email and password. Lockout is enforced before
// the password check; failures increment the counter, are audited, and
// feed the suspicious-activity monitor. The returned error never reveals
// whether the email exists.
func (s *AccountService) Authenticate(ctx context.Context, email, password string, evCtx security.EventContext) (*domain.User, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.IsLocked() {
		return nil, domain.ErrAccountLocked
	}

	ok, err := CheckPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordFailedLogin(ctx, email, evCtx)
		return nil, domain.ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.ResetFailedLoginAttempts(ctx, email); err != nil {
			s.logger.Error("failed to reset login attempts", "email", email, "error", err)
		}
	}

	now := time.Now()
	if err := s.users.Update(ctx, email, &domain.UserUpdate{LastLoginAt: &now}); err != nil {
		s.logger.Error("failed to record last login", "email", email, "error", err)
	}
	user.LastLoginAt = &now

	_ = s.monitor.LogEvent(ctx, email, domain.EventLogin, evCtx)
	return user, nil
}

func (s *AccountService) recordFailedLogin(ctx context.Context, email string, evCtx security.EventContext) {
	_, locked, err := s.users.IncrementFailedLoginAttempts(ctx, email, s.lockout.Duration, s.lockout.MaxAttempts)
	if err != nil {
		s.logger.Error("failed to increment login attempts", "email", email, "error", err)
	}

	_ = s.monitor.LogEvent(ctx, email, domain.EventFailedLogin, evCtx)
	if locked {
		_ = s.monitor.LogEvent(ctx, email, domain.EventAccountLocked, evCtx)
	}

	if _, err := s.monitor.CheckSuspicious(ctx, email); err != nil {
		s.logger.Error("suspicious activity check failed", "email", email, "error", err)
	}
}

// ChangePassword verifies the current password, then applies the new one.
func (s *AccountService) ChangePassword(ctx context.Context, email, current, next string, evCtx security.EventContext) error {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	ok, err := CheckPassword(current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	if err := s.policy.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	return s.UpdateUser(ctx, email, &domain.UserUpdate{PasswordHash: &hash}, evCtx)
}

// ResetPassword applies a new password on behalf of a verified reset
// token. Every active session is revoked so a stolen session cannot
// outlive the reset.
func (s *AccountService) ResetPassword(ctx context.Context, email, next string, evCtx security.EventContext) error {
	email = NormalizeEmail(email)

	if err := s.policy.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	if err := s.users.Update(ctx, email, &domain.UserUpdate{PasswordHash: &hash}); err != nil {
		return err
	}
	if err := s.users.ResetFailedLoginAttempts(ctx, email); err != nil {
		s.logger.Error("failed to reset login attempts", "email", email, "error", err)
	}
	if err := s.sessions.RevokeAllByEmail(ctx, email, domain.RevocationSecurityLogout); err != nil {
		s.logger.Error("failed to revoke sessions after reset", "email", email, "error", err)
	}

	_ = s.monitor.LogEvent(ctx, email, domain.EventPasswordResetDone, evCtx)
	return nil
}

// SetSecurityQuestions stores two recovery questions with hashed answers.
func (s *AccountService) SetSecurityQuestions(ctx context.Context, email, q1, a1, q2, a2 string, evCtx security.EventContext) error {
	h1, err := HashSecurityAnswer(a1)
	if err != nil {
		return err
	}
	h2, err := HashSecurityAnswer(a2)
	if err != nil {
		return err
	}

	return s.UpdateUser(ctx, NormalizeEmail(email), &domain.UserUpdate{
		SecurityQuestion1:   &q1,
		SecurityAnswer1Hash: &h1,
		SecurityQuestion2:   &q2,
		SecurityAnswer2Hash: &h2,
	}, evCtx)
}

// Unlock clears a lockout ahead of schedule and audits it.
func (s *AccountService) Unlock(ctx context.Context, email string, evCtx security.EventContext) error {
	email = NormalizeEmail(email)
	if err := s.users.ResetFailedLoginAttempts(ctx, email); err != nil {
		return err
	}
	_ = s.monitor.LogEvent(ctx, email, domain.EventAccountUnlocked, evCtx)
	return nil
}
