package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind selects which single-use credential table a token lives in.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailVerification TokenKind = "email_verification"
)

// AccountToken is a single-use, time-boxed credential: a password-reset or
// email-verification token. Both kinds share the same shape and lifecycle.
//
// A token is trustworthy only while Used is false and ExpiresAt is in the
// future. Reads perform no expiry filtering; callers check IsExpired and
// Used themselves so "expired" and "not found" stay distinguishable.
type AccountToken struct {
	ID        uuid.UUID
	Email     string
	Token     string
	Kind      TokenKind
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}

// IsExpired returns true once the expiry has elapsed.
func (t *AccountToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsValid returns true if the token is unconsumed and unexpired.
func (t *AccountToken) IsValid() bool {
	return !t.Used && !t.IsExpired()
}
