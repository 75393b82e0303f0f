package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Email is the lookup key and is
// normalized to lowercase before any read or write.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    *string
	LastName     *string
	ZipCode      *string

	EmailVerified bool

	FailedLoginAttempts int
	LockedUntil         *time.Time

	SecurityQuestion1   *string
	SecurityAnswer1Hash *string
	SecurityQuestion2   *string
	SecurityAnswer2Hash *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time

	// Populated on read by the account service, not stored on the row.
	ActiveSessions       []*Session
	LastSecurityEvent    *SecurityEvent
	RecentSuspiciousActs []*SuspiciousActivity
}

// IsLocked returns true if the account is currently locked out.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// HasSecurityQuestions returns true if both recovery questions are set.
func (u *User) HasSecurityQuestions() bool {
	return u.SecurityQuestion1 != nil && u.SecurityAnswer1Hash != nil &&
		u.SecurityQuestion2 != nil && u.SecurityAnswer2Hash != nil
}

// UserUpdate describes a partial update to a user row. Nil fields are left
// untouched. The repository always bumps updated_at when at least one field
// is set; an empty update is a no-op and issues no write.
type UserUpdate struct {
	PasswordHash        *string
	FirstName           *string
	LastName            *string
	ZipCode             *string
	EmailVerified       *bool
	LastLoginAt         *time.Time
	SecurityQuestion1   *string
	SecurityAnswer1Hash *string
	SecurityQuestion2   *string
	SecurityAnswer2Hash *string
}

// IsEmpty returns true if no field is set.
func (u *UserUpdate) IsEmpty() bool {
	return u.PasswordHash == nil && u.FirstName == nil && u.LastName == nil &&
		u.ZipCode == nil && u.EmailVerified == nil && u.LastLoginAt == nil &&
		u.SecurityQuestion1 == nil && u.SecurityAnswer1Hash == nil &&
		u.SecurityQuestion2 == nil && u.SecurityAnswer2Hash == nil
}
