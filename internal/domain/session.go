package domain

import (
	"time"

	"github.com/google/uuid"
)

// RevocationReason records why a session stopped being usable.
type RevocationReason string

const (
	RevocationLogout         RevocationReason = "logout"
	RevocationSecurityLogout RevocationReason = "security_logout"
	RevocationExpired        RevocationReason = "expired"
)

// Session represents one active login for a user. Tokens are opaque
// server-side credentials; there is no claims payload to inspect.
type Session struct {
	ID            uuid.UUID
	UserEmail     string
	Token         string
	DeviceInfo    *string
	IP            *string
	UserAgent     *string
	CreatedAt     time.Time
	LastActiveAt  time.Time
	ExpiresAt     time.Time
	Active        bool
	RevokedAt     *time.Time
	RevokedReason *RevocationReason
}

// IsValid returns true while the session is usable: still marked active and
// not past its absolute expiry.
func (s *Session) IsValid() bool {
	if !s.Active {
		return false
	}
	return time.Now().Before(s.ExpiresAt)
}
