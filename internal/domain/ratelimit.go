package domain

import "time"

// RateLimitKind names the purpose a counter protects. (identifier, kind) is
// the composite key; the same IP can have independent counters for login
// and password-reset traffic.
type RateLimitKind string

const (
	RateLimitLogin             RateLimitKind = "login"
	RateLimitPasswordReset     RateLimitKind = "password_reset"
	RateLimitRegistration      RateLimitKind = "registration"
	RateLimitEmailVerification RateLimitKind = "email_verification"
)

// RateLimitInfo is a fixed-window attempt counter for one identifier
// (IP or email) and purpose.
type RateLimitInfo struct {
	Identifier   string
	Kind         RateLimitKind
	Attempts     int
	WindowStart  time.Time
	Blocked      bool
	BlockedUntil *time.Time
}
