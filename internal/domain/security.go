package domain

import (
	"time"

	"github.com/google/uuid"
)

// SecurityEventType is the closed set of auditable account actions.
type SecurityEventType string

const (
	EventLogin                SecurityEventType = "login"
	EventFailedLogin          SecurityEventType = "failed_login"
	EventLogout               SecurityEventType = "logout"
	EventPasswordChange       SecurityEventType = "password_change"
	EventPasswordResetRequest SecurityEventType = "password_reset_request"
	EventPasswordResetDone    SecurityEventType = "password_reset_complete"
	EventEmailVerified        SecurityEventType = "email_verified"
	EventAccountLocked        SecurityEventType = "account_locked"
	EventAccountUnlocked      SecurityEventType = "account_unlocked"
	EventSecurityQuestionsSet SecurityEventType = "security_questions_set"
	EventSessionRevoked       SecurityEventType = "session_revoked"
)

// SecurityEvent is an immutable audit record. Rows are append-only and
// purged only by the retention sweep.
type SecurityEvent struct {
	ID        uuid.UUID
	UserEmail string
	Type      SecurityEventType
	IP        *string
	UserAgent *string
	Details   *string
	CreatedAt time.Time
}

// ActivityType names a detected suspicious pattern.
type ActivityType string

const (
	ActivityMultipleFailedLogins ActivityType = "multiple_failed_logins"
	ActivityUnusualLocation      ActivityType = "unusual_location"
	ActivityRapidPasswordResets  ActivityType = "rapid_password_resets"
)

// Severity grades a suspicious activity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SuspiciousActivity is a derived signal produced when a pattern of
// security events crosses a threshold. Operators may later mark it
// investigated with a resolution note.
type SuspiciousActivity struct {
	ID           uuid.UUID
	UserEmail    string
	Type         ActivityType
	Severity     Severity
	Details      *string
	IP           *string
	Investigated bool
	Resolution   *string
	CreatedAt    time.Time
}
