// Package security maintains the append-only security event log and the
// rule-based suspicious activity monitor derived from it.
package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/citzn/civic-auth/internal/domain"
)

// recentEventWindow is how many recent events the detection rules inspect.
const recentEventWindow = 10

// failedLoginThreshold triggers the multiple_failed_logins rule.
const failedLoginThreshold = 3

// EventStore is the persistence the monitor needs. Implemented by
// repository.SecurityEventsRepository.
type EventStore interface {
	InsertEvent(ctx context.Context, event *domain.SecurityEvent) error
	RecentEventsByEmail(ctx context.Context, email string, n int) ([]*domain.SecurityEvent, error)
	InsertActivity(ctx context.Context, activity *domain.SuspiciousActivity) error
	ResolveActivity(ctx context.Context, id uuid.UUID, resolution string) error
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlockChecker reads the current rate-limit block state without recording
// an attempt. Implemented by ratelimit.Limiter.
type BlockChecker interface {
	IsBlocked(ctx context.Context, identifier string, kind domain.RateLimitKind) bool
}

// Metrics is the instrumentation surface the monitor reports to.
type Metrics interface {
	RecordSecurityEvent(eventType string)
	RecordSuspiciousActivity(severity string)
}

// EventContext carries request metadata attached to a logged event.
type EventContext struct {
	IP        string
	UserAgent string
	Details   string
}

// Rule inspects a user's recent events and returns a detected activity,
// or nil when nothing crossed a threshold. Rules are independent
// predicates; adding detection logic means adding a Rule, not editing a
// hard-coded path.
type Rule func(email string, events []*domain.SecurityEvent) *domain.SuspiciousActivity

// FailedLoginRule flags threshold-or-more failed logins within the recent
// event window as multiple_failed_logins at high severity.
func FailedLoginRule(threshold int) Rule {
	return func(email string, events []*domain.SecurityEvent) *domain.SuspiciousActivity {
		failed := 0
		var lastIP *string
		for _, e := range events {
			if e.Type == domain.EventFailedLogin {
				failed++
				if lastIP == nil {
					lastIP = e.IP
				}
			}
		}
		if failed < threshold {
			return nil
		}
		details := fmt.Sprintf("%d failed login attempts within the last %d events", failed, recentEventWindow)
		return &domain.SuspiciousActivity{
			UserEmail: email,
			Type:      domain.ActivityMultipleFailedLogins,
			Severity:  domain.SeverityHigh,
			Details:   &details,
			IP:        lastIP,
		}
	}
}

// Monitor logs security events and evaluates detection rules over them.
type Monitor struct {
	store   EventStore
	blocks  BlockChecker
	logger  *slog.Logger
	metrics Metrics
	rules   []Rule
}

// NewMonitor creates a monitor with the default rule set. metrics may be
// nil.
func NewMonitor(store EventStore, blocks BlockChecker, logger *slog.Logger, metrics Metrics) *Monitor {
	return &Monitor{
		store:   store,
		blocks:  blocks,
		logger:  logger,
		metrics: metrics,
		rules: []Rule{
			FailedLoginRule(failedLoginThreshold),
		},
	}
}

// AddRule registers an additional detection rule.
func (m *Monitor) AddRule(rule Rule) {
	m.rules = append(m.rules, rule)
}

// LogEvent appends one audit record. The write is best-effort: the error
// is returned so the decision to ignore it is visible at the call site,
// and callers on primary paths discard it. A broken audit log must never
// block a legitimate login or password change; the failure is still
// logged here either way.
func (m *Monitor) LogEvent(ctx context.Context, email string, eventType domain.SecurityEventType, evCtx EventContext) error {
	event := &domain.SecurityEvent{
		ID:        uuid.New(),
		UserEmail: email,
		Type:      eventType,
		CreatedAt: time.Now(),
	}
	if evCtx.IP != "" {
		event.IP = &evCtx.IP
	}
	if evCtx.UserAgent != "" {
		event.UserAgent = &evCtx.UserAgent
	}
	if evCtx.Details != "" {
		event.Details = &evCtx.Details
	}

	if err := m.store.InsertEvent(ctx, event); err != nil {
		m.logger.Error("failed to write security event",
			"email", email, "event_type", eventType, "error", err)
		return err
	}
	if m.metrics != nil {
		m.metrics.RecordSecurityEvent(string(eventType))
	}
	return nil
}

// CheckSuspicious runs every rule over the user's recent events and
// persists each detected activity. Returns the activities detected by
// this call.
func (m *Monitor) CheckSuspicious(ctx context.Context, email string) ([]*domain.SuspiciousActivity, error) {
	events, err := m.store.RecentEventsByEmail(ctx, email, recentEventWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}

	var detected []*domain.SuspiciousActivity
	for _, rule := range m.rules {
		activity := rule(email, events)
		if activity == nil {
			continue
		}
		activity.ID = uuid.New()
		activity.CreatedAt = time.Now()

		if err := m.store.InsertActivity(ctx, activity); err != nil {
			m.logger.Error("failed to persist suspicious activity",
				"email", email, "activity_type", activity.Type, "error", err)
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordSuspiciousActivity(string(activity.Severity))
		}
		detected = append(detected, activity)
	}
	return detected, nil
}

// ShouldBlock reports whether the identifier is currently rate-limit
// blocked. Pure read; no attempt is recorded.
func (m *Monitor) ShouldBlock(ctx context.Context, identifier string, kind domain.RateLimitKind) bool {
	return m.blocks.IsBlocked(ctx, identifier, kind)
}

// ResolveActivity marks a suspicious activity investigated with an
// operator's resolution note.
func (m *Monitor) ResolveActivity(ctx context.Context, id uuid.UUID, resolution string) error {
	return m.store.ResolveActivity(ctx, id, resolution)
}

// CleanupOldEvents purges events older than the retention period and
// returns how many were removed.
func (m *Monitor) CleanupOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	return m.store.DeleteEventsBefore(ctx, time.Now().Add(-retention))
}
