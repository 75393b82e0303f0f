// Package ratelimit implements a fixed-window attempt counter persisted
// per (identifier, purpose) pair.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/citzn/civic-auth/internal/domain"
)

// Store is the persistence the limiter needs. Implemented by
// repository.RateLimitsRepository.
type Store interface {
	Get(ctx context.Context, identifier string, kind domain.RateLimitKind) (*domain.RateLimitInfo, error)
	Upsert(ctx context.Context, info *domain.RateLimitInfo) error
}

// Metrics is the instrumentation surface the limiter reports to.
type Metrics interface {
	RecordRateLimitDenied(kind string)
	RecordRateLimitFailOpen()
}

// Policy bounds attempts for one purpose within a fixed window.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Result reports the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter tracks attempt counters per identifier and purpose.
//
// If the store is unreachable the limiter fails open: the request is
// allowed and the failure logged. Locking every user out because the
// counter store is down would be worse than briefly losing enforcement.
// This is a deliberate policy choice; do not change it to fail closed.
type Limiter struct {
	store    Store
	policies map[domain.RateLimitKind]Policy
	logger   *slog.Logger
	metrics  Metrics
}

// NewLimiter creates a limiter with per-purpose policies. metrics may be
// nil.
func NewLimiter(store Store, policies map[domain.RateLimitKind]Policy, logger *slog.Logger, metrics Metrics) *Limiter {
	return &Limiter{
		store:    store,
		policies: policies,
		logger:   logger,
		metrics:  metrics,
	}
}

// Check records one attempt for the identifier and reports whether it is
// allowed. Counters reset once the window has elapsed since window start;
// once attempts reach the policy maximum the identifier is blocked for a
// full window from that moment.
func (l *Limiter) Check(ctx context.Context, identifier string, kind domain.RateLimitKind) Result {
	policy, ok := l.policies[kind]
	if !ok {
		// No policy configured for this purpose: nothing to enforce.
		return Result{Allowed: true, Remaining: 0}
	}

	now := time.Now()

	info, err := l.store.Get(ctx, identifier, kind)
	if err != nil {
		return l.failOpen(kind, policy, err)
	}

	// First attempt ever, or the window has elapsed: start fresh.
	if info == nil || now.Sub(info.WindowStart) > policy.Window {
		fresh := &domain.RateLimitInfo{
			Identifier:  identifier,
			Kind:        kind,
			Attempts:    1,
			WindowStart: now,
			Blocked:     false,
		}
		if err := l.store.Upsert(ctx, fresh); err != nil {
			return l.failOpen(kind, policy, err)
		}
		return Result{
			Allowed:   true,
			Remaining: policy.MaxAttempts - 1,
			ResetAt:   now.Add(policy.Window),
		}
	}

	// Already blocked and the block has not lapsed.
	if info.Blocked && info.BlockedUntil != nil && now.Before(*info.BlockedUntil) {
		l.deny(kind)
		return Result{Allowed: false, Remaining: 0, ResetAt: *info.BlockedUntil}
	}

	info.Attempts++
	if info.Attempts >= policy.MaxAttempts {
		blockedUntil := now.Add(policy.Window)
		info.Blocked = true
		info.BlockedUntil = &blockedUntil
		if err := l.store.Upsert(ctx, info); err != nil {
			return l.failOpen(kind, policy, err)
		}
		l.deny(kind)
		return Result{Allowed: false, Remaining: 0, ResetAt: blockedUntil}
	}

	if err := l.store.Upsert(ctx, info); err != nil {
		return l.failOpen(kind, policy, err)
	}
	return Result{
		Allowed:   true,
		Remaining: policy.MaxAttempts - info.Attempts,
		ResetAt:   info.WindowStart.Add(policy.Window),
	}
}

// IsBlocked is a pure read of the current block state, with no attempt
// recorded. Used as a cheap pre-check before expensive operations.
func (l *Limiter) IsBlocked(ctx context.Context, identifier string, kind domain.RateLimitKind) bool {
	info, err := l.store.Get(ctx, identifier, kind)
	if err != nil {
		l.logger.Warn("rate limit store unreachable, failing open",
			"identifier", identifier, "kind", kind, "error", err)
		return false
	}
	if info == nil || !info.Blocked || info.BlockedUntil == nil {
		return false
	}
	return time.Now().Before(*info.BlockedUntil)
}

func (l *Limiter) failOpen(kind domain.RateLimitKind, policy Policy, err error) Result {
	l.logger.Warn("rate limit store unreachable, failing open", "kind", kind, "error", err)
	if l.metrics != nil {
		l.metrics.RecordRateLimitFailOpen()
	}
	return Result{Allowed: true, Remaining: policy.MaxAttempts - 1}
}

func (l *Limiter) deny(kind domain.RateLimitKind) {
	if l.metrics != nil {
		l.metrics.RecordRateLimitDenied(string(kind))
	}
}
