package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/citzn/civic-auth/internal/domain"
)

// memStore is an in-memory Store for exercising the limiter without a
// database.
type memStore struct {
	rows    map[string]*domain.RateLimitInfo
	getErr  error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*domain.RateLimitInfo)}
}

func (m *memStore) key(identifier string, kind domain.RateLimitKind) string {
	return identifier + "|" + string(kind)
}

func (m *memStore) Get(_ context.Context, identifier string, kind domain.RateLimitKind) (*domain.RateLimitInfo, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	info, ok := m.rows[m.key(identifier, kind)]
	if !ok {
		return nil, nil
	}
	copied := *info
	return &copied, nil
}

func (m *memStore) Upsert(_ context.Context, info *domain.RateLimitInfo) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *info
	m.rows[m.key(info.Identifier, info.Kind)] = &copied
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLimiter(store Store, max int, window time.Duration) *Limiter {
	return NewLimiter(store, map[domain.RateLimitKind]Policy{
		domain.RateLimitLogin: {MaxAttempts: max, Window: window},
	}, testLogger(), nil)
}

func TestLimiter_CountsDownThenBlocks(t *testing.T) {
	limiter := newTestLimiter(newMemStore(), 5, 15*time.Minute)
	ctx := context.Background()

	wantRemaining := []int{4, 3, 2, 1}
	for i, want := range wantRemaining {
		res := limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
		if !res.Allowed {
			t.Fatalf("call %d: denied, want allowed", i+1)
		}
		if res.Remaining != want {
			t.Errorf("call %d: remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res := limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
	if res.Allowed {
		t.Error("fifth call should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("denied call remaining = %d, want 0", res.Remaining)
	}
	if !res.ResetAt.After(time.Now()) {
		t.Error("ResetAt should be in the future while blocked")
	}

	// Still blocked on the next call.
	res = limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
	if res.Allowed {
		t.Error("sixth call should remain denied")
	}
}

func TestLimiter_IndependentIdentifiers(t *testing.T) {
	limiter := newTestLimiter(newMemStore(), 3, time.Minute)
	ctx := context.Background()

	limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
	limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)

	res := limiter.Check(ctx, "5.6.7.8", domain.RateLimitLogin)
	if !res.Allowed || res.Remaining != 2 {
		t.Errorf("fresh identifier: allowed=%v remaining=%d, want allowed with 2", res.Allowed, res.Remaining)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	store := newMemStore()
	limiter := newTestLimiter(store, 3, time.Minute)
	ctx := context.Background()

	limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
	limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
	if res := limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin); res.Allowed {
		t.Fatal("third call should be denied before the window resets")
	}

	// Age the stored window past its duration; the block lapses with it.
	row := store.rows["1.2.3.4|login"]
	row.WindowStart = row.WindowStart.Add(-2 * time.Minute)
	past := time.Now().Add(-time.Second)
	row.BlockedUntil = &past

	res := limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
	if !res.Allowed {
		t.Error("call after window elapsed should be allowed")
	}
	if res.Remaining != 2 {
		t.Errorf("remaining after reset = %d, want 2", res.Remaining)
	}
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	limiter := newTestLimiter(store, 5, time.Minute)

	res := limiter.Check(context.Background(), "1.2.3.4", domain.RateLimitLogin)
	if !res.Allowed {
		t.Error("store failure must fail open, not deny")
	}
}

func TestLimiter_IsBlocked(t *testing.T) {
	store := newMemStore()
	limiter := newTestLimiter(store, 2, time.Minute)
	ctx := context.Background()

	if limiter.IsBlocked(ctx, "1.2.3.4", domain.RateLimitLogin) {
		t.Error("unknown identifier should not be blocked")
	}

	limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)
	limiter.Check(ctx, "1.2.3.4", domain.RateLimitLogin)

	if !limiter.IsBlocked(ctx, "1.2.3.4", domain.RateLimitLogin) {
		t.Error("identifier at the attempt ceiling should be blocked")
	}

	// IsBlocked is a pure read: it records no attempt.
	before := store.rows["1.2.3.4|login"].Attempts
	limiter.IsBlocked(ctx, "1.2.3.4", domain.RateLimitLogin)
	if after := store.rows["1.2.3.4|login"].Attempts; after != before {
		t.Errorf("IsBlocked changed attempts from %d to %d", before, after)
	}

	// Store failure fails open here too.
	store.getErr = errors.New("connection refused")
	if limiter.IsBlocked(ctx, "1.2.3.4", domain.RateLimitLogin) {
		t.Error("IsBlocked must fail open on store error")
	}
}
