package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/citzn/civic-auth/internal/domain"
)

// RateLimitsRepository persists fixed-window attempt counters keyed by
// (identifier, rate_limit_type).
type RateLimitsRepository struct {
	db *sql.DB
}

// NewRateLimitsRepository creates a new rate limits repository.
func NewRateLimitsRepository(db *sql.DB) *RateLimitsRepository {
	return &RateLimitsRepository{db: db}
}

// Get retrieves the counter for an identifier and purpose.
func (r *RateLimitsRepository) Get(ctx context.Context, identifier string, kind domain.RateLimitKind) (*domain.RateLimitInfo, error) {
	query := `
		SELECT identifier, rate_limit_type, attempts, window_start, blocked, blocked_until
		FROM rate_limits
		WHERE identifier = $1 AND rate_limit_type = $2
	`
	info := &domain.RateLimitInfo{}
	err := r.db.QueryRowContext(ctx, query, identifier, kind).Scan(
		&info.Identifier, &info.Kind, &info.Attempts,
		&info.WindowStart, &info.Blocked, &info.BlockedUntil,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Upsert writes the counter state, inserting or replacing on the
// composite key.
func (r *RateLimitsRepository) Upsert(ctx context.Context, info *domain.RateLimitInfo) error {
	query := `
		INSERT INTO rate_limits (identifier, rate_limit_type, attempts, window_start, blocked, blocked_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identifier, rate_limit_type) DO UPDATE
		SET attempts = EXCLUDED.attempts,
		    window_start = EXCLUDED.window_start,
		    blocked = EXCLUDED.blocked,
		    blocked_until = EXCLUDED.blocked_until
	`
	_, err := r.db.ExecContext(ctx, query,
		info.Identifier, info.Kind, info.Attempts,
		info.WindowStart, info.Blocked, info.BlockedUntil,
	)
	return err
}

// DeleteStale removes counters whose window ended before the cutoff,
// returning how many were removed.
func (r *RateLimitsRepository) DeleteStale(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM rate_limits
		WHERE (blocked_until IS NULL OR blocked_until < NOW())
		  AND window_start < NOW() - INTERVAL '1 day'
	`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
