package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/citzn/civic-auth/internal/domain"
)

// SecurityEventsRepository persists the append-only audit log and the
// suspicious activities derived from it. Events are never updated.
type SecurityEventsRepository struct {
	db *sql.DB
}

// NewSecurityEventsRepository creates a new security events repository.
func NewSecurityEventsRepository(db *sql.DB) *SecurityEventsRepository {
	return &SecurityEventsRepository{db: db}
}

// InsertEvent appends one audit record.
func (r *SecurityEventsRepository) InsertEvent(ctx context.Context, event *domain.SecurityEvent) error {
	query := `
		INSERT INTO security_events (id, user_email, event_type, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.UserEmail, event.Type, event.IP, event.UserAgent, event.Details, event.CreatedAt,
	)
	return err
}

// RecentEventsByEmail returns the newest n events for a user, newest first.
func (r *SecurityEventsRepository) RecentEventsByEmail(ctx context.Context, email string, n int) ([]*domain.SecurityEvent, error) {
	query := `
		SELECT id, user_email, event_type, ip_address, user_agent, details, created_at
		FROM security_events
		WHERE user_email = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, email, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.SecurityEvent
	for rows.Next() {
		event := &domain.SecurityEvent{}
		err := rows.Scan(
			&event.ID, &event.UserEmail, &event.Type,
			&event.IP, &event.UserAgent, &event.Details, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// LatestEventByEmail returns the single most recent event for a user, or
// nil when the user has no history.
func (r *SecurityEventsRepository) LatestEventByEmail(ctx context.Context, email string) (*domain.SecurityEvent, error) {
	events, err := r.RecentEventsByEmail(ctx, email, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// DeleteEventsBefore purges events older than the cutoff, enforcing the
// retention policy. Returns the number of rows removed.
func (r *SecurityEventsRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InsertActivity persists one suspicious activity.
func (r *SecurityEventsRepository) InsertActivity(ctx context.Context, activity *domain.SuspiciousActivity) error {
	query := `
		INSERT INTO suspicious_activities (id, user_email, activity_type, severity, details, ip_address, investigated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		activity.ID, activity.UserEmail, activity.Type, activity.Severity,
		activity.Details, activity.IP, activity.Investigated, activity.CreatedAt,
	)
	return err
}

// RecentActivitiesByEmail returns the newest n suspicious activities for a
// user, newest first.
func (r *SecurityEventsRepository) RecentActivitiesByEmail(ctx context.Context, email string, n int) ([]*domain.SuspiciousActivity, error) {
	query := `
		SELECT id, user_email, activity_type, severity, details, ip_address, investigated, resolution, created_at
		FROM suspicious_activities
		WHERE user_email = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, email, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []*domain.SuspiciousActivity
	for rows.Next() {
		a := &domain.SuspiciousActivity{}
		err := rows.Scan(
			&a.ID, &a.UserEmail, &a.Type, &a.Severity,
			&a.Details, &a.IP, &a.Investigated, &a.Resolution, &a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// ResolveActivity marks a suspicious activity investigated with an
// operator's resolution note.
func (r *SecurityEventsRepository) ResolveActivity(ctx context.Context, id uuid.UUID, resolution string) error {
	query := `
		UPDATE suspicious_activities
		SET investigated = TRUE, resolution = $2
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, resolution)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}
