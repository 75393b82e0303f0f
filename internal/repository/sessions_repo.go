package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/citzn/civic-auth/internal/domain"
)

// SessionsRepository handles session persistence. Revocation is always
// soft: rows are kept for audit with active = false and a recorded reason.
type SessionsRepository struct {
	db *sql.DB
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db *sql.DB) *SessionsRepository {
	return &SessionsRepository{db: db}
}

const sessionColumns = `id, user_email, session_token, device_info, ip_address, user_agent,
       created_at, last_active_at, expires_at, active, revoked_at, revoked_reason`

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	s := &domain.Session{}
	err := row.Scan(
		&s.ID, &s.UserEmail, &s.Token, &s.DeviceInfo, &s.IP, &s.UserAgent,
		&s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt, &s.Active, &s.RevokedAt, &s.RevokedReason,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create creates a new session.
func (r *SessionsRepository) Create(ctx context.Context, session *domain.Session) error {
	return r.CreateTx(ctx, r.db, session)
}

// CreateTx creates a new session within a transaction.
func (r *SessionsRepository) CreateTx(ctx context.Context, q Querier, session *domain.Session) error {
	query := `
		INSERT INTO user_sessions (id, user_email, session_token, device_info, ip_address, user_agent,
		                           created_at, last_active_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.ExecContext(ctx, query,
		session.ID, session.UserEmail, session.Token, session.DeviceInfo, session.IP, session.UserAgent,
		session.CreatedAt, session.LastActiveAt, session.ExpiresAt, session.Active,
	)
	return err
}

// GetByToken retrieves a session by its opaque token, whatever its state.
// Callers decide validity; a revoked or expired row is still readable.
func (r *SessionsRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_token = $1`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetActiveByEmail retrieves all usable sessions for a user, newest first.
func (r *SessionsRepository) GetActiveByEmail(ctx context.Context, email string) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE user_email = $1 AND active = TRUE AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Touch refreshes the sliding activity timestamp. Absolute expiry is
// untouched; sessions do not roll.
func (r *SessionsRepository) Touch(ctx context.Context, token string) error {
	query := `
		UPDATE user_sessions
		SET last_active_at = NOW()
		WHERE session_token = $1 AND active = TRUE
	`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// Revoke soft-revokes a session, recording when and why.
func (r *SessionsRepository) Revoke(ctx context.Context, token string, reason domain.RevocationReason) error {
	query := `
		UPDATE user_sessions
		SET active = FALSE, revoked_at = NOW(), revoked_reason = $2
		WHERE session_token = $1 AND active = TRUE
	`
	result, err := r.db.ExecContext(ctx, query, token, reason)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// RevokeAllByEmail soft-revokes every active session a user holds.
func (r *SessionsRepository) RevokeAllByEmail(ctx context.Context, email string, reason domain.RevocationReason) error {
	query := `
		UPDATE user_sessions
		SET active = FALSE, revoked_at = NOW(), revoked_reason = $2
		WHERE user_email = $1 AND active = TRUE
	`
	_, err := r.db.ExecContext(ctx, query, email, reason)
	return err
}

// RevokeExpired bulk soft-revokes sessions past their expiry that are
// still marked active, returning how many were swept.
func (r *SessionsRepository) RevokeExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE user_sessions
		SET active = FALSE, revoked_at = NOW(), revoked_reason = $1
		WHERE active = TRUE AND expires_at <= NOW()
	`
	result, err := r.db.ExecContext(ctx, query, domain.RevocationExpired)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
