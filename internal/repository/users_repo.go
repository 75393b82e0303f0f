package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/citzn/civic-auth/internal/domain"
)

// pq error code for unique constraint violations.
const uniqueViolation = "23505"

// UsersRepository handles user persistence. Callers pass emails already
// normalized to lowercase; the repository does not re-normalize.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, zip_code,
       email_verified, failed_login_attempts, locked_until,
       security_question1, security_answer1_hash, security_question2, security_answer2_hash,
       created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.ZipCode,
		&user.EmailVerified, &user.FailedLoginAttempts, &user.LockedUntil,
		&user.SecurityQuestion1, &user.SecurityAnswer1Hash, &user.SecurityQuestion2, &user.SecurityAnswer2Hash,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	return r.CreateTx(ctx, r.db, user)
}

// CreateTx creates a new user within a transaction. A duplicate normalized
// email surfaces as domain.ErrUserAlreadyExists, never a raw driver error;
// the unique constraint is the correctness backstop against concurrent
// registrations.
func (r *UsersRepository) CreateTx(ctx context.Context, q Querier, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, zip_code,
		                   email_verified, failed_login_attempts,
		                   security_question1, security_answer1_hash,
		                   security_question2, security_answer2_hash,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := q.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.ZipCode,
		user.EmailVerified, user.FailedLoginAttempts,
		user.SecurityQuestion1, user.SecurityAnswer1Hash,
		user.SecurityQuestion2, user.SecurityAnswer2Hash,
		user.CreatedAt, user.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrUserAlreadyExists
	}
	return err
}

// GetByEmail retrieves a user by normalized email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// buildUserUpdate renders the SET clause for a partial update. Placeholder
// numbering starts at $2; $1 is reserved for the email key. updated_at is
// always included.
func buildUserUpdate(u *domain.UserUpdate, now time.Time) (string, []any) {
	var clauses []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)+1))
	}

	if u.PasswordHash != nil {
		add("password_hash", *u.PasswordHash)
	}
	if u.FirstName != nil {
		add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		add("last_name", *u.LastName)
	}
	if u.ZipCode != nil {
		add("zip_code", *u.ZipCode)
	}
	if u.EmailVerified != nil {
		add("email_verified", *u.EmailVerified)
	}
	if u.LastLoginAt != nil {
		add("last_login_at", *u.LastLoginAt)
	}
	if u.SecurityQuestion1 != nil {
		add("security_question1", *u.SecurityQuestion1)
	}
	if u.SecurityAnswer1Hash != nil {
		add("security_answer1_hash", *u.SecurityAnswer1Hash)
	}
	if u.SecurityQuestion2 != nil {
		add("security_question2", *u.SecurityQuestion2)
	}
	if u.SecurityAnswer2Hash != nil {
		add("security_answer2_hash", *u.SecurityAnswer2Hash)
	}
	add("updated_at", now)

	return strings.Join(clauses, ", "), args
}

// Update applies the provided fields to a user row and bumps updated_at.
// An empty update issues no write.
func (r *UsersRepository) Update(ctx context.Context, email string, update *domain.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	set, args := buildUserUpdate(update, time.Now())
	query := "UPDATE users SET " + set + " WHERE email = $1"

	result, err := r.db.ExecContext(ctx, query, append([]any{email}, args...)...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes a user and all dependent rows. Dependents go first,
// within one transaction, to satisfy the foreign keys on users.email.
func (r *UsersRepository) Delete(ctx context.Context, email string) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		deletes := []string{
			`DELETE FROM user_sessions WHERE user_email = $1`,
			`DELETE FROM security_events WHERE user_email = $1`,
			`DELETE FROM suspicious_activities WHERE user_email = $1`,
			`DELETE FROM password_reset_tokens WHERE email = $1`,
			`DELETE FROM email_verification_tokens WHERE email = $1`,
		}
		for _, q := range deletes {
			if _, err := tx.ExecContext(ctx, q, email); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, email)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrUserNotFound
		}
		return nil
	})
}

// GetByZipCode retrieves all users registered in a ZIP code. Returns an
// empty slice when none match.
func (r *UsersRepository) GetByZipCode(ctx context.Context, zip string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE zip_code = $1 ORDER BY created_at`
	return r.queryUsers(ctx, query, zip)
}

// SearchByName performs a case-insensitive partial match on first and/or
// last name. Nil arguments match anything.
func (r *UsersRepository) SearchByName(ctx context.Context, first, last *string) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::text IS NULL OR first_name ILIKE '%' || $1 || '%')
		  AND ($2::text IS NULL OR last_name ILIKE '%' || $2 || '%')
		ORDER BY created_at
	`
	return r.queryUsers(ctx, query, first, last)
}

func (r *UsersRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// IncrementFailedLoginAttempts bumps the failed-login counter and locks the
// account once the counter reaches maxAttempts. Returns the new counter
// value and whether this call triggered the lock.
func (r *UsersRepository) IncrementFailedLoginAttempts(ctx context.Context, email string, lockoutDuration time.Duration, maxAttempts int) (int, bool, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE email = $1
		RETURNING failed_login_attempts, locked_until IS NOT NULL AND locked_until > NOW()
	`
	var attempts int
	var locked bool
	err := r.db.QueryRowContext(ctx, query, email, maxAttempts, lockoutDuration.Seconds()).Scan(&attempts, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, false, err
	}
	return attempts, locked, nil
}

// ResetFailedLoginAttempts clears the counter and any lockout.
func (r *UsersRepository) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = NOW()
		WHERE email = $1
	`
	_, err := r.db.ExecContext(ctx, query, email)
	return err
}
