package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/citzn/civic-auth/internal/domain"
)

// TokensRepository handles single-use credential persistence for both
// password-reset and email-verification tokens. The two kinds live in
// separate tables with an identical shape; the kind selects the table.
type TokensRepository struct {
	db *sql.DB
}

// NewTokensRepository creates a new tokens repository.
func NewTokensRepository(db *sql.DB) *TokensRepository {
	return &TokensRepository{db: db}
}

func tableFor(kind domain.TokenKind) (string, error) {
	switch kind {
	case domain.TokenKindPasswordReset:
		return "password_reset_tokens", nil
	case domain.TokenKindEmailVerification:
		return "email_verification_tokens", nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

// Create persists a fresh, unused token. Multiple outstanding tokens per
// email are permitted; creation does not touch other rows.
func (r *TokensRepository) Create(ctx context.Context, token *domain.AccountToken) error {
	table, err := tableFor(token.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, token, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, FALSE)
	`, table)
	_, err = r.db.ExecContext(ctx, query,
		token.ID, token.Email, token.Token, token.CreatedAt, token.ExpiresAt,
	)
	return err
}

// GetByToken looks a token up by its exact opaque string. No expiry
// filtering happens here: an expired-but-unused token is still returned so
// callers can distinguish "expired" from "not found".
func (r *TokensRepository) GetByToken(ctx context.Context, kind domain.TokenKind, opaque string) (*domain.AccountToken, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, email, token, created_at, expires_at, used, used_at
		FROM %s
		WHERE token = $1
	`, table)

	token := &domain.AccountToken{Kind: kind}
	err = r.db.QueryRowContext(ctx, query, opaque).Scan(
		&token.ID, &token.Email, &token.Token,
		&token.CreatedAt, &token.ExpiresAt, &token.Used, &token.UsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// MarkUsed consumes a token, stamping used_at server-side. The WHERE
// used = FALSE guard makes consumption atomic: under concurrent calls
// exactly one sees consumed = true. Marking an already-used token is a
// no-op, not an error; the caller decides whether losing the race
// matters.
func (r *TokensRepository) MarkUsed(ctx context.Context, kind domain.TokenKind, opaque string) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET used = TRUE, used_at = NOW()
		WHERE token = $1 AND used = FALSE
	`, table)
	result, err := r.db.ExecContext(ctx, query, opaque)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	// Nothing updated: either already used (fine) or absent (an error).
	existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE token = $1)`, table)
	var exists bool
	if err := r.db.QueryRowContext(ctx, existsQuery, opaque).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrTokenNotFound
	}
	return false, nil
}

// DeleteExpired removes every row past its expiry, used or not, and
// returns the number removed. Run by the periodic cleanup sweep, never on
// the login or registration hot path.
func (r *TokensRepository) DeleteExpired(ctx context.Context, kind domain.TokenKind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < NOW()`, table)
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
