package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/citzn/civic-auth/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestBuildUserUpdate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		update      *domain.UserUpdate
		wantClauses []string
		wantArgs    int
	}{
		{
			name:        "single field",
			update:      &domain.UserUpdate{ZipCode: strPtr("95110")},
			wantClauses: []string{"zip_code = $2", "updated_at = $3"},
			wantArgs:    2,
		},
		{
			name: "multiple fields keep placeholder order",
			update: &domain.UserUpdate{
				PasswordHash: strPtr("hash"),
				FirstName:    strPtr("Ada"),
				LastName:     strPtr("Lovelace"),
			},
			wantClauses: []string{
				"password_hash = $2",
				"first_name = $3",
				"last_name = $4",
				"updated_at = $5",
			},
			wantArgs: 4,
		},
		{
			name:        "empty update still stamps updated_at",
			update:      &domain.UserUpdate{},
			wantClauses: []string{"updated_at = $2"},
			wantArgs:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, args := buildUserUpdate(tt.update, now)

			for _, clause := range tt.wantClauses {
				if !strings.Contains(set, clause) {
					t.Errorf("SET clause %q missing %q", set, clause)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildUserUpdate_EmailVerified(t *testing.T) {
	verified := true
	set, args := buildUserUpdate(&domain.UserUpdate{EmailVerified: &verified}, time.Now())

	if !strings.Contains(set, "email_verified = $2") {
		t.Errorf("SET clause %q missing email_verified placeholder", set)
	}
	if len(args) != 2 {
		t.Fatalf("args = %d, want 2", len(args))
	}
	if args[0] != true {
		t.Errorf("first arg = %v, want true", args[0])
	}
}

// stubQuerier returns a canned error from every statement.
type stubQuerier struct {
	execErr error
}

func (s *stubQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, s.execErr
}

func (s *stubQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, s.execErr
}

func (s *stubQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func TestCreateTx_DuplicateEmail(t *testing.T) {
	repo := &UsersRepository{}
	user := &domain.User{ID: uuid.New(), Email: "voter@example.com"}

	// The unique constraint on users.email is the backstop against two
	// concurrent registrations for the same address.
	q := &stubQuerier{execErr: &pq.Error{Code: "23505"}}
	err := repo.CreateTx(context.Background(), q, user)
	if !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Errorf("error = %v, want domain.ErrUserAlreadyExists", err)
	}
}

func TestCreateTx_OtherDriverErrorPassesThrough(t *testing.T) {
	repo := &UsersRepository{}
	user := &domain.User{ID: uuid.New(), Email: "voter@example.com"}

	dbDown := errors.New("connection refused")
	q := &stubQuerier{execErr: dbDown}
	err := repo.CreateTx(context.Background(), q, user)
	if !errors.Is(err, dbDown) {
		t.Errorf("error = %v, want the driver error unchanged", err)
	}
	if errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Error("unrelated driver errors must not read as duplicates")
	}
}
