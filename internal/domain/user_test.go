package domain

import (
	"testing"
	"time"
)

func TestUser_IsLocked(t *testing.T) {
	future := time.Now().Add(10 * time.Minute)
	past := time.Now().Add(-10 * time.Minute)

	tests := []struct {
		name        string
		lockedUntil *time.Time
		want        bool
	}{
		{
			name:        "no lockout",
			lockedUntil: nil,
			want:        false,
		},
		{
			name:        "locked until future",
			lockedUntil: &future,
			want:        true,
		},
		{
			name:        "lockout elapsed",
			lockedUntil: &past,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{LockedUntil: tt.lockedUntil}
			if got := u.IsLocked(); got != tt.want {
				t.Errorf("IsLocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		active    bool
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "active and unexpired",
			active:    true,
			expiresAt: time.Now().Add(time.Hour),
			want:      true,
		},
		{
			name:      "revoked",
			active:    false,
			expiresAt: time.Now().Add(time.Hour),
			want:      false,
		},
		{
			name:      "expired",
			active:    true,
			expiresAt: time.Now().Add(-time.Minute),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{Active: tt.active, ExpiresAt: tt.expiresAt}
			if got := s.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccountToken_Validity(t *testing.T) {
	tests := []struct {
		name      string
		used      bool
		expiresAt time.Time
		wantValid bool
	}{
		{
			name:      "fresh token",
			used:      false,
			expiresAt: time.Now().Add(time.Hour),
			wantValid: true,
		},
		{
			name:      "consumed token",
			used:      true,
			expiresAt: time.Now().Add(time.Hour),
			wantValid: false,
		},
		{
			name:      "expired token",
			used:      false,
			expiresAt: time.Now().Add(-time.Second),
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &AccountToken{Used: tt.used, ExpiresAt: tt.expiresAt}
			if got := tok.IsValid(); got != tt.wantValid {
				t.Errorf("IsValid() = %v, want %v", got, tt.wantValid)
			}
		})
	}
}

func TestUserUpdate_IsEmpty(t *testing.T) {
	empty := &UserUpdate{}
	if !empty.IsEmpty() {
		t.Error("zero-value update should be empty")
	}

	hash := "x"
	nonEmpty := &UserUpdate{PasswordHash: &hash}
	if nonEmpty.IsEmpty() {
		t.Error("update with a field set should not be empty")
	}
}
