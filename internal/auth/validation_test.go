package auth

import (
	"errors"
	"testing"

	"github.com/citzn/civic-auth/internal/domain"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid", email: "a@b.com", wantErr: false},
		{name: "valid with subdomain", email: "citizen@mail.example.org", wantErr: false},
		{name: "mixed case", email: "A@B.COM", wantErr: false},
		{name: "empty", email: "", wantErr: true},
		{name: "missing domain", email: "a@", wantErr: true},
		{name: "missing local part", email: "@b.com", wantErr: true},
		{name: "bare word", email: "nobody", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidEmail) {
				t.Errorf("error should wrap ErrInvalidEmail, got %v", err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@B.COM "); got != "a@b.com" {
		t.Errorf("NormalizeEmail() = %q, want %q", got, "a@b.com")
	}
}

func TestValidateZipCode(t *testing.T) {
	tests := []struct {
		zip     string
		wantErr bool
	}{
		{zip: "95110", wantErr: false},
		{zip: "95110-1234", wantErr: false},
		{zip: "9511", wantErr: true},
		{zip: "951100", wantErr: true},
		{zip: "abcde", wantErr: true},
		{zip: "95110-12", wantErr: true},
		{zip: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.zip, func(t *testing.T) {
			err := ValidateZipCode(tt.zip)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateZipCode(%q) error = %v, wantErr %v", tt.zip, err, tt.wantErr)
			}
		})
	}
}

func TestPasswordPolicy_ValidatePassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "meets policy", password: "Abcdef12", wantErr: false},
		{name: "too short", password: "Ab1x", wantErr: true},
		{name: "no uppercase", password: "abcdef12", wantErr: true},
		{name: "no lowercase", password: "ABCDEF12", wantErr: true},
		{name: "no digit", password: "Abcdefgh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrWeakPassword) {
				t.Errorf("error should wrap ErrWeakPassword, got %v", err)
			}
		})
	}
}
