package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/citzn/civic-auth/internal/domain"
)

const maxEmailLength = 254 // RFC 5321

var zipRegex = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// ValidateEmail checks an email address for format and length. Validation
// happens before any store call; a rejected email never reaches the
// database.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email address is required", domain.ErrInvalidEmail)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: too long (max %d characters)", domain.ErrInvalidEmail, maxEmailLength)
	}
	if _, err := mail.ParseAddress(NormalizeEmail(email)); err != nil {
		return fmt.Errorf("%w: malformed address", domain.ErrInvalidEmail)
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address. Every lookup and
// write key goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateZipCode accepts 5-digit or ZIP+4 United States postal codes.
func ValidateZipCode(zip string) error {
	if !zipRegex.MatchString(zip) {
		return fmt.Errorf("%w: must be 5 digits or ZIP+4", domain.ErrInvalidZipCode)
	}
	return nil
}

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
}

// DefaultPasswordPolicy returns the policy applied at registration and
// password change: 8+ characters with upper, lower, and a digit.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
	}
}

// ValidatePassword checks a password against the policy.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if p.MinLength > 0 && len(password) < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", domain.ErrWeakPassword, p.MinLength)
	}
	if p.RequireUppercase && !containsClass(password, unicode.IsUpper) {
		return fmt.Errorf("%w: must contain an uppercase letter", domain.ErrWeakPassword)
	}
	if p.RequireLowercase && !containsClass(password, unicode.IsLower) {
		return fmt.Errorf("%w: must contain a lowercase letter", domain.ErrWeakPassword)
	}
	if p.RequireNumber && !containsClass(password, unicode.IsDigit) {
		return fmt.Errorf("%w: must contain a number", domain.ErrWeakPassword)
	}
	return nil
}

func containsClass(s string, class func(rune) bool) bool {
	for _, r := range s {
		if class(r) {
			return true
		}
	}
	return false
}
