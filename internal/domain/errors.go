package domain

import "errors"

// Account errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to too many failed login attempts")
)

// Session errors. Expired or revoked sessions read as absent on lookup;
// the state is visible on the row itself (Active, RevokedReason).
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Monitor errors
var (
	ErrActivityNotFound = errors.New("suspicious activity not found")
)

// Token errors
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenUsed     = errors.New("token already used")
)

// Validation errors
var (
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrWeakPassword   = errors.New("password does not meet requirements")
	ErrInvalidZipCode = errors.New("invalid ZIP code")
)
