package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmailNotFound        = errors.New("email not registered")
	ErrUserInactive         = errors.New("user is not active")
	ErrIncorrectCredentials = errors.New("password incorrect")

	ErrInvalidCode     = errors.New("invalid otp code")
	ErrCodeExpired     = errors.New("otp code is expired")
	ErrCodeAlreadyUsed = errors.New("otp code is not active")

	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrTokenAlreadyRevoked = errors.New("token already revoked")
	ErrTokenNotFound       = errors.New("token not found")

	ErrNoActiveSessions = errors.New("no active sessions for this user")
)

// MissingFieldsError names every absent request field so the caller sees all
// of them at once, not just the first.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// NewMissingFieldsError returns nil when nothing is missing.
func NewMissingFieldsError(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &MissingFieldsError{Fields: fields}
}
