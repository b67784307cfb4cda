package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing entity, or one the caller may not see.
	ErrNotFound = errors.New("not found")
	// ErrAuthentication is the uniform failure for bad credentials and
	// invalid, expired or revoked tokens.
	ErrAuthentication = errors.New("authentication failed")
	// ErrUnauthenticated is returned when a protected operation is called
	// without a valid principal.
	ErrUnauthenticated = errors.New("authentication credentials were not provided")
	// ErrRateLimited indicates too many login attempts in the window.
	ErrRateLimited = errors.New("too many attempts")
	// ErrReplayDetected indicates reuse of a rotated refresh token. The
	// whole family has been revoked when this is returned.
	ErrReplayDetected = errors.New("refresh token reuse detected")
	// ErrAlreadyRegistered indicates the identifier or email is taken.
	ErrAlreadyRegistered = errors.New("identifier already registered")

	ErrVerificationInvalid  = errors.New("invalid verification token")
	ErrVerificationExpired  = errors.New("verification token expired")
	ErrVerificationConsumed = errors.New("verification token already consumed")

	// ErrSecretTooLong indicates a secret bcrypt cannot hash.
	ErrSecretTooLong = fmt.Errorf("password must be at most %d bytes", MaxSecretBytes)
	// ErrWrongSecret is returned when the current password presented for a
	// change does not match.
	ErrWrongSecret = errors.New("current password is incorrect")
)

// MaxSecretBytes is the longest secret bcrypt accepts.
const MaxSecretBytes = 72

// ConfigurationError reports a store mapping gap or a disallowed cross-store
// access. It is never recovered from.
type ConfigurationError struct {
	Component string
	Reason    string
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
