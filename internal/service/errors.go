// Package service implements the auth facade: the composite login,
// refresh, logout, assignment and context-switch operations over the
// stores, the token codec, the permission resolver and the audit sink.
package service

import (
	"errors"
	"fmt"
)

// Facade error taxonomy. Callers above the facade never see raw storage
// errors; everything is translated into one of these kinds.
var (
	// ErrInvalidCredentials is returned for any login failure. It is
	// deliberately generic: the caller can never learn whether the
	// identifier exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound is returned when a referenced entity is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on uniqueness or state violations.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned for transient storage failures. It is
	// never conflated with an authorization failure.
	ErrUnavailable = errors.New("temporarily unavailable")

	// ErrDegraded is returned when write actions are refused because
	// the audit sink cannot guarantee persistence.
	ErrDegraded = errors.New("degraded mode: writes refused until audit sink recovers")
)

// AuthzError is an authenticated-but-not-permitted failure carrying the
// resolver's reason code.
type AuthzError struct {
	Reason string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// Unauthorized builds an AuthzError with the given reason code.
func Unauthorized(reason string) error {
	return &AuthzError{Reason: reason}
}
