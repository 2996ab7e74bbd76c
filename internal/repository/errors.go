// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// auth facade to distinguish between different failure scenarios
// without inspecting driver-specific errors. For example, ErrNotFound
// indicates a referenced entity is absent, while a DuplicateError
// signals that a uniqueness constraint was violated and names the key.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row. The facade
// translates it into its NotFound kind, or swallows it where disclosure
// would enable enumeration.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of
// conflicting state, such as assigning a hostel to a user whose role
// does not permit assignments.
var ErrConflict = errors.New("conflict")

// DuplicateError reports a violated uniqueness constraint. Key names
// the logical key ("email", "username", "assignment").
type DuplicateError struct {
	Key string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Key)
}

// IsDuplicate reports whether err is a DuplicateError, returning the
// violated key when it is.
func IsDuplicate(err error) (string, bool) {
	var d *DuplicateError
	if errors.As(err, &d) {
		return d.Key, true
	}
	return "", false
}
