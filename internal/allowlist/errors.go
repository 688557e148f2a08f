package allowlist

import (
	"errors"
	"fmt"
)

// Sentinel errors for allow-list operations.
var (
	// ErrForbiddenAPIKey indicates that an API key is not in the allow-list.
	ErrForbiddenAPIKey = errors.New("api key not in allow-list")

	// ErrInvalidEntry indicates that an allow-list entry is malformed.
	ErrInvalidEntry = errors.New("invalid allow-list entry")
)

// ForbiddenError is returned by Lookup for keys that are not allowed.
type ForbiddenError struct {
	Key string
}

// Error returns the client-visible rejection message.
func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("API %q is not in the allow-list", e.Key)
}

// Unwrap returns ErrForbiddenAPIKey.
func (e *ForbiddenError) Unwrap() error {
	return ErrForbiddenAPIKey
}

// EntryError describes why an entry was rejected by New.
type EntryError struct {
	Key     string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("allow-list entry %q: %s: %v", e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("allow-list entry %q: %s", e.Key, e.Message)
}

// Unwrap returns the underlying error.
func (e *EntryError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInvalidEntry.
func (e *EntryError) Is(target error) bool {
	return target == ErrInvalidEntry
}
