package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("winemap: not found")
	ErrNotAuthenticated = errors.New("winemap: not authenticated")
	// ErrNotSupported marks an operation an implementation deliberately does
	// not provide (e.g. partial updates against the local store).
	ErrNotSupported = errors.New("winemap: operation not supported")
)

// AuthError carries the provider's message for invalid credentials,
// duplicate signup, and similar auth failures.
type AuthError struct {
	Op      string // signup | signin | update_password
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %s", e.Op, e.Message)
}
