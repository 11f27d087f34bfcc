package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned before issuing any call that requires
	// a user id when no session is established.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredentials is returned on a failed sign-in.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailExists is returned when signing up with a taken email.
	ErrEmailExists = errors.New("email already registered")

	// ErrWeakPassword is returned when a password fails the minimum policy.
	ErrWeakPassword = errors.New("password must be at least 8 characters")

	// ErrNotFound is returned when the requested record does not exist or is
	// not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the caller does not own the record.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTimeout is returned when a remote call exceeded its deadline. The
	// underlying operation is not cancelled; only its result is ignored.
	ErrTimeout = errors.New("request timed out")
)

// ValidationError describes a rejected input field. Validation failures are
// surfaced before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
