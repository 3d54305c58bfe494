package domain

import (
	"errors"
	"fmt"
)

// Error classes. Handlers map these onto transport status codes with errors.Is.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
)

var (
	ErrTokenMalformed    = fmt.Errorf("%w: malformed token", ErrUnauthenticated)
	ErrTokenBadSignature = fmt.Errorf("%w: invalid token signature", ErrUnauthenticated)
	ErrTokenExpired      = fmt.Errorf("%w: token expired", ErrUnauthenticated)

	ErrInvalidCredentials  = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrAdminAuthRequired   = fmt.Errorf("%w: admin authentication required", ErrUnauthenticated)
	ErrDirectoryNotEmpty   = errors.New("directory already bootstrapped")
	ErrUsernameTaken       = errors.New("duplicate username")
	ErrIdentityNotFound    = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrJobNotFound         = fmt.Errorf("%w: job not found", ErrNotFound)
	ErrInvalidTechnician   = NewValidationError("technician does not exist or does not have TECHNICIAN role")
	ErrIdempotencyConflict = errors.New("idempotency key already claimed")
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Msg string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string { return e.Msg }

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	t, ok := target.(*ValidationError)
	return ok && t.Msg == e.Msg
}
