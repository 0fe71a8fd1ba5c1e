package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input. Wrapped errors carry a
	// message that is safe to show to the caller.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidCredentials is returned when an email/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidTransition is returned when a moderation action is not
	// defined for the article's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
