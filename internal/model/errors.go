package model

import (
	"errors"
	"fmt"
)

// Error families. Specific errors wrap one of these so callers can classify
// with errors.Is without knowing every sentinel.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	// Validation errors
	ErrInvalidAge      = fmt.Errorf("%w: age must be a whole number", ErrValidation)
	ErrUnknownOption   = fmt.Errorf("%w: unrecognized option", ErrValidation)
	ErrInvalidProfile  = fmt.Errorf("%w: incomplete profile", ErrValidation)
	ErrUnknownKind     = fmt.Errorf("%w: unknown session kind", ErrValidation)
	ErrEmptyDateLabel  = fmt.Errorf("%w: date label is required", ErrValidation)
	ErrEmptyAudience   = fmt.Errorf("%w: no recipients selected", ErrValidation)
	ErrUnknownAudience = fmt.Errorf("%w: unknown audience criterion", ErrValidation)

	// Conflict errors
	ErrSessionConflict = fmt.Errorf("%w: an active session with this kind and date already exists", ErrConflict)

	// Not found errors
	ErrSessionNotFound      = fmt.Errorf("session %w", ErrNotFound)
	ErrPersonNotFound       = fmt.Errorf("person %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)

	// Access errors
	ErrNotOrganizer = errors.New("only the organizer can perform this action")

	// Delivery errors
	ErrDeliveryFailed = errors.New("delivery failed")
)

// Unavailable wraps a backend error so it classifies as ErrStorageUnavailable
// while keeping the original cause in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
