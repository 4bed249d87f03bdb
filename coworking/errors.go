package coworking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by update, delete and get for an unknown id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail rejects a member whose email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrInvalidField rejects a value the data files cannot store.
	ErrInvalidField = errors.New("invalid field")

	// Referential integrity failures. Each wraps ErrNotFound.
	ErrMemberNotFound    = fmt.Errorf("member: %w", ErrNotFound)
	ErrWorkspaceNotFound = fmt.Errorf("workspace: %w", ErrNotFound)
	ErrBookingNotFound   = fmt.Errorf("booking: %w", ErrNotFound)
	ErrPaymentNotFound   = fmt.Errorf("payment: %w", ErrNotFound)
)

func invalidField(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidField, field, reason)
}

func notFound(kind error, id int) error {
	return fmt.Errorf("%w (id %d)", kind, id)
}
