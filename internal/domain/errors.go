package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by services wraps exactly one of these;
// the HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
	ErrDataIntegrity = errors.New("data integrity fault")
	ErrForbidden     = errors.New("forbidden")
)

// Specific errors, each wrapping one of the kinds above.
var (
	ErrEventNotPublished     = fmt.Errorf("%w: event is not published", ErrInvalidState)
	ErrRegistrationClosed    = fmt.Errorf("%w: registration is closed for this event", ErrInvalidState)
	ErrAlreadyCancelled      = fmt.Errorf("%w: registration is already cancelled", ErrInvalidState)
	ErrInvalidTransition     = fmt.Errorf("%w: status transition not allowed", ErrInvalidState)
	ErrDuplicateRegistration = fmt.Errorf("%w: email already registered for this event", ErrConflict)
	ErrSlugTaken             = fmt.Errorf("%w: an event with this slug already exists", ErrConflict)
	ErrNegativeAttendees     = fmt.Errorf("%w: attendee counter would go negative", ErrDataIntegrity)
)

// ErrCapacityReached is returned by the bounded increment when the event has no spot left.
// It is not a failure of the registration: the engine turns it into a waitlisted entry.
var ErrCapacityReached = errors.New("event capacity reached")

// ErrDuplicateTicketCode is returned by the registration store when the ticket code is taken.
var ErrDuplicateTicketCode = errors.New("ticket code already in use")

// ErrTicketCodeExhausted is returned when no unique ticket code could be issued.
var ErrTicketCodeExhausted = errors.New("could not allocate a unique ticket code")

// ValidationError lists every problem found in a caller-supplied value.
type ValidationError struct {
	Problems []string
}

// NewValidationError returns a *ValidationError, or nil when problems is empty.
func NewValidationError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
