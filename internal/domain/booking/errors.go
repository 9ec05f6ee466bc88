package booking

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidTransitionError reports a state-machine guard failure. The booking
// is left exactly as it was.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// NotFoundError indicates a booking lookup miss.
type NotFoundError struct {
	ID uuid.UUID
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("booking %s not found", e.ID)
}

// ValidationError indicates a rejected intake or command field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// AssignmentFailedError wraps a reservation failure during assignment or
// re-assignment. The booking keeps its prior status.
type AssignmentFailedError struct {
	BookingID uuid.UUID
	Cause     error
}

func (e AssignmentFailedError) Error() string {
	return fmt.Sprintf("assignment failed for booking %s: %v", e.BookingID, e.Cause)
}

func (e AssignmentFailedError) Unwrap() error { return e.Cause }
