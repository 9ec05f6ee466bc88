package fleet

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError reports an unknown ambulance or driver id.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AlreadyAssignedError reports a reservation attempt against a resource that
// is not available. Status carries the state the resource was observed in.
type AlreadyAssignedError struct {
	Resource string
	ID       uuid.UUID
	Status   string
}

func (e AlreadyAssignedError) Error() string {
	return fmt.Sprintf("%s %s is not available (status %s)", e.Resource, e.ID, e.Status)
}

// ConflictError reports an administrative change that would break an active
// assignment.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string {
	return e.Msg
}

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}
