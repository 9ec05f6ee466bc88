package payment

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError indicates a payment lookup miss.
type NotFoundError struct {
	ID uuid.UUID
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("payment %s not found", e.ID)
}

// AlreadySettledError indicates an attempt to finalize a payment that is
// no longer pending.
type AlreadySettledError struct {
	ID     uuid.UUID
	Status Status
}

func (e AlreadySettledError) Error() string {
	return fmt.Sprintf("payment %s already settled as %s", e.ID, e.Status)
}

// ValidationError indicates a rejected ledger input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}
