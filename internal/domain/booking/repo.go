package booking

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Status   Status
	Type     Type
	Priority Priority
}

// Repository is the persistence contract for bookings and their audit log.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Booking, int, error)

	// UpdateWithTransition persists the booking and appends the transition
	// log row in one atomic commit.
	UpdateWithTransition(ctx context.Context, b *Booking, tr *Transition) error

	ListTransitions(ctx context.Context, bookingID uuid.UUID) ([]*Transition, error)
}
