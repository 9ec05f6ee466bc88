package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the payment ledger.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*Payment, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Payment, int, error)

	// Settle finalizes a pending payment. It reports false when the payment
	// was not pending, which makes concurrent settle attempts race-safe.
	Settle(ctx context.Context, id uuid.UUID, status Status, paidAt *time.Time) (bool, error)

	// SetDueAt fixes the due time of a pending payment.
	SetDueAt(ctx context.Context, id uuid.UUID, dueAt time.Time) error
}
