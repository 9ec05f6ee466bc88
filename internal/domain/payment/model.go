package payment

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates the settlement states of a payment. A payment is
// finalized exactly once: pending is the only state that can change.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
	StatusFailed  Status = "failed"
)

// Type distinguishes a full obligation from the two phases of a scheduled
// booking's split obligation.
type Type string

const (
	TypeFull        Type = "full"
	TypeDownpayment Type = "downpayment"
	TypeFinal       Type = "final_payment"
)

// Payment maps to the payment table.
type Payment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	BookingID uuid.UUID  `db:"booking_id" json:"booking_id"`
	Amount    int64      `db:"amount" json:"amount"`
	Status    Status     `db:"status" json:"status"`
	Type      Type       `db:"payment_type" json:"payment_type"`
	DueAt     *time.Time `db:"due_at" json:"due_at,omitempty"`
	PaidAt    *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Event types published by the ledger.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentExpired   = "payment.expired"
)
