package payment

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// PlanPolicy holds the tunables that shape a booking's payment plan.
type PlanPolicy struct {
	// FullDue is how long a full payment stays payable after creation.
	FullDue time.Duration
	// DownpaymentHold is how long a downpayment stays payable after creation.
	DownpaymentHold time.Duration
	// FinalLead is how far before the scheduled pickup the final payment
	// falls due once the downpayment clears.
	FinalLead time.Duration
	// DownpaymentRate is the fraction of the total charged up front on
	// scheduled bookings, e.g. 0.30.
	DownpaymentRate float64
}

// PlanInput carries the booking facts the ledger needs to build a plan.
// The ledger never reads booking records directly.
type PlanInput struct {
	BookingID   uuid.UUID
	TotalAmount int64
	// Split requests a downpayment plus final payment instead of a single
	// full payment. Scheduled bookings set this.
	Split bool
	// ScheduledAt is the planned pickup time. Required when Split is set.
	ScheduledAt *time.Time
}

// BuildPlan computes the pending payments for a new booking. For a split
// plan the downpayment is floor(total * rate) and the final payment is the
// remainder, so the two always sum to the total. The final payment's due
// time is left unset; it is fixed when the downpayment is paid.
func BuildPlan(pol PlanPolicy, in PlanInput, now time.Time) ([]*Payment, error) {
	if in.TotalAmount <= 0 {
		return nil, ValidationError{Field: "total_amount", Msg: "must be positive"}
	}
	if in.Split && in.ScheduledAt == nil {
		return nil, ValidationError{Field: "scheduled_at", Msg: "required for a split plan"}
	}

	if !in.Split {
		due := now.Add(pol.FullDue)
		return []*Payment{{
			ID:        uuid.New(),
			BookingID: in.BookingID,
			Amount:    in.TotalAmount,
			Status:    StatusPending,
			Type:      TypeFull,
			DueAt:     &due,
			CreatedAt: now,
			UpdatedAt: now,
		}}, nil
	}

	down := int64(math.Floor(float64(in.TotalAmount) * pol.DownpaymentRate))
	if down < 1 {
		down = 1
	}
	final := in.TotalAmount - down
	if final < 0 {
		final = 0
	}
	downDue := now.Add(pol.DownpaymentHold)

	payments := []*Payment{{
		ID:        uuid.New(),
		BookingID: in.BookingID,
		Amount:    down,
		Status:    StatusPending,
		Type:      TypeDownpayment,
		DueAt:     &downDue,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	if final > 0 {
		payments = append(payments, &Payment{
			ID:        uuid.New(),
			BookingID: in.BookingID,
			Amount:    final,
			Status:    StatusPending,
			Type:      TypeFinal,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return payments, nil
}

// FinalDueAt computes the due time of the final payment once the
// downpayment has cleared. The result never lands after the pickup itself.
func FinalDueAt(pol PlanPolicy, scheduledAt, now time.Time) time.Time {
	due := scheduledAt.Add(-pol.FinalLead)
	if due.Before(now) {
		due = now
	}
	if due.After(scheduledAt) {
		due = scheduledAt
	}
	return due
}
