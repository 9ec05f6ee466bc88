package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ambulink/ambulink/internal/platform/clock"
	"github.com/ambulink/ambulink/internal/platform/eventbus"
)

// Ledger owns the payment records of every booking: it builds plans,
// records settlements, and expires obligations whose due time passed.
// All deadline work runs through the scheduler so it can be cancelled
// when a payment settles first.
type Ledger struct {
	repo  Repository
	bus   *eventbus.Bus
	sched *clock.Scheduler
	clk   clock.Clock
	pol   PlanPolicy
	log   zerolog.Logger
}

func NewLedger(repo Repository, bus *eventbus.Bus, sched *clock.Scheduler, clk clock.Clock, pol PlanPolicy, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:  repo,
		bus:   bus,
		sched: sched,
		clk:   clk,
		pol:   pol,
		log:   log.With().Str("component", "payment_ledger").Logger(),
	}
}

// CreatePlan persists the payment plan for a new booking and arms expiry
// timers for every payment that already carries a due time.
func (l *Ledger) CreatePlan(ctx context.Context, in PlanInput) ([]*Payment, error) {
	plan, err := BuildPlan(l.pol, in, l.clk.Now())
	if err != nil {
		return nil, err
	}
	for _, p := range plan {
		if err := l.repo.Create(ctx, p); err != nil {
			return nil, err
		}
		l.armExpiry(p)
	}
	return plan, nil
}

// RecordPayment marks a pending payment paid. A payment settles exactly
// once: concurrent attempts lose the conditional update and get an
// AlreadySettledError carrying the winning state.
func (l *Ledger) RecordPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	paidAt := l.clk.Now()
	ok, err := l.repo.Settle(ctx, id, StatusPaid, &paidAt)
	if err != nil {
		return nil, err
	}
	p, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, AlreadySettledError{ID: id, Status: p.Status}
	}
	l.sched.Cancel(id)

	l.log.Info().
		Str("payment_id", id.String()).
		Str("booking_id", p.BookingID.String()).
		Str("payment_type", string(p.Type)).
		Int64("amount", p.Amount).
		Msg("payment recorded")

	l.bus.Publish(eventbus.Event{
		Type:      EventPaymentCompleted,
		BookingID: p.BookingID,
		PaymentID: p.ID,
		From:      string(StatusPending),
		To:        string(StatusPaid),
		Reason:    string(p.Type),
		At:        paidAt,
	})
	return p, nil
}

// Expire marks a pending payment expired. Settled payments are left alone,
// which makes the timer callback safe against a racing RecordPayment.
func (l *Ledger) Expire(ctx context.Context, id uuid.UUID) error {
	ok, err := l.repo.Settle(ctx, id, StatusExpired, nil)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	p, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	l.log.Info().
		Str("payment_id", id.String()).
		Str("booking_id", p.BookingID.String()).
		Str("payment_type", string(p.Type)).
		Msg("payment expired")

	l.bus.Publish(eventbus.Event{
		Type:      EventPaymentExpired,
		BookingID: p.BookingID,
		PaymentID: p.ID,
		From:      string(StatusPending),
		To:        string(StatusExpired),
		Reason:    string(p.Type),
		At:        l.clk.Now(),
	})
	return nil
}

// ActivateFinalPayment fixes the due time of a booking's final payment once
// the downpayment has cleared, then arms its expiry timer. A no-op when the
// booking has no pending final payment.
func (l *Ledger) ActivateFinalPayment(ctx context.Context, bookingID uuid.UUID, scheduledAt time.Time) error {
	payments, err := l.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.Type != TypeFinal || p.Status != StatusPending {
			continue
		}
		due := FinalDueAt(l.pol, scheduledAt, l.clk.Now())
		if err := l.repo.SetDueAt(ctx, p.ID, due); err != nil {
			return err
		}
		p.DueAt = &due
		l.armExpiry(p)
		l.log.Info().
			Str("payment_id", p.ID.String()).
			Str("booking_id", bookingID.String()).
			Time("due_at", due).
			Msg("final payment activated")
	}
	return nil
}

// WriteOff voids every pending payment of a booking, typically on
// cancellation. Voided payments settle as failed and stop their timers.
func (l *Ledger) WriteOff(ctx context.Context, bookingID uuid.UUID) error {
	payments, err := l.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.Status != StatusPending {
			continue
		}
		if _, err := l.repo.Settle(ctx, p.ID, StatusFailed, nil); err != nil {
			return err
		}
		l.sched.Cancel(p.ID)
	}
	return nil
}

func (l *Ledger) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return l.repo.GetByID(ctx, id)
}

func (l *Ledger) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*Payment, error) {
	return l.repo.ListByBooking(ctx, bookingID)
}

func (l *Ledger) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Payment, int, error) {
	if !validStatus(status) {
		return nil, 0, ValidationError{Field: "status", Msg: "unknown payment status"}
	}
	return l.repo.List(ctx, status, limit, offset)
}

// RearmPending re-arms expiry timers for every pending payment with a due
// time. Called once at startup so deadlines survive a restart.
func (l *Ledger) RearmPending(ctx context.Context) error {
	payments, _, err := l.repo.List(ctx, StatusPending, 10000, 0)
	if err != nil {
		return err
	}
	for _, p := range payments {
		l.armExpiry(p)
	}
	return nil
}

func (l *Ledger) armExpiry(p *Payment) {
	if p.DueAt == nil {
		return
	}
	id := p.ID
	l.sched.Schedule(id, *p.DueAt, func() {
		if err := l.Expire(context.Background(), id); err != nil {
			l.log.Error().Err(err).Str("payment_id", id.String()).Msg("expiry failed")
		}
	})
}

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusPaid, StatusExpired, StatusFailed:
		return true
	}
	return false
}
