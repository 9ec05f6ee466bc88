package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ambulink/ambulink/internal/domain/fleet"
	"github.com/ambulink/ambulink/internal/domain/payment"
	"github.com/ambulink/ambulink/internal/platform/clock"
	"github.com/ambulink/ambulink/internal/platform/eventbus"
	"github.com/ambulink/ambulink/internal/platform/locking"
)

// ResourceRegistry is the slice of the fleet registry the coordinator uses.
type ResourceRegistry interface {
	Reserve(ctx context.Context, ambulanceID, driverID, bookingID uuid.UUID) (*fleet.Reservation, error)
	Release(ctx context.Context, ambulanceID, driverID uuid.UUID) error
}

// PaymentLedger is the slice of the payment ledger the coordinator uses.
type PaymentLedger interface {
	CreatePlan(ctx context.Context, in payment.PlanInput) ([]*payment.Payment, error)
	ActivateFinalPayment(ctx context.Context, bookingID uuid.UUID, scheduledAt time.Time) error
	WriteOff(ctx context.Context, bookingID uuid.UUID) error
}

// Service is the dispatch coordinator. It owns every booking mutation:
// intake, assignment, lifecycle advancement, and cancellation, whether
// user-initiated or driven by payment events. Operations on the same
// booking are serialized by a per-booking lock; a manual cancel racing a
// payment timeout resolves to whichever acquires the lock first, and the
// loser is rejected by the transition guard.
type Service struct {
	repo     Repository
	registry ResourceRegistry
	ledger   PaymentLedger
	bus      *eventbus.Bus
	clk      clock.Clock
	log      zerolog.Logger

	locks *locking.Keyed
}

func NewService(repo Repository, registry ResourceRegistry, ledger PaymentLedger, bus *eventbus.Bus, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		ledger:   ledger,
		bus:      bus,
		clk:      clk,
		log:      log.With().Str("component", "dispatch").Logger(),
		locks:    locking.NewKeyed(),
	}
}

// RegisterEventHandlers wires payment outcomes into booking transitions.
// Returns a teardown function for shutdown.
func (s *Service) RegisterEventHandlers() func() {
	unsubCompleted := s.bus.Subscribe(payment.EventPaymentCompleted, func(evt eventbus.Event) {
		s.OnPaymentCompleted(context.Background(), evt)
	})
	unsubExpired := s.bus.Subscribe(payment.EventPaymentExpired, func(evt eventbus.Event) {
		s.OnPaymentExpired(context.Background(), evt)
	})
	return func() {
		unsubCompleted()
		unsubExpired()
	}
}

// CreateRequest is the intake payload.
type CreateRequest struct {
	Type     Type     `json:"booking_type"`
	Priority Priority `json:"priority"`

	PatientName    string `json:"patient_name"`
	PatientAge     int    `json:"patient_age"`
	ConditionNotes string `json:"condition_notes"`
	ContactName    string `json:"contact_name"`
	ContactPhone   string `json:"contact_phone"`

	PickupAddress string   `json:"pickup_address"`
	PickupLat     *float64 `json:"pickup_lat"`
	PickupLng     *float64 `json:"pickup_lng"`
	DestAddress   string   `json:"dest_address"`
	DestLat       *float64 `json:"dest_lat"`
	DestLng       *float64 `json:"dest_lng"`

	ScheduledAt *time.Time `json:"scheduled_at"`
	TotalAmount int64      `json:"total_amount"`
}

func (s *Service) validateCreate(req *CreateRequest) error {
	if !req.Type.Valid() {
		return ValidationError{Field: "booking_type", Msg: "unknown booking type"}
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return ValidationError{Field: "priority", Msg: "unknown priority"}
	}
	if req.PatientName == "" {
		return ValidationError{Field: "patient_name", Msg: "is required"}
	}
	if req.ContactPhone == "" {
		return ValidationError{Field: "contact_phone", Msg: "is required"}
	}
	if req.PickupAddress == "" {
		return ValidationError{Field: "pickup_address", Msg: "is required"}
	}
	if req.DestAddress == "" {
		return ValidationError{Field: "dest_address", Msg: "is required"}
	}
	if req.TotalAmount <= 0 {
		return ValidationError{Field: "total_amount", Msg: "must be positive"}
	}
	if req.Type == TypeScheduled {
		if req.ScheduledAt == nil {
			return ValidationError{Field: "scheduled_at", Msg: "required for scheduled bookings"}
		}
		if !req.ScheduledAt.After(s.clk.Now()) {
			return ValidationError{Field: "scheduled_at", Msg: "must be in the future"}
		}
	}
	return nil
}

// CreateBooking validates the intake request, persists the booking in
// pending status, and asks the ledger for its payment plan. The ledger arms
// the payment deadline timers as part of plan creation.
func (s *Service) CreateBooking(ctx context.Context, req *CreateRequest) (*Booking, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}
	now := s.clk.Now()
	b := &Booking{
		ID:             uuid.New(),
		Type:           req.Type,
		Priority:       req.Priority,
		Status:         StatusPending,
		PatientName:    req.PatientName,
		PatientAge:     req.PatientAge,
		ConditionNotes: req.ConditionNotes,
		ContactName:    req.ContactName,
		ContactPhone:   req.ContactPhone,
		PickupAddress:  req.PickupAddress,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DestAddress:    req.DestAddress,
		DestLat:        req.DestLat,
		DestLng:        req.DestLng,
		RequestedAt:    now,
		ScheduledAt:    req.ScheduledAt,
		TotalAmount:    req.TotalAmount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	plan, err := s.ledger.CreatePlan(ctx, payment.PlanInput{
		BookingID:   b.ID,
		TotalAmount: b.TotalAmount,
		Split:       b.Type == TypeScheduled,
		ScheduledAt: b.ScheduledAt,
	})
	if err != nil {
		return nil, err
	}
	for _, p := range plan {
		if p.Type == payment.TypeDownpayment {
			amount := p.Amount
			b.DownpaymentAmount = &amount
		}
	}
	if b.DownpaymentAmount != nil {
		if err := s.repo.Update(ctx, b); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("booking_id", b.ID.String()).
		Str("booking_type", string(b.Type)).
		Str("priority", string(b.Priority)).
		Int64("total_amount", b.TotalAmount).
		Msg("booking created")

	s.bus.Publish(eventbus.Event{
		Type:      EventBookingCreated,
		BookingID: b.ID,
		To:        string(StatusPending),
		At:        now,
	})
	return b, nil
}

// transition applies the edge, persists booking and audit row atomically,
// and publishes the matching event. Caller holds the booking lock.
func (s *Service) transition(ctx context.Context, b *Booking, to Status, actor string, reason *string) error {
	from := b.Status
	now := s.clk.Now()
	if err := applyTransition(b, to, now); err != nil {
		return err
	}
	tr := &Transition{
		BookingID: b.ID,
		From:      from,
		To:        to,
		Actor:     actor,
		Reason:    reason,
		At:        now,
	}
	if err := s.repo.UpdateWithTransition(ctx, b, tr); err != nil {
		return err
	}

	s.log.Info().
		Str("booking_id", b.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor).
		Msg("booking transition")

	evt := eventbus.Event{
		Type:      eventForStatus(to),
		BookingID: b.ID,
		From:      string(from),
		To:        string(to),
		Actor:     actor,
		At:        now,
	}
	if reason != nil {
		evt.Reason = *reason
	}
	s.bus.Publish(evt)
	return nil
}

// ManualConfirm moves a pending booking to confirmed without a payment,
// e.g. an operator override for emergency intake.
func (s *Service) ManualConfirm(ctx context.Context, id uuid.UUID, actor string) (*Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, b, StatusConfirmed, actor, nil); err != nil {
		return nil, err
	}
	return b, nil
}

// AssignResources reserves the ambulance/driver pair and dispatches the
// booking. Only valid from confirmed. A reservation failure is returned
// as-is and the booking is untouched; a persistence failure after the
// reservation rolls the reservation back.
func (s *Service) AssignResources(ctx context.Context, id, ambulanceID, driverID uuid.UUID, actor string) (*Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed {
		return nil, InvalidTransitionError{From: b.Status, To: StatusDispatched}
	}

	if _, err := s.registry.Reserve(ctx, ambulanceID, driverID, id); err != nil {
		return nil, err
	}

	b.AmbulanceID = &ambulanceID
	b.DriverID = &driverID
	if err := s.transition(ctx, b, StatusDispatched, actor, nil); err != nil {
		_ = s.registry.Release(ctx, ambulanceID, driverID)
		b.AmbulanceID = nil
		b.DriverID = nil
		return nil, err
	}
	return b, nil
}

// Reassign swaps the booking onto a new ambulance/driver pair. The old
// reservation is released first; if the new one fails the booking keeps its
// prior status with no resources attached and the caller gets
// AssignmentFailedError.
func (s *Service) Reassign(ctx context.Context, id, ambulanceID, driverID uuid.UUID, actor string) (*Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed && b.Status != StatusDispatched {
		return nil, InvalidTransitionError{From: b.Status, To: StatusDispatched}
	}

	if b.AmbulanceID != nil && b.DriverID != nil {
		if err := s.registry.Release(ctx, *b.AmbulanceID, *b.DriverID); err != nil {
			return nil, err
		}
		b.AmbulanceID = nil
		b.DriverID = nil
	}

	if _, err := s.registry.Reserve(ctx, ambulanceID, driverID, id); err != nil {
		if uerr := s.repo.Update(ctx, b); uerr != nil {
			s.log.Error().Err(uerr).Str("booking_id", id.String()).Msg("persist after failed reassignment")
		}
		return nil, AssignmentFailedError{BookingID: id, Cause: err}
	}

	b.AmbulanceID = &ambulanceID
	b.DriverID = &driverID
	if b.Status == StatusConfirmed {
		if err := s.transition(ctx, b, StatusDispatched, actor, nil); err != nil {
			_ = s.registry.Release(ctx, ambulanceID, driverID)
			b.AmbulanceID = nil
			b.DriverID = nil
			return nil, err
		}
		return b, nil
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	s.bus.Publish(eventbus.Event{
		Type:      EventBookingDispatched,
		BookingID: b.ID,
		From:      string(StatusDispatched),
		To:        string(StatusDispatched),
		Actor:     actor,
		At:        s.clk.Now(),
	})
	return b, nil
}

// AdvanceStatus moves the booking along the service path: confirmed,
// arrived, in_progress, completed. Dispatch and cancellation have their own
// entry points. Completion releases the assigned resources.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, target Status, actor string) (*Booking, error) {
	switch target {
	case StatusConfirmed, StatusArrived, StatusInProgress, StatusCompleted:
	case StatusDispatched:
		return nil, ValidationError{Field: "status", Msg: "use resource assignment to dispatch"}
	case StatusCancelled:
		return nil, ValidationError{Field: "status", Msg: "use cancellation with a reason"}
	default:
		return nil, ValidationError{Field: "status", Msg: "unknown status"}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, b, target, actor, nil); err != nil {
		return nil, err
	}
	if target == StatusCompleted {
		s.releaseResources(ctx, b)
	}
	return b, nil
}

// CancelBooking cancels on behalf of a user or operator. The reason is
// mandatory; allowed-from states are enforced by the transition guard.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason, actor string) (*Booking, error) {
	if reason == "" {
		return nil, ValidationError{Field: "reason", Msg: "is required"}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cancelLocked(ctx, b, reason, actor); err != nil {
		return nil, err
	}
	return b, nil
}

// cancelLocked performs the shared cancellation path. Caller holds the
// booking lock and has validated the reason.
func (s *Service) cancelLocked(ctx context.Context, b *Booking, reason, actor string) error {
	b.CancelReason = &reason
	if err := s.transition(ctx, b, StatusCancelled, actor, &reason); err != nil {
		b.CancelReason = nil
		return err
	}
	s.releaseResources(ctx, b)
	if err := s.ledger.WriteOff(ctx, b.ID); err != nil {
		s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("write off payments")
	}
	return nil
}

func (s *Service) releaseResources(ctx context.Context, b *Booking) {
	if b.AmbulanceID == nil || b.DriverID == nil {
		return
	}
	if err := s.registry.Release(ctx, *b.AmbulanceID, *b.DriverID); err != nil {
		s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("release resources")
	}
}

// OnPaymentCompleted confirms a pending booking when its full payment or
// downpayment clears. A cleared downpayment also fixes the final payment's
// deadline. Payments landing after the booking left pending change nothing.
func (s *Service) OnPaymentCompleted(ctx context.Context, evt eventbus.Event) {
	unlock := s.locks.Lock(evt.BookingID)
	defer unlock()

	b, err := s.repo.GetByID(ctx, evt.BookingID)
	if err != nil {
		s.log.Error().Err(err).Str("booking_id", evt.BookingID.String()).Msg("payment completed for unknown booking")
		return
	}

	if b.Status == StatusPending {
		if err := s.transition(ctx, b, StatusConfirmed, "payment", nil); err != nil {
			s.log.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("confirm on payment")
			return
		}
	}

	if evt.Reason == string(payment.TypeDownpayment) && b.ScheduledAt != nil {
		if err := s.ledger.ActivateFinalPayment(ctx, b.ID, *b.ScheduledAt); err != nil {
			s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("activate final payment")
		}
	}
}

// ReasonPaymentTimeout is the cancel reason recorded when a payment
// deadline lapses.
const ReasonPaymentTimeout = "payment_timeout"

// OnPaymentExpired auto-cancels a booking whose payment lapsed, unless
// service has already begun. Once dispatched, expiry never cancels.
func (s *Service) OnPaymentExpired(ctx context.Context, evt eventbus.Event) {
	unlock := s.locks.Lock(evt.BookingID)
	defer unlock()

	b, err := s.repo.GetByID(ctx, evt.BookingID)
	if err != nil {
		s.log.Error().Err(err).Str("booking_id", evt.BookingID.String()).Msg("payment expired for unknown booking")
		return
	}
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		s.log.Info().
			Str("booking_id", b.ID.String()).
			Str("status", string(b.Status)).
			Msg("payment expiry ignored, service already underway")
		return
	}
	if err := s.cancelLocked(ctx, b, ReasonPaymentTimeout, "system"); err != nil {
		s.log.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("auto-cancel on expiry")
	}
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, f ListFilter, limit, offset int) ([]*Booking, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ValidationError{Field: "status", Msg: "unknown status"}
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, ValidationError{Field: "booking_type", Msg: "unknown booking type"}
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, 0, ValidationError{Field: "priority", Msg: "unknown priority"}
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Timeline returns the booking's transition log in order.
func (s *Service) Timeline(ctx context.Context, id uuid.UUID) ([]*Transition, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTransitions(ctx, id)
}
