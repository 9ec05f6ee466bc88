package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ambulink/ambulink/internal/domain/booking"
	"github.com/ambulink/ambulink/internal/domain/payment"
	"github.com/ambulink/ambulink/internal/platform/eventbus"
)

// BookingSource resolves booking contact details for outbound messages.
type BookingSource interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
}

// Subscriber bridges domain events to templated notifications. Event
// handlers only enqueue; a worker goroutine does the rendering and delivery
// so publishers never block on a slow sender.
type Subscriber struct {
	manager  *Manager
	bookings BookingSource
	log      zerolog.Logger

	queue chan eventbus.Event
	stop  chan struct{}
	wg    sync.WaitGroup
	unsub []func()
}

func NewSubscriber(manager *Manager, bookings BookingSource, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		manager:  manager,
		bookings: bookings,
		log:      log.With().Str("component", "notifier").Logger(),
		queue:    make(chan eventbus.Event, 256),
		stop:     make(chan struct{}),
	}
}

// Start registers the event subscriptions and launches the delivery worker.
func (s *Subscriber) Start(bus *eventbus.Bus) {
	for _, evtType := range []string{
		booking.EventBookingConfirmed,
		booking.EventBookingDispatched,
		booking.EventBookingCompleted,
		booking.EventBookingCancelled,
		payment.EventPaymentCompleted,
	} {
		s.unsub = append(s.unsub, bus.Subscribe(evtType, s.enqueue))
	}

	s.wg.Add(1)
	go s.worker()
}

// Stop unsubscribes and drains the worker.
func (s *Subscriber) Stop() {
	for _, u := range s.unsub {
		u()
	}
	close(s.stop)
	s.wg.Wait()
}

func (s *Subscriber) enqueue(evt eventbus.Event) {
	select {
	case s.queue <- evt:
	default:
		s.log.Warn().Str("event", evt.Type).Msg("notification queue full, dropping")
	}
}

func (s *Subscriber) worker() {
	defer s.wg.Done()
	for {
		select {
		case evt := <-s.queue:
			s.handle(evt)
		case <-s.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case evt := <-s.queue:
					s.handle(evt)
				default:
					return
				}
			}
		}
	}
}

func (s *Subscriber) handle(evt eventbus.Event) {
	ctx := context.Background()
	b, err := s.bookings.GetBooking(ctx, evt.BookingID)
	if err != nil {
		s.log.Error().Err(err).Str("booking_id", evt.BookingID.String()).Msg("lookup booking for notification")
		return
	}

	data := map[string]string{
		"contact_name":   b.ContactName,
		"patient_name":   b.PatientName,
		"pickup_address": b.PickupAddress,
		"booking_id":     b.ID.String(),
		"reason":         evt.Reason,
	}

	var templateID string
	switch evt.Type {
	case booking.EventBookingConfirmed:
		templateID = "booking-confirmed"
	case booking.EventBookingDispatched:
		templateID = "ambulance-dispatched"
	case booking.EventBookingCompleted:
		templateID = "booking-completed"
	case booking.EventBookingCancelled:
		templateID = "booking-cancelled"
	case payment.EventPaymentCompleted:
		templateID = "payment-received"
		data["payment_type"] = evt.Reason
		data["amount"] = fmt.Sprintf("%d", b.TotalAmount)
	default:
		return
	}

	if _, err := s.manager.SendFromTemplate(ctx, templateID, data, b.ContactPhone); err != nil {
		s.log.Warn().Err(err).
			Str("template", templateID).
			Str("booking_id", b.ID.String()).
			Msg("notification delivery failed")
	}
}
