package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ambulink/ambulink/internal/domain/booking"
	"github.com/ambulink/ambulink/internal/platform/eventbus"
)

func TestRenderReplacesPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render("booking-cancelled", map[string]string{
		"contact_name": "M. Santos",
		"patient_name": "A. Santos",
		"reason":       "payment_timeout",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject == "" {
		t.Error("empty subject")
	}
	if !strings.Contains(body, "M. Santos") || !strings.Contains(body, "payment_timeout") {
		t.Errorf("body missing data: %q", body)
	}
	if strings.Contains(body, "{{") {
		t.Errorf("unreplaced placeholder in body: %q", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestSendFromTemplateRecordsOutcome(t *testing.T) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	m := NewManager(email, sms, NewTemplateEngine())

	n, err := m.SendFromTemplate(context.Background(), "booking-confirmed",
		map[string]string{"contact_name": "M. Santos", "patient_name": "A. Santos"}, "msantos@example.com")
	if err != nil {
		t.Fatalf("SendFromTemplate: %v", err)
	}
	if n.Status != "sent" || n.SentAt == nil {
		t.Errorf("notification not marked sent: %+v", n)
	}
	if calls := email.Calls(); len(calls) != 1 || calls[0].To != "msantos@example.com" {
		t.Errorf("email calls = %+v", calls)
	}
}

func TestRetryAfterFailure(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "smtp unavailable"}
	m := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	n, err := m.SendFromTemplate(context.Background(), "booking-confirmed",
		map[string]string{"contact_name": "X"}, "x@example.com")
	if err == nil {
		t.Fatal("expected delivery failure")
	}
	if n.Status != "failed" {
		t.Fatalf("status = %s, want failed", n.Status)
	}

	email.ShouldFail = false
	if err := m.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	got, _ := m.Get(context.Background(), n.ID)
	if got.Status != "sent" || got.Error != "" {
		t.Errorf("after retry: %+v", got)
	}

	// A sent notification cannot be retried again.
	if err := m.Retry(context.Background(), n.ID); err == nil {
		t.Error("expected error retrying a sent notification")
	}
}

type stubBookingSource struct {
	b *booking.Booking
}

func (s *stubBookingSource) GetBooking(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	if s.b == nil || s.b.ID != id {
		return nil, booking.NotFoundError{ID: id}
	}
	return s.b, nil
}

func TestSubscriberSendsOnBookingEvent(t *testing.T) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	m := NewManager(email, sms, NewTemplateEngine())

	b := &booking.Booking{
		ID:            uuid.New(),
		PatientName:   "A. Santos",
		ContactName:   "M. Santos",
		ContactPhone:  "+63-912-555-0147",
		PickupAddress: "14 Mabini St",
	}
	bus := eventbus.New()
	sub := NewSubscriber(m, &stubBookingSource{b: b}, zerolog.Nop())
	sub.Start(bus)
	defer bus.Close()

	bus.Publish(eventbus.Event{
		Type:      booking.EventBookingDispatched,
		BookingID: b.ID,
		From:      "confirmed",
		To:        "dispatched",
		At:        time.Now(),
	})
	sub.Stop()

	calls := sms.Calls()
	if len(calls) != 1 {
		t.Fatalf("sms calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Body, "14 Mabini St") {
		t.Errorf("sms body missing pickup address: %q", calls[0].Body)
	}
}
