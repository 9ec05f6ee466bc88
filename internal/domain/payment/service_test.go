package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ambulink/ambulink/internal/platform/clock"
	"github.com/ambulink/ambulink/internal/platform/eventbus"
)

type mockRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*Payment
}

func newMockRepo() *mockRepo {
	return &mockRepo{payments: make(map[uuid.UUID]*Payment)}
}

func (m *mockRepo) Create(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Payment
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context, status Status, limit, offset int) ([]*Payment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Payment
	for _, p := range m.payments {
		if p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Settle(_ context.Context, id uuid.UUID, status Status, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = status
	p.PaidAt = paidAt
	return true, nil
}

func (m *mockRepo) SetDueAt(_ context.Context, id uuid.UUID, dueAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok && p.Status == StatusPending {
		d := dueAt
		p.DueAt = &d
	}
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *eventRecorder) record(evt eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) byType(t string) []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventbus.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestLedger(t *testing.T) (*Ledger, *mockRepo, *clock.Fake, *eventRecorder) {
	t.Helper()
	repo := newMockRepo()
	bus := eventbus.New()
	fake := clock.NewFake(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	sched := clock.NewScheduler(fake)
	rec := &eventRecorder{}
	bus.Subscribe(eventbus.Wildcard, rec.record)
	t.Cleanup(func() {
		sched.Shutdown()
		bus.Close()
	})
	ledger := NewLedger(repo, bus, sched, fake, testPolicy(), zerolog.Nop())
	return ledger, repo, fake, rec
}

func TestRecordPaymentPublishesCompleted(t *testing.T) {
	ledger, _, _, rec := newTestLedger(t)
	ctx := context.Background()

	plan, err := ledger.CreatePlan(ctx, PlanInput{BookingID: uuid.New(), TotalAmount: 100000})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	p, err := ledger.RecordPayment(ctx, plan[0].ID)
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if p.Status != StatusPaid || p.PaidAt == nil {
		t.Errorf("payment not paid: %+v", p)
	}
	evts := rec.byType(EventPaymentCompleted)
	if len(evts) != 1 {
		t.Fatalf("expected 1 completed event, got %d", len(evts))
	}
	if evts[0].Reason != string(TypeFull) {
		t.Errorf("event reason = %q, want payment type", evts[0].Reason)
	}
}

func TestRecordPaymentSettlesOnce(t *testing.T) {
	ledger, _, _, rec := newTestLedger(t)
	ctx := context.Background()

	plan, err := ledger.CreatePlan(ctx, PlanInput{BookingID: uuid.New(), TotalAmount: 50000})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	id := plan[0].ID

	const n = 16
	var wg sync.WaitGroup
	var okCount int32
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.RecordPayment(ctx, id)
			if err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
				return
			}
			var settled AlreadySettledError
			if !errors.As(err, &settled) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if okCount != 1 {
		t.Errorf("expected exactly 1 successful settle, got %d", okCount)
	}
	if got := len(rec.byType(EventPaymentCompleted)); got != 1 {
		t.Errorf("expected 1 completed event, got %d", got)
	}
}

func TestExpiryFiresAfterDeadline(t *testing.T) {
	ledger, repo, fake, rec := newTestLedger(t)
	ctx := context.Background()

	plan, err := ledger.CreatePlan(ctx, PlanInput{BookingID: uuid.New(), TotalAmount: 100000})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	fake.Advance(23 * time.Hour)
	if got := len(rec.byType(EventPaymentExpired)); got != 0 {
		t.Fatalf("expired too early: %d events", got)
	}
	fake.Advance(2 * time.Hour)

	p, err := repo.GetByID(ctx, plan[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if p.Status != StatusExpired {
		t.Errorf("status = %s, want expired", p.Status)
	}
	if got := len(rec.byType(EventPaymentExpired)); got != 1 {
		t.Errorf("expected 1 expired event, got %d", got)
	}
}

func TestPaymentBeforeDeadlineCancelsExpiry(t *testing.T) {
	ledger, repo, fake, rec := newTestLedger(t)
	ctx := context.Background()

	plan, err := ledger.CreatePlan(ctx, PlanInput{BookingID: uuid.New(), TotalAmount: 100000})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := ledger.RecordPayment(ctx, plan[0].ID); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	fake.Advance(48 * time.Hour)

	p, _ := repo.GetByID(ctx, plan[0].ID)
	if p.Status != StatusPaid {
		t.Errorf("status = %s, want paid", p.Status)
	}
	if got := len(rec.byType(EventPaymentExpired)); got != 0 {
		t.Errorf("expected no expired events, got %d", got)
	}
}

func TestActivateFinalPayment(t *testing.T) {
	ledger, repo, fake, rec := newTestLedger(t)
	ctx := context.Background()
	bookingID := uuid.New()
	sched := fake.Now().Add(48 * time.Hour)

	plan, err := ledger.CreatePlan(ctx, PlanInput{
		BookingID:   bookingID,
		TotalAmount: 200000,
		Split:       true,
		ScheduledAt: &sched,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := ledger.RecordPayment(ctx, plan[0].ID); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if err := ledger.ActivateFinalPayment(ctx, bookingID, sched); err != nil {
		t.Fatalf("ActivateFinalPayment: %v", err)
	}

	final, _ := repo.GetByID(ctx, plan[1].ID)
	wantDue := sched.Add(-6 * time.Hour)
	if final.DueAt == nil || !final.DueAt.Equal(wantDue) {
		t.Fatalf("final due_at = %v, want %v", final.DueAt, wantDue)
	}

	// Let the final payment lapse.
	fake.Advance(48 * time.Hour)
	final, _ = repo.GetByID(ctx, plan[1].ID)
	if final.Status != StatusExpired {
		t.Errorf("final status = %s, want expired", final.Status)
	}
	expired := rec.byType(EventPaymentExpired)
	if len(expired) != 1 || expired[0].Reason != string(TypeFinal) {
		t.Errorf("unexpected expired events: %+v", expired)
	}
}

func TestWriteOffVoidsPendingPayments(t *testing.T) {
	ledger, repo, fake, rec := newTestLedger(t)
	ctx := context.Background()
	bookingID := uuid.New()
	sched := fake.Now().Add(48 * time.Hour)

	plan, err := ledger.CreatePlan(ctx, PlanInput{
		BookingID:   bookingID,
		TotalAmount: 200000,
		Split:       true,
		ScheduledAt: &sched,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := ledger.WriteOff(ctx, bookingID); err != nil {
		t.Fatalf("WriteOff: %v", err)
	}
	for _, planned := range plan {
		p, _ := repo.GetByID(ctx, planned.ID)
		if p.Status != StatusFailed {
			t.Errorf("payment %s status = %s, want failed", p.Type, p.Status)
		}
	}

	// Timers were cancelled, so nothing expires later.
	fake.Advance(72 * time.Hour)
	if got := len(rec.byType(EventPaymentExpired)); got != 0 {
		t.Errorf("expected no expired events after write-off, got %d", got)
	}
}
