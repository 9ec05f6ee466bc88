package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testPolicy() PlanPolicy {
	return PlanPolicy{
		FullDue:         24 * time.Hour,
		DownpaymentHold: 12 * time.Hour,
		FinalLead:       6 * time.Hour,
		DownpaymentRate: 0.30,
	}
}

func TestBuildPlanFull(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	plan, err := BuildPlan(testPolicy(), PlanInput{BookingID: uuid.New(), TotalAmount: 100000}, now)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(plan))
	}
	p := plan[0]
	if p.Type != TypeFull || p.Amount != 100000 || p.Status != StatusPending {
		t.Errorf("unexpected payment: %+v", p)
	}
	if p.DueAt == nil || !p.DueAt.Equal(now.Add(24*time.Hour)) {
		t.Errorf("due_at = %v, want %v", p.DueAt, now.Add(24*time.Hour))
	}
}

func TestBuildPlanSplit(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sched := now.Add(48 * time.Hour)
	plan, err := BuildPlan(testPolicy(), PlanInput{
		BookingID:   uuid.New(),
		TotalAmount: 200000,
		Split:       true,
		ScheduledAt: &sched,
	}, now)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(plan))
	}
	down, final := plan[0], plan[1]
	if down.Type != TypeDownpayment || down.Amount != 60000 {
		t.Errorf("downpayment = %+v", down)
	}
	if down.DueAt == nil || !down.DueAt.Equal(now.Add(12*time.Hour)) {
		t.Errorf("downpayment due_at = %v", down.DueAt)
	}
	if final.Type != TypeFinal || final.Amount != 140000 {
		t.Errorf("final = %+v", final)
	}
	if final.DueAt != nil {
		t.Errorf("final due_at should be unset until downpayment clears, got %v", final.DueAt)
	}
}

func TestBuildPlanSplitAlwaysSumsToTotal(t *testing.T) {
	now := time.Now()
	sched := now.Add(time.Hour)
	for _, total := range []int64{1, 2, 3, 7, 10, 99, 12345, 99999, 200000, 1000001} {
		plan, err := BuildPlan(testPolicy(), PlanInput{
			BookingID:   uuid.New(),
			TotalAmount: total,
			Split:       true,
			ScheduledAt: &sched,
		}, now)
		if err != nil {
			t.Fatalf("total %d: %v", total, err)
		}
		var sum int64
		for _, p := range plan {
			if p.Amount <= 0 {
				t.Errorf("total %d: non-positive amount %d", total, p.Amount)
			}
			sum += p.Amount
		}
		if sum != total {
			t.Errorf("total %d: plan sums to %d", total, sum)
		}
	}
}

func TestBuildPlanRejectsBadInput(t *testing.T) {
	now := time.Now()
	if _, err := BuildPlan(testPolicy(), PlanInput{BookingID: uuid.New(), TotalAmount: 0}, now); err == nil {
		t.Error("expected error for zero total")
	}
	if _, err := BuildPlan(testPolicy(), PlanInput{BookingID: uuid.New(), TotalAmount: 100, Split: true}, now); err == nil {
		t.Error("expected error for split plan without scheduled_at")
	}
}

func TestFinalDueAtClamps(t *testing.T) {
	pol := testPolicy()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// Normal case: lead time before pickup.
	sched := now.Add(48 * time.Hour)
	if due := FinalDueAt(pol, sched, now); !due.Equal(sched.Add(-6 * time.Hour)) {
		t.Errorf("due = %v, want %v", due, sched.Add(-6*time.Hour))
	}

	// Pickup closer than the lead: due falls back to now.
	sched = now.Add(2 * time.Hour)
	if due := FinalDueAt(pol, sched, now); !due.Equal(now) {
		t.Errorf("due = %v, want %v", due, now)
	}
}
