package booking

import "time"

// allowedTransitions is the directed edge set of the booking lifecycle.
// Cancellation is reachable up to dispatch; once the ambulance has arrived
// the only way forward is completion. Terminal states have no edges.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusArrived, StatusCancelled},
	StatusArrived:    {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// applyTransition mutates the booking to the target status and stamps the
// matching timestamp. Callers validate the edge first; an invalid edge
// leaves the booking untouched.
func applyTransition(b *Booking, to Status, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return InvalidTransitionError{From: b.Status, To: to}
	}
	b.Status = to
	b.UpdatedAt = now

	switch to {
	case StatusConfirmed:
		if b.ConfirmedAt == nil {
			t := now
			b.ConfirmedAt = &t
		}
	case StatusDispatched:
		if b.DispatchedAt == nil {
			t := now
			b.DispatchedAt = &t
		}
	case StatusArrived:
		if b.ArrivedAt == nil {
			t := now
			b.ArrivedAt = &t
		}
	case StatusCompleted:
		if b.CompletedAt == nil {
			t := now
			b.CompletedAt = &t
		}
	case StatusCancelled:
		if b.CancelledAt == nil {
			t := now
			b.CancelledAt = &t
		}
	}
	return nil
}
