package booking

import (
	"strings"
	"testing"
)

// The booking row is inserted before the payment plan exists, so every field
// the coordinator sets afterwards has to be carried by the UPDATE statement
// or it silently stays at its inserted value.
func TestBookingUpdateSQLCoversMutableColumns(t *testing.T) {
	cols := []string{
		"status",
		"ambulance_id",
		"driver_id",
		"cancel_reason",
		"downpayment_amount",
		"confirmed_at",
		"dispatched_at",
		"arrived_at",
		"completed_at",
		"cancelled_at",
		"updated_at",
	}
	for _, col := range cols {
		if !strings.Contains(bookingUpdateSQL, col+"=") {
			t.Errorf("update statement does not set %s", col)
		}
	}
}
