package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the canonical lifecycle state of a booking. It is a closed
// enum; persistence and transport never carry values outside this set.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusDispatched Status = "dispatched"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDispatched, StatusArrived,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Type classifies how a booking was requested.
type Type string

const (
	TypeStandard  Type = "standard"
	TypeScheduled Type = "scheduled"
	TypeEmergency Type = "emergency"
)

func (t Type) Valid() bool {
	switch t {
	case TypeStandard, TypeScheduled, TypeEmergency:
		return true
	}
	return false
}

// Priority is set at intake and drives dispatch ordering on the board.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// Booking maps to the booking table.
type Booking struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Type     Type      `db:"booking_type" json:"booking_type"`
	Priority Priority  `db:"priority" json:"priority"`
	Status   Status    `db:"status" json:"status"`

	PatientName    string `db:"patient_name" json:"patient_name"`
	PatientAge     int    `db:"patient_age" json:"patient_age"`
	ConditionNotes string `db:"condition_notes" json:"condition_notes,omitempty"`
	ContactName    string `db:"contact_name" json:"contact_name"`
	ContactPhone   string `db:"contact_phone" json:"contact_phone"`

	PickupAddress  string   `db:"pickup_address" json:"pickup_address"`
	PickupLat      *float64 `db:"pickup_lat" json:"pickup_lat,omitempty"`
	PickupLng      *float64 `db:"pickup_lng" json:"pickup_lng,omitempty"`
	DestAddress    string   `db:"dest_address" json:"dest_address"`
	DestLat        *float64 `db:"dest_lat" json:"dest_lat,omitempty"`
	DestLng        *float64 `db:"dest_lng" json:"dest_lng,omitempty"`

	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`

	AmbulanceID *uuid.UUID `db:"ambulance_id" json:"ambulance_id,omitempty"`
	DriverID    *uuid.UUID `db:"driver_id" json:"driver_id,omitempty"`

	TotalAmount       int64  `db:"total_amount" json:"total_amount"`
	DownpaymentAmount *int64 `db:"downpayment_amount" json:"downpayment_amount,omitempty"`

	CancelReason *string `db:"cancel_reason" json:"cancel_reason,omitempty"`

	ConfirmedAt  *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	DispatchedAt *time.Time `db:"dispatched_at" json:"dispatched_at,omitempty"`
	ArrivedAt    *time.Time `db:"arrived_at" json:"arrived_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transition is one row of the booking audit log.
type Transition struct {
	ID        int64     `db:"id" json:"id"`
	BookingID uuid.UUID `db:"booking_id" json:"booking_id"`
	From      Status    `db:"from_status" json:"from_status"`
	To        Status    `db:"to_status" json:"to_status"`
	Actor     string    `db:"actor" json:"actor"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	At        time.Time `db:"at" json:"at"`
}

// Event types published by the coordinator.
const (
	EventBookingCreated    = "booking.created"
	EventBookingConfirmed  = "booking.confirmed"
	EventBookingDispatched = "booking.dispatched"
	EventBookingArrived    = "booking.arrived"
	EventBookingInProgress = "booking.in_progress"
	EventBookingCompleted  = "booking.completed"
	EventBookingCancelled  = "booking.cancelled"
)

// eventForStatus maps a newly entered status to the event announcing it.
func eventForStatus(s Status) string {
	switch s {
	case StatusConfirmed:
		return EventBookingConfirmed
	case StatusDispatched:
		return EventBookingDispatched
	case StatusArrived:
		return EventBookingArrived
	case StatusInProgress:
		return EventBookingInProgress
	case StatusCompleted:
		return EventBookingCompleted
	case StatusCancelled:
		return EventBookingCancelled
	}
	return ""
}
