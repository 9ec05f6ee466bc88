package fleet

import (
	"time"

	"github.com/google/uuid"
)

// AmbulanceStatus enumerates the availability states of a vehicle.
type AmbulanceStatus string

const (
	AmbulanceAvailable    AmbulanceStatus = "available"
	AmbulanceAssigned     AmbulanceStatus = "assigned"
	AmbulanceMaintenance  AmbulanceStatus = "maintenance"
	AmbulanceOutOfService AmbulanceStatus = "out_of_service"
)

// Valid reports whether s is a known ambulance status.
func (s AmbulanceStatus) Valid() bool {
	switch s {
	case AmbulanceAvailable, AmbulanceAssigned, AmbulanceMaintenance, AmbulanceOutOfService:
		return true
	}
	return false
}

// DriverStatus enumerates the availability states of a driver.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOff       DriverStatus = "off"
)

// Valid reports whether s is a known driver status.
func (s DriverStatus) Valid() bool {
	switch s {
	case DriverAvailable, DriverBusy, DriverOff:
		return true
	}
	return false
}

// Ambulance maps to the ambulance table. The registry owns its status and
// booking link exclusively; bookings hold the id only.
type Ambulance struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Callsign         string          `db:"callsign" json:"callsign"`
	PlateNumber      string          `db:"plate_number" json:"plate_number"`
	Status           AmbulanceStatus `db:"status" json:"status"`
	CurrentBookingID *uuid.UUID      `db:"current_booking_id" json:"current_booking_id,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Driver maps to the driver table. CurrentAmbulanceID is an informational
// link maintained by Reserve/Release, not ownership.
type Driver struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	Name               string       `db:"name" json:"name"`
	Phone              string       `db:"phone" json:"phone"`
	LicenseNumber      string       `db:"license_number" json:"license_number"`
	Status             DriverStatus `db:"status" json:"status"`
	CurrentAmbulanceID *uuid.UUID   `db:"current_ambulance_id" json:"current_ambulance_id,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// Reservation is the token returned by a successful Reserve call.
type Reservation struct {
	AmbulanceID uuid.UUID `json:"ambulance_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	ReservedAt  time.Time `json:"reserved_at"`
}
