package fleet

import (
	"context"

	"github.com/google/uuid"
)

type AmbulanceRepository interface {
	Create(ctx context.Context, a *Ambulance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ambulance, error)
	Update(ctx context.Context, a *Ambulance) error
	List(ctx context.Context, limit, offset int) ([]*Ambulance, int, error)
	ListByStatus(ctx context.Context, status AmbulanceStatus, limit, offset int) ([]*Ambulance, int, error)
	// MarkAssigned flips the ambulance to assigned and links the booking,
	// but only while it is still available. It reports whether the update
	// took effect.
	MarkAssigned(ctx context.Context, id, bookingID uuid.UUID) (bool, error)
	// MarkAvailable flips the ambulance back to available and clears the
	// booking link. Safe to call repeatedly.
	MarkAvailable(ctx context.Context, id uuid.UUID) error
}

type DriverRepository interface {
	Create(ctx context.Context, d *Driver) error
	GetByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	Update(ctx context.Context, d *Driver) error
	List(ctx context.Context, limit, offset int) ([]*Driver, int, error)
	ListByStatus(ctx context.Context, status DriverStatus, limit, offset int) ([]*Driver, int, error)
	// MarkBusy flips the driver to busy and links the ambulance, but only
	// while the driver is still available. It reports whether the update
	// took effect.
	MarkBusy(ctx context.Context, id, ambulanceID uuid.UUID) (bool, error)
	// MarkAvailable flips the driver back to available and clears the
	// ambulance link. Safe to call repeatedly.
	MarkAvailable(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status DriverStatus) error
}
