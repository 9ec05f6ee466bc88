package fleet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ambulink/ambulink/internal/platform/locking"
)

// Registry tracks ambulance and driver availability and serializes
// reservation of each resource. Concurrent Reserve calls against the same
// vehicle or driver are decided by a per-resource lock: exactly one caller
// wins, the rest get AlreadyAssignedError immediately.
type Registry struct {
	ambulances AmbulanceRepository
	drivers    DriverRepository
	log        zerolog.Logger

	locks *locking.Keyed
}

func NewRegistry(ambulances AmbulanceRepository, drivers DriverRepository, log zerolog.Logger) *Registry {
	return &Registry{
		ambulances: ambulances,
		drivers:    drivers,
		log:        log.With().Str("component", "fleet").Logger(),
		locks:      locking.NewKeyed(),
	}
}

// Reserve atomically claims the ambulance/driver pair for a booking. Both
// resources must be available; otherwise nothing is mutated. Lock order is
// always ambulance before driver, which rules out deadlock between
// concurrent reservations.
func (r *Registry) Reserve(ctx context.Context, ambulanceID, driverID, bookingID uuid.UUID) (*Reservation, error) {
	unlockAmb := r.locks.Lock(ambulanceID)
	defer unlockAmb()
	unlockDrv := r.locks.Lock(driverID)
	defer unlockDrv()

	amb, err := r.ambulances.GetByID(ctx, ambulanceID)
	if err != nil {
		return nil, err
	}
	if amb.Status != AmbulanceAvailable {
		return nil, AlreadyAssignedError{Resource: "ambulance", ID: ambulanceID, Status: string(amb.Status)}
	}

	drv, err := r.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if drv.Status != DriverAvailable {
		return nil, AlreadyAssignedError{Resource: "driver", ID: driverID, Status: string(drv.Status)}
	}

	// Conditional updates guard against a competing writer outside this
	// process; the WHERE status='available' clause makes the claim atomic
	// at the database too.
	ok, err := r.ambulances.MarkAssigned(ctx, ambulanceID, bookingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, AlreadyAssignedError{Resource: "ambulance", ID: ambulanceID, Status: string(AmbulanceAssigned)}
	}

	ok, err = r.drivers.MarkBusy(ctx, driverID, ambulanceID)
	if err != nil || !ok {
		// Undo the ambulance claim so a half-reserved pair never leaks.
		if relErr := r.ambulances.MarkAvailable(ctx, ambulanceID); relErr != nil {
			r.log.Error().Err(relErr).Str("ambulance_id", ambulanceID.String()).
				Msg("failed to roll back ambulance claim")
		}
		if err != nil {
			return nil, err
		}
		return nil, AlreadyAssignedError{Resource: "driver", ID: driverID, Status: string(DriverBusy)}
	}

	res := &Reservation{
		AmbulanceID: ambulanceID,
		DriverID:    driverID,
		BookingID:   bookingID,
	}
	r.log.Info().
		Str("ambulance_id", ambulanceID.String()).
		Str("driver_id", driverID.String()).
		Str("booking_id", bookingID.String()).
		Msg("resources reserved")
	return res, nil
}

// Release returns the pair to the available pool and clears the links.
// Releasing an already-released pair is a no-op.
func (r *Registry) Release(ctx context.Context, ambulanceID, driverID uuid.UUID) error {
	unlockAmb := r.locks.Lock(ambulanceID)
	defer unlockAmb()
	unlockDrv := r.locks.Lock(driverID)
	defer unlockDrv()

	if _, err := r.ambulances.GetByID(ctx, ambulanceID); err != nil {
		return err
	}
	if _, err := r.drivers.GetByID(ctx, driverID); err != nil {
		return err
	}

	if err := r.ambulances.MarkAvailable(ctx, ambulanceID); err != nil {
		return err
	}
	if err := r.drivers.MarkAvailable(ctx, driverID); err != nil {
		return err
	}

	r.log.Info().
		Str("ambulance_id", ambulanceID.String()).
		Str("driver_id", driverID.String()).
		Msg("resources released")
	return nil
}

// SetDriverStatus is the administrative override for a driver's duty state.
// A driver linked to an active booking (busy) can only be set to busy; any
// other target is a conflict until the booking completes or is cancelled.
func (r *Registry) SetDriverStatus(ctx context.Context, driverID uuid.UUID, status DriverStatus) error {
	if !status.Valid() {
		return ValidationError{Field: "status", Msg: "unknown driver status"}
	}

	unlock := r.locks.Lock(driverID)
	defer unlock()

	drv, err := r.drivers.GetByID(ctx, driverID)
	if err != nil {
		return err
	}

	if drv.Status == DriverBusy && status != DriverBusy {
		return ConflictError{Msg: "driver is assigned to an active booking"}
	}

	return r.drivers.SetStatus(ctx, driverID, status)
}

// GetAmbulance returns the ambulance; a missing id is NotFoundError from
// the repository.
func (r *Registry) GetAmbulance(ctx context.Context, id uuid.UUID) (*Ambulance, error) {
	return r.ambulances.GetByID(ctx, id)
}

// GetDriver returns the driver or the repository's error.
func (r *Registry) GetDriver(ctx context.Context, id uuid.UUID) (*Driver, error) {
	return r.drivers.GetByID(ctx, id)
}

// -- Administrative provisioning --

func (r *Registry) CreateAmbulance(ctx context.Context, a *Ambulance) error {
	if a.Callsign == "" {
		return ValidationError{Field: "callsign", Msg: "is required"}
	}
	if a.Status == "" {
		a.Status = AmbulanceAvailable
	}
	if !a.Status.Valid() {
		return ValidationError{Field: "status", Msg: "unknown ambulance status"}
	}
	return r.ambulances.Create(ctx, a)
}

func (r *Registry) UpdateAmbulance(ctx context.Context, a *Ambulance) error {
	if !a.Status.Valid() {
		return ValidationError{Field: "status", Msg: "unknown ambulance status"}
	}
	return r.ambulances.Update(ctx, a)
}

func (r *Registry) ListAmbulances(ctx context.Context, status AmbulanceStatus, limit, offset int) ([]*Ambulance, int, error) {
	if status != "" {
		if !status.Valid() {
			return nil, 0, ValidationError{Field: "status", Msg: "unknown ambulance status"}
		}
		return r.ambulances.ListByStatus(ctx, status, limit, offset)
	}
	return r.ambulances.List(ctx, limit, offset)
}

func (r *Registry) CreateDriver(ctx context.Context, d *Driver) error {
	if d.Name == "" {
		return ValidationError{Field: "name", Msg: "is required"}
	}
	if d.Status == "" {
		d.Status = DriverAvailable
	}
	if !d.Status.Valid() {
		return ValidationError{Field: "status", Msg: "unknown driver status"}
	}
	return r.drivers.Create(ctx, d)
}

func (r *Registry) UpdateDriver(ctx context.Context, d *Driver) error {
	if !d.Status.Valid() {
		return ValidationError{Field: "status", Msg: "unknown driver status"}
	}
	return r.drivers.Update(ctx, d)
}

func (r *Registry) ListDrivers(ctx context.Context, status DriverStatus, limit, offset int) ([]*Driver, int, error) {
	if status != "" {
		if !status.Valid() {
			return nil, 0, ValidationError{Field: "status", Msg: "unknown driver status"}
		}
		return r.drivers.ListByStatus(ctx, status, limit, offset)
	}
	return r.drivers.List(ctx, limit, offset)
}
