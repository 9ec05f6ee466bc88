package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repositories --

type mockAmbulanceRepo struct {
	mu         sync.Mutex
	ambulances map[uuid.UUID]*Ambulance
	getErr     error
}

func newMockAmbulanceRepo() *mockAmbulanceRepo {
	return &mockAmbulanceRepo{ambulances: make(map[uuid.UUID]*Ambulance)}
}

func (m *mockAmbulanceRepo) Create(_ context.Context, a *Ambulance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.ambulances[a.ID] = a
	return nil
}

func (m *mockAmbulanceRepo) GetByID(_ context.Context, id uuid.UUID) (*Ambulance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.ambulances[id]
	if !ok {
		return nil, NotFoundError{Resource: "ambulance", ID: id}
	}
	cp := *a
	return &cp, nil
}

func (m *mockAmbulanceRepo) Update(_ context.Context, a *Ambulance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ambulances[a.ID] = a
	return nil
}

func (m *mockAmbulanceRepo) List(_ context.Context, limit, offset int) ([]*Ambulance, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Ambulance
	for _, a := range m.ambulances {
		result = append(result, a)
	}
	return result, len(result), nil
}

func (m *mockAmbulanceRepo) ListByStatus(_ context.Context, status AmbulanceStatus, limit, offset int) ([]*Ambulance, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Ambulance
	for _, a := range m.ambulances {
		if a.Status == status {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAmbulanceRepo) MarkAssigned(_ context.Context, id, bookingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.ambulances[id]
	if !ok || a.Status != AmbulanceAvailable {
		return false, nil
	}
	a.Status = AmbulanceAssigned
	bid := bookingID
	a.CurrentBookingID = &bid
	return true, nil
}

func (m *mockAmbulanceRepo) MarkAvailable(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.ambulances[id]
	if !ok || a.Status != AmbulanceAssigned {
		return nil
	}
	a.Status = AmbulanceAvailable
	a.CurrentBookingID = nil
	return nil
}

type mockDriverRepo struct {
	mu      sync.Mutex
	drivers map[uuid.UUID]*Driver
}

func newMockDriverRepo() *mockDriverRepo {
	return &mockDriverRepo{drivers: make(map[uuid.UUID]*Driver)}
}

func (m *mockDriverRepo) Create(_ context.Context, d *Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.drivers[d.ID] = d
	return nil
}

func (m *mockDriverRepo) GetByID(_ context.Context, id uuid.UUID) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, NotFoundError{Resource: "driver", ID: id}
	}
	cp := *d
	return &cp, nil
}

func (m *mockDriverRepo) Update(_ context.Context, d *Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	return nil
}

func (m *mockDriverRepo) List(_ context.Context, limit, offset int) ([]*Driver, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Driver
	for _, d := range m.drivers {
		result = append(result, d)
	}
	return result, len(result), nil
}

func (m *mockDriverRepo) ListByStatus(_ context.Context, status DriverStatus, limit, offset int) ([]*Driver, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Driver
	for _, d := range m.drivers {
		if d.Status == status {
			result = append(result, d)
		}
	}
	return result, len(result), nil
}

func (m *mockDriverRepo) MarkBusy(_ context.Context, id, ambulanceID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok || d.Status != DriverAvailable {
		return false, nil
	}
	d.Status = DriverBusy
	aid := ambulanceID
	d.CurrentAmbulanceID = &aid
	return true, nil
}

func (m *mockDriverRepo) MarkAvailable(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok || d.Status != DriverBusy {
		return nil
	}
	d.Status = DriverAvailable
	d.CurrentAmbulanceID = nil
	return nil
}

func (m *mockDriverRepo) SetStatus(_ context.Context, id uuid.UUID, status DriverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return NotFoundError{Resource: "driver", ID: id}
	}
	d.Status = status
	return nil
}

// -- Helpers --

func newTestRegistry(t *testing.T) (*Registry, *Ambulance, *Driver) {
	t.Helper()
	ambRepo := newMockAmbulanceRepo()
	drvRepo := newMockDriverRepo()
	reg := NewRegistry(ambRepo, drvRepo, zerolog.Nop())

	amb := &Ambulance{Callsign: "UNIT-1", Status: AmbulanceAvailable}
	if err := reg.CreateAmbulance(context.Background(), amb); err != nil {
		t.Fatalf("create ambulance: %v", err)
	}
	drv := &Driver{Name: "Sam Driver", Status: DriverAvailable}
	if err := reg.CreateDriver(context.Background(), drv); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return reg, amb, drv
}

// -- Tests --

func TestRegistry_ReserveAndRelease(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()
	bookingID := uuid.New()

	res, err := reg.Reserve(ctx, amb.ID, drv.ID, bookingID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.BookingID != bookingID {
		t.Errorf("reservation booking id mismatch")
	}

	got, _ := reg.GetAmbulance(ctx, amb.ID)
	if got.Status != AmbulanceAssigned {
		t.Errorf("expected ambulance assigned, got %s", got.Status)
	}
	if got.CurrentBookingID == nil || *got.CurrentBookingID != bookingID {
		t.Errorf("expected ambulance linked to booking")
	}

	gotDrv, _ := reg.GetDriver(ctx, drv.ID)
	if gotDrv.Status != DriverBusy {
		t.Errorf("expected driver busy, got %s", gotDrv.Status)
	}

	if err := reg.Release(ctx, amb.ID, drv.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ = reg.GetAmbulance(ctx, amb.ID)
	if got.Status != AmbulanceAvailable || got.CurrentBookingID != nil {
		t.Errorf("expected ambulance released, got %s", got.Status)
	}
}

func TestRegistry_ReserveUnavailableAmbulance(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Reserve(ctx, amb.ID, drv.ID, uuid.New()); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	_, err := reg.Reserve(ctx, amb.ID, drv.ID, uuid.New())
	var assigned AlreadyAssignedError
	if !errors.As(err, &assigned) {
		t.Fatalf("expected AlreadyAssignedError, got %v", err)
	}
	if assigned.Resource != "ambulance" {
		t.Errorf("expected ambulance conflict, got %s", assigned.Resource)
	}
}

func TestRegistry_ReserveUnknownResource(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Reserve(ctx, uuid.New(), drv.ID, uuid.New())
	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for ambulance, got %v", err)
	}

	_, err = reg.Reserve(ctx, amb.ID, uuid.New(), uuid.New())
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for driver, got %v", err)
	}
}

func TestRegistry_ReserveRepoFailureIsNotNotFound(t *testing.T) {
	ambRepo := newMockAmbulanceRepo()
	drvRepo := newMockDriverRepo()
	reg := NewRegistry(ambRepo, drvRepo, zerolog.Nop())
	ctx := context.Background()

	dbErr := errors.New("connection refused")
	ambRepo.getErr = dbErr

	_, err := reg.Reserve(ctx, uuid.New(), uuid.New(), uuid.New())
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected repo error to pass through, got %v", err)
	}
	var nf NotFoundError
	if errors.As(err, &nf) {
		t.Error("infrastructure failure must not look like a missing resource")
	}
}

func TestRegistry_ReserveRollsBackAmbulanceWhenDriverBusy(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()

	// Put the driver off-duty so the reservation fails after the ambulance
	// was claimed.
	if err := reg.SetDriverStatus(ctx, drv.ID, DriverOff); err != nil {
		t.Fatalf("set driver status: %v", err)
	}

	_, err := reg.Reserve(ctx, amb.ID, drv.ID, uuid.New())
	var assigned AlreadyAssignedError
	if !errors.As(err, &assigned) {
		t.Fatalf("expected AlreadyAssignedError, got %v", err)
	}

	got, _ := reg.GetAmbulance(ctx, amb.ID)
	if got.Status != AmbulanceAvailable {
		t.Errorf("expected ambulance rolled back to available, got %s", got.Status)
	}
}

func TestRegistry_ConcurrentReserveOneWinner(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Reserve(ctx, amb.ID, drv.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var assigned AlreadyAssignedError
		if !errors.As(err, &assigned) {
			t.Errorf("loser got unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	got, _ := reg.GetAmbulance(ctx, amb.ID)
	if got.Status != AmbulanceAssigned || got.CurrentBookingID == nil {
		t.Errorf("expected ambulance assigned to exactly one booking")
	}
}

func TestRegistry_ReleaseIdempotent(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Reserve(ctx, amb.ID, drv.ID, uuid.New()); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := reg.Release(ctx, amb.ID, drv.ID); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := reg.Release(ctx, amb.ID, drv.ID); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}

	got, _ := reg.GetAmbulance(ctx, amb.ID)
	if got.Status != AmbulanceAvailable {
		t.Errorf("expected available after double release, got %s", got.Status)
	}
}

func TestRegistry_SetDriverStatusConflictWhenBusy(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Reserve(ctx, amb.ID, drv.ID, uuid.New()); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err := reg.SetDriverStatus(ctx, drv.ID, DriverOff)
	var conflict ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// busy -> busy is allowed
	if err := reg.SetDriverStatus(ctx, drv.ID, DriverBusy); err != nil {
		t.Fatalf("busy -> busy should not conflict: %v", err)
	}

	// After release the override goes through.
	if err := reg.Release(ctx, amb.ID, drv.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := reg.SetDriverStatus(ctx, drv.ID, DriverOff); err != nil {
		t.Fatalf("set status after release: %v", err)
	}
}

func TestRegistry_LocksReleasedAfterReserveRelease(t *testing.T) {
	reg, amb, drv := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Reserve(ctx, amb.ID, drv.ID, uuid.New()); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := reg.Release(ctx, amb.ID, drv.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	if n := reg.locks.Len(); n != 0 {
		t.Errorf("expected no retained resource locks, have %d", n)
	}
}
