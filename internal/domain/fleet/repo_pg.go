package fleet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ambulink/ambulink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Ambulance Repository ===========

type ambulanceRepoPG struct{ pool *pgxpool.Pool }

func NewAmbulanceRepoPG(pool *pgxpool.Pool) AmbulanceRepository { return &ambulanceRepoPG{pool: pool} }

func (r *ambulanceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ambulanceCols = `id, callsign, plate_number, status, current_booking_id, created_at, updated_at`

func (r *ambulanceRepoPG) scan(row pgx.Row) (*Ambulance, error) {
	var a Ambulance
	err := row.Scan(&a.ID, &a.Callsign, &a.PlateNumber, &a.Status, &a.CurrentBookingID,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *ambulanceRepoPG) Create(ctx context.Context, a *Ambulance) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ambulance (id, callsign, plate_number, status)
		VALUES ($1,$2,$3,$4)`,
		a.ID, a.Callsign, a.PlateNumber, a.Status)
	return err
}

func (r *ambulanceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ambulance, error) {
	a, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+ambulanceCols+` FROM ambulance WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundError{Resource: "ambulance", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *ambulanceRepoPG) Update(ctx context.Context, a *Ambulance) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE ambulance SET callsign=$2, plate_number=$3, status=$4, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Callsign, a.PlateNumber, a.Status)
	return err
}

func (r *ambulanceRepoPG) List(ctx context.Context, limit, offset int) ([]*Ambulance, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ambulance`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ambulanceCols+` FROM ambulance ORDER BY callsign LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Ambulance
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *ambulanceRepoPG) ListByStatus(ctx context.Context, status AmbulanceStatus, limit, offset int) ([]*Ambulance, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ambulance WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ambulanceCols+` FROM ambulance WHERE status = $1 ORDER BY callsign LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Ambulance
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *ambulanceRepoPG) MarkAssigned(ctx context.Context, id, bookingID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE ambulance SET status=$2, current_booking_id=$3, updated_at=NOW()
		WHERE id = $1 AND status = $4`,
		id, AmbulanceAssigned, bookingID, AmbulanceAvailable)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ambulanceRepoPG) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE ambulance SET status=$2, current_booking_id=NULL, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, AmbulanceAvailable, AmbulanceAssigned)
	return err
}

// =========== Driver Repository ===========

type driverRepoPG struct{ pool *pgxpool.Pool }

func NewDriverRepoPG(pool *pgxpool.Pool) DriverRepository { return &driverRepoPG{pool: pool} }

func (r *driverRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const driverCols = `id, name, phone, license_number, status, current_ambulance_id, created_at, updated_at`

func (r *driverRepoPG) scan(row pgx.Row) (*Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.LicenseNumber, &d.Status, &d.CurrentAmbulanceID,
		&d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *driverRepoPG) Create(ctx context.Context, d *Driver) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO driver (id, name, phone, license_number, status)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.Name, d.Phone, d.LicenseNumber, d.Status)
	return err
}

func (r *driverRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Driver, error) {
	d, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+driverCols+` FROM driver WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundError{Resource: "driver", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *driverRepoPG) Update(ctx context.Context, d *Driver) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE driver SET name=$2, phone=$3, license_number=$4, status=$5, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Phone, d.LicenseNumber, d.Status)
	return err
}

func (r *driverRepoPG) List(ctx context.Context, limit, offset int) ([]*Driver, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM driver`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+driverCols+` FROM driver ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Driver
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *driverRepoPG) ListByStatus(ctx context.Context, status DriverStatus, limit, offset int) ([]*Driver, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM driver WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+driverCols+` FROM driver WHERE status = $1 ORDER BY name LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Driver
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *driverRepoPG) MarkBusy(ctx context.Context, id, ambulanceID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE driver SET status=$2, current_ambulance_id=$3, updated_at=NOW()
		WHERE id = $1 AND status = $4`,
		id, DriverBusy, ambulanceID, DriverAvailable)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *driverRepoPG) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE driver SET status=$2, current_ambulance_id=NULL, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, DriverAvailable, DriverBusy)
	return err
}

func (r *driverRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status DriverStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE driver SET status=$2, updated_at=NOW() WHERE id = $1`,
		id, status)
	return err
}
