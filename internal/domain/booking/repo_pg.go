package booking

import (
	"context"
	"errors"
	"fmt"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const bookingCols = `id, booking_type, priority, status,
	patient_name, patient_age, condition_notes, contact_name, contact_phone,
	pickup_address, pickup_lat, pickup_lng, dest_address, dest_lat, dest_lng,
	requested_at, scheduled_at, ambulance_id, driver_id,
	total_amount, downpayment_amount, cancel_reason,
	confirmed_at, dispatched_at, arrived_at, completed_at, cancelled_at,
	created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.Type, &b.Priority, &b.Status,
		&b.PatientName, &b.PatientAge, &b.ConditionNotes, &b.ContactName, &b.ContactPhone,
		&b.PickupAddress, &b.PickupLat, &b.PickupLng, &b.DestAddress, &b.DestLat, &b.DestLng,
		&b.RequestedAt, &b.ScheduledAt, &b.AmbulanceID, &b.DriverID,
		&b.TotalAmount, &b.DownpaymentAmount, &b.CancelReason,
		&b.ConfirmedAt, &b.DispatchedAt, &b.ArrivedAt, &b.CompletedAt, &b.CancelledAt,
		&b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO booking (id, booking_type, priority, status,
			patient_name, patient_age, condition_notes, contact_name, contact_phone,
			pickup_address, pickup_lat, pickup_lng, dest_address, dest_lat, dest_lng,
			requested_at, scheduled_at, total_amount, downpayment_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		b.ID, b.Type, b.Priority, b.Status,
		b.PatientName, b.PatientAge, b.ConditionNotes, b.ContactName, b.ContactPhone,
		b.PickupAddress, b.PickupLat, b.PickupLng, b.DestAddress, b.DestLat, b.DestLng,
		b.RequestedAt, b.ScheduledAt, b.TotalAmount, b.DownpaymentAmount)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundError{ID: id}
	}
	return b, err
}

const bookingUpdateSQL = `
	UPDATE booking SET status=$2, ambulance_id=$3, driver_id=$4, cancel_reason=$5,
		downpayment_amount=$6,
		confirmed_at=$7, dispatched_at=$8, arrived_at=$9, completed_at=$10, cancelled_at=$11,
		updated_at=NOW()
	WHERE id = $1`

func (r *repoPG) Update(ctx context.Context, b *Booking) error {
	_, err := r.conn(ctx).Exec(ctx, bookingUpdateSQL,
		b.ID, b.Status, b.AmbulanceID, b.DriverID, b.CancelReason,
		b.DownpaymentAmount,
		b.ConfirmedAt, b.DispatchedAt, b.ArrivedAt, b.CompletedAt, b.CancelledAt)
	return err
}

func (r *repoPG) UpdateWithTransition(ctx context.Context, b *Booking, tr *Transition) error {
	return db.WithTx(ctx, r.pool, func(txCtx context.Context) error {
		if err := r.Update(txCtx, b); err != nil {
			return err
		}
		_, err := r.conn(txCtx).Exec(txCtx, `
			INSERT INTO booking_transition (booking_id, from_status, to_status, actor, reason, at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			tr.BookingID, tr.From, tr.To, tr.Actor, tr.Reason, tr.At)
		return err
	})
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Booking, int, error) {
	where := ""
	args := []interface{}{}
	add := func(col string, val interface{}) {
		args = append(args, val)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf("%s = $%d", col, len(args))
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.Type != "" {
		add("booking_type", f.Type)
	}
	if f.Priority != "" {
		add("priority", f.Priority)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM booking`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM booking%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		bookingCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListTransitions(ctx context.Context, bookingID uuid.UUID) ([]*Transition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, booking_id, from_status, to_status, actor, reason, at
		FROM booking_transition WHERE booking_id = $1 ORDER BY at, id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Transition
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.ID, &tr.BookingID, &tr.From, &tr.To, &tr.Actor, &tr.Reason, &tr.At); err != nil {
			return nil, err
		}
		items = append(items, &tr)
	}
	return items, rows.Err()
}
