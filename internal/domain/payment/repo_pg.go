package payment

import (
	"context"
	"errors"
	"time"

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

const paymentCols = `id, booking_id, amount, status, payment_type, due_at, paid_at, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Status, &p.Type,
		&p.DueAt, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (id, booking_id, amount, status, payment_type, due_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.BookingID, p.Amount, p.Status, p.Type, p.DueAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundError{ID: id}
	}
	return p, err
}

func (r *repoPG) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+paymentCols+` FROM payment WHERE booking_id = $1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, status Status, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payment WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+paymentCols+` FROM payment WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Settle(ctx context.Context, id uuid.UUID, status Status, paidAt *time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment SET status=$2, paid_at=$3, updated_at=NOW()
		WHERE id = $1 AND status = $4`,
		id, status, paidAt, StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) SetDueAt(ctx context.Context, id uuid.UUID, dueAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment SET due_at=$2, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, dueAt, StatusPending)
	return err
}
