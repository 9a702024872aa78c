package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	tx   *txn.PgxRunner
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool, tx: txn.NewPgxRunner(pool)}
}

func (r *Repository) Create(ctx context.Context, o domain.Order, h domain.HistoryEntry) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := txn.From(ctx, r.pool)

		_, err := q.Exec(ctx, `INSERT INTO orders (id, tracking_id, cart_id, status, payment_method,
				customer_name, customer_phone, customer_email, shipping_address, note,
				total_amount, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::numeric,$12,$13)`,
			o.ID, o.TrackingID, o.CartID, string(o.Status), string(o.PaymentMethod),
			o.Customer.Name, o.Customer.Phone, o.Customer.Email, o.Customer.ShippingAddress, o.Customer.Note,
			o.TotalAmount.String(), o.CreatedAt.UTC(), o.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, l := range o.Lines {
			batch.Queue(`INSERT INTO order_lines (order_id, line_no, reservation_id, sku_id, quantity, unit_price)
				VALUES ($1,$2,$3,$4,$5,$6::numeric)`,
				o.ID, i+1, l.ReservationID, l.SkuID, l.Quantity, l.UnitPrice.String())
		}
		if err := q.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}

		return insertHistory(ctx, q, h)
	})
}

const orderColumns = `id, tracking_id, cart_id, status, payment_method,
	customer_name, customer_phone, customer_email, shipping_address, note,
	total_amount::text, created_at, updated_at`

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.getBy(ctx, `id`, id)
}

func (r *Repository) GetByTrackingID(ctx context.Context, trackingID string) (domain.Order, error) {
	return r.getBy(ctx, `tracking_id`, trackingID)
}

func (r *Repository) getBy(ctx context.Context, column, value string) (domain.Order, error) {
	q := txn.From(ctx, r.pool)

	var (
		o             domain.Order
		status, total string
		method        string
	)
	err := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value).
		Scan(&o.ID, &o.TrackingID, &o.CartID, &status, &method,
			&o.Customer.Name, &o.Customer.Phone, &o.Customer.Email, &o.Customer.ShippingAddress, &o.Customer.Note,
			&total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)
	o.PaymentMethod = domain.PaymentMethod(method)
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("order %s total %q: %w", o.ID, total, err)
	}

	rows, err := q.Query(ctx, `SELECT reservation_id, sku_id, quantity, unit_price::text
		FROM order_lines WHERE order_id = $1 ORDER BY line_no`, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l     domain.Line
			price string
		)
		if err := rows.Scan(&l.ReservationID, &l.SkuID, &l.Quantity, &price); err != nil {
			return domain.Order{}, err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, fmt.Errorf("order %s line price %q: %w", o.ID, price, err)
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, from domain.Status, h domain.HistoryEntry) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := txn.From(ctx, r.pool)

		tag, err := q.Exec(ctx, `UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
			id, string(from), string(h.NewStatus), h.At.UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var current string
			err := q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrOrderNotFound
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: order is %s, expected %s", domain.ErrInvalidStatusTransition, current, from)
		}
		return insertHistory(ctx, q, h)
	})
}

func (r *Repository) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	rows, err := txn.From(ctx, r.pool).Query(ctx,
		`SELECT order_id, COALESCE(old_status, ''), new_status, note, created_at
		 FROM order_history WHERE order_id = $1 ORDER BY id DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			h        domain.HistoryEntry
			old, next string
		)
		if err := rows.Scan(&h.OrderID, &old, &next, &h.Note, &h.At); err != nil {
			return nil, err
		}
		h.OldStatus, h.NewStatus = domain.Status(old), domain.Status(next)
		out = append(out, h)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, q txn.Querier, h domain.HistoryEntry) error {
	var old *string
	if h.OldStatus != "" {
		s := string(h.OldStatus)
		old = &s
	}
	_, err := q.Exec(ctx, `INSERT INTO order_history (order_id, old_status, new_status, note, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		h.OrderID, old, string(h.NewStatus), h.Note, h.At.UTC())
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}
