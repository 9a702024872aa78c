package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

type ReservationStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewReservationStore(log *slog.Logger, pool *pgxpool.Pool) *ReservationStore {
	return &ReservationStore{log: log, pool: pool}
}

const reservationColumns = `id, cart_id, sku_id, quantity, status, expires_at, created_at`

func (s *ReservationStore) Create(ctx context.Context, r domain.Reservation) error {
	_, err := txn.From(ctx, s.pool).Exec(ctx,
		`INSERT INTO reservations (`+reservationColumns+`, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`,
		r.ID, r.CartID, r.SkuID, r.Quantity, string(r.Status), r.ExpiresAt.UTC(), r.CreatedAt.UTC())
	return err
}

func (s *ReservationStore) ListActiveByCart(ctx context.Context, cartID string) ([]domain.Reservation, error) {
	rows, err := txn.From(ctx, s.pool).Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE cart_id = $1 AND status = 'ACTIVE'
		 ORDER BY created_at, id`,
		cartID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *ReservationStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	rows, err := txn.From(ctx, s.pool).Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = 'ACTIVE' AND expires_at <= $1
		 ORDER BY expires_at
		 LIMIT $2`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *ReservationStore) Transition(ctx context.Context, id string, from, to domain.ReservationStatus) (bool, error) {
	tag, err := txn.From(ctx, s.pool).Exec(ctx,
		`UPDATE reservations SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeAll is one statement: the row locks taken by the CTE make the count
// check and the update atomic against a concurrent release.
func (s *ReservationStore) ConsumeAll(ctx context.Context, ids []string, now time.Time) error {
	tag, err := txn.From(ctx, s.pool).Exec(ctx,
		`WITH eligible AS (
			SELECT id FROM reservations
			WHERE id = ANY($1) AND status = 'ACTIVE' AND expires_at > $2
			FOR UPDATE
		)
		UPDATE reservations SET status = 'CONSUMED', updated_at = $2
		WHERE id IN (SELECT id FROM eligible)
		  AND (SELECT count(*) FROM eligible) = $3`,
		ids, now.UTC(), len(ids))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return domain.ErrReservationNotActive
	}
	return nil
}

func collect(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var (
			r      domain.Reservation
			status string
		)
		if err := rows.Scan(&r.ID, &r.CartID, &r.SkuID, &r.Quantity, &status, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = domain.ReservationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
