package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

type SkuRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewSkuRepository(log *slog.Logger, pool *pgxpool.Pool) *SkuRepository {
	return &SkuRepository{log: log, pool: pool}
}

func (r *SkuRepository) GetSku(ctx context.Context, id string) (domain.Sku, error) {
	var (
		s     domain.Sku
		price string
	)
	err := txn.From(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, price::text, stock_qty FROM skus WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &price, &s.StockQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Sku{}, domain.ErrSkuNotFound
	}
	if err != nil {
		return domain.Sku{}, err
	}
	if s.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Sku{}, fmt.Errorf("sku %s price %q: %w", id, price, err)
	}
	return s, nil
}

// Upsert sets name, price and stock. Used for seeding and admin tooling.
func (r *SkuRepository) Upsert(ctx context.Context, s domain.Sku) error {
	_, err := txn.From(ctx, r.pool).Exec(ctx,
		`INSERT INTO skus (id, name, price, stock_qty) VALUES ($1, $2, $3::numeric, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, price = EXCLUDED.price, stock_qty = EXCLUDED.stock_qty, updated_at = now()`,
		s.ID, s.Name, s.Price.String(), s.StockQty)
	return err
}

// StockLevels returns stock_qty for every SKU.
func (r *SkuRepository) StockLevels(ctx context.Context) (map[string]int, error) {
	rows, err := txn.From(ctx, r.pool).Query(ctx, `SELECT id, stock_qty FROM skus`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			id  string
			qty int
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}
