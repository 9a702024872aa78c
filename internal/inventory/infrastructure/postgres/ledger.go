package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

// Ledger keeps stock in skus.stock_qty. Reserve relies on the row lock taken
// by a single conditional UPDATE, so it is safe across processes.
type Ledger struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool) *Ledger {
	return &Ledger{log: log, pool: pool}
}

func (l *Ledger) Reserve(ctx context.Context, skuID string, qty int) (bool, error) {
	tag, err := txn.From(ctx, l.pool).Exec(ctx,
		`UPDATE skus SET stock_qty = stock_qty - $1, updated_at = now()
		 WHERE id = $2 AND stock_qty >= $1`,
		qty, skuID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (l *Ledger) Restore(ctx context.Context, skuID string, qty int) error {
	tag, err := txn.From(ctx, l.pool).Exec(ctx,
		`UPDATE skus SET stock_qty = stock_qty + $1, updated_at = now() WHERE id = $2`,
		qty, skuID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		l.log.WarnContext(ctx, "restore for unknown sku", "sku_id", skuID, "qty", qty)
		return fmt.Errorf("restore %s: %w", skuID, catalog.ErrSkuNotFound)
	}
	return nil
}

func (l *Ledger) Available(ctx context.Context, skuID string) (int, error) {
	var qty int
	err := txn.From(ctx, l.pool).QueryRow(ctx, `SELECT stock_qty FROM skus WHERE id = $1`, skuID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, catalog.ErrSkuNotFound
	}
	return qty, err
}
