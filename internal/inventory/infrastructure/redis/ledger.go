package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

// Each script runs atomically on the server, which is what makes the
// check-and-decrement safe for concurrent callers.
var reserveScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
	return -1
end
local qty = tonumber(ARGV[1])
if tonumber(current) < qty then
	return 0
end
redis.call("DECRBY", KEYS[1], qty)
return 1
`)

var restoreScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("INCRBY", KEYS[1], ARGV[1])
`)

type Ledger struct {
	log    *slog.Logger
	rdb    *redis.Client
	prefix string
}

func NewLedger(log *slog.Logger, rdb *redis.Client) *Ledger {
	return &Ledger{log: log, rdb: rdb, prefix: "stock:"}
}

func (l *Ledger) key(skuID string) string {
	return l.prefix + skuID
}

func (l *Ledger) Reserve(ctx context.Context, skuID string, qty int) (bool, error) {
	res, err := reserveScript.Run(ctx, l.rdb, []string{l.key(skuID)}, qty).Int()
	if err != nil {
		return false, fmt.Errorf("reserve script: %w", err)
	}
	return res == 1, nil
}

func (l *Ledger) Restore(ctx context.Context, skuID string, qty int) error {
	res, err := restoreScript.Run(ctx, l.rdb, []string{l.key(skuID)}, qty).Int()
	if err != nil {
		return fmt.Errorf("restore script: %w", err)
	}
	if res < 0 {
		l.log.WarnContext(ctx, "restore for unknown sku", "sku_id", skuID, "qty", qty)
		return fmt.Errorf("restore %s: %w", skuID, catalog.ErrSkuNotFound)
	}
	return nil
}

func (l *Ledger) Available(ctx context.Context, skuID string) (int, error) {
	v, err := l.rdb.Get(ctx, l.key(skuID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, catalog.ErrSkuNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// Seed loads initial counters without overwriting ones already present, so a
// restart does not reset stock that reservations have drawn down.
func (l *Ledger) Seed(ctx context.Context, stock map[string]int) (int, error) {
	seeded := 0
	for sku, qty := range stock {
		ok, err := l.rdb.SetNX(ctx, l.key(sku), qty, 0).Result()
		if err != nil {
			return seeded, fmt.Errorf("seed %s: %w", sku, err)
		}
		if ok {
			seeded++
		}
	}
	return seeded, nil
}
