package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

type Config struct {
	ServiceName  string
	HTTPAddr     string
	LogLevel     string
	OTLPEndpoint string

	// Empty PostgresURL runs every store in memory.
	PostgresURL string
	// Empty RedisAddr falls back to in-process checkout locks and disables
	// payment message dedupe.
	RedisAddr string
	// Empty KafkaAddr disables the outbox relay and the payment consumer.
	KafkaAddr    string
	OutboxTopic  string
	PaymentTopic string
	PaymentGroup string

	LedgerBackend string

	ReservationTTL    time.Duration
	ReaperInterval    time.Duration
	ReaperBatchSize   int
	CompensatePartial bool
	CheckoutLockTTL   time.Duration

	CartServiceURL     string
	CartServiceTimeout time.Duration

	WebhookSecret string
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName:    env("SERVICE_NAME", "reservation-service"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		LogLevel:       env("LOG_LEVEL", "info"),
		OTLPEndpoint:   env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		PostgresURL:    env("PG_URL", ""),
		RedisAddr:      env("REDIS_ADDR", ""),
		KafkaAddr:      env("KAFKA_ADDR", ""),
		OutboxTopic:    env("OUTBOX_TOPIC", "order-events"),
		PaymentTopic:   env("PAYMENT_TOPIC", "payment-confirmations"),
		PaymentGroup:   env("PAYMENT_GROUP", "reservation-service"),
		LedgerBackend:  strings.ToLower(env("LEDGER_BACKEND", LedgerPostgres)),
		CartServiceURL: env("CART_SERVICE_URL", ""),
		WebhookSecret:  env("WEBHOOK_SECRET", ""),
	}

	var errs []error
	cfg.ReservationTTL = seconds("RESERVATION_TTL", 900, &errs)
	cfg.ReaperInterval = seconds("REAPER_INTERVAL", 60, &errs)
	cfg.CheckoutLockTTL = seconds("CHECKOUT_LOCK_TTL", 10, &errs)
	cfg.CartServiceTimeout = seconds("CART_SERVICE_TIMEOUT", 5, &errs)
	cfg.ReaperBatchSize = integer("REAPER_BATCH_SIZE", 500, &errs)
	cfg.CompensatePartial = boolean("CHECKOUT_COMPENSATE_PARTIAL", true, &errs)

	if cfg.ReservationTTL <= 0 {
		errs = append(errs, errors.New("RESERVATION_TTL must be positive"))
	}
	if cfg.ReaperInterval <= 0 {
		errs = append(errs, errors.New("REAPER_INTERVAL must be positive"))
	}
	if cfg.ReaperBatchSize <= 0 {
		errs = append(errs, errors.New("REAPER_BATCH_SIZE must be positive"))
	}
	switch cfg.LedgerBackend {
	case LedgerPostgres:
	case LedgerRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=redis requires REDIS_ADDR"))
		}
		// The redis counters are seeded from the skus table.
		if cfg.PostgresURL == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=redis requires PG_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND %q: want postgres or redis", cfg.LedgerBackend))
	}

	return cfg, errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// seconds accepts either a bare number of seconds or a Go duration string.
func seconds(k string, def int, errs *[]error) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return time.Duration(def) * time.Second
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return time.Duration(def) * time.Second
	}
	return d
}

func integer(k string, def int, errs *[]error) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func boolean(k string, def bool, errs *[]error) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return b
}
