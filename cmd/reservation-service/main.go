package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	cataloghttp "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/infrastructure/http"
	catalogmem "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/infrastructure/memory"
	catalogpg "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/infrastructure/postgres"
	checkoutapp "github.com/dmehra2102/Inventory-Reservation-System/internal/checkout/application"
	checkouthttp "github.com/dmehra2102/Inventory-Reservation-System/internal/checkout/infrastructure/http"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/config"
	invapp "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/application"
	invhttp "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/infrastructure/http"
	invmem "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/infrastructure/memory"
	invpg "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/infrastructure/postgres"
	invredis "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/infrastructure/redis"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/notification"
	orderapp "github.com/dmehra2102/Inventory-Reservation-System/internal/order/application"
	orderhttp "github.com/dmehra2102/Inventory-Reservation-System/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/Inventory-Reservation-System/internal/order/infrastructure/kafka"
	ordermem "github.com/dmehra2102/Inventory-Reservation-System/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/Inventory-Reservation-System/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/storage"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/idempotency"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/logging"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/metrics"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/shutdown"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.LogLevel)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("reservation-service failed", "err", err)
		os.Exit(1)
	}
}

type cartSource interface {
	checkoutapp.CartLookup
	orderapp.CartCleaner
}

type skuSource interface {
	checkoutapp.SkuCatalog
	orderapp.SkuCatalog
}

type stockLedger interface {
	invapp.StockLedger
	orderapp.StockRestorer
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Telemetry
	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

	shutdownMetrics, err := metrics.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMetrics(context.WithoutCancel(ctx)) }()

	// Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	var (
		pool     *pgxpool.Pool
		runner   txn.Runner = txn.Nop{}
		ledger   stockLedger
		store    invapp.ReservationStore
		skus     skuSource
		carts    cartSource
		orders   orderapp.OrderRepository
		outboxDB *orderpg.OutboxStore
		events   orderapp.Events
		async    *notification.Async
	)

	// Postgres Setup
	if cfg.PostgresURL != "" {
		pool, err = storage.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := storage.Migrate(ctx, pool); err != nil {
			return err
		}

		runner = txn.NewPgxRunner(pool)
		skuRepo := catalogpg.NewSkuRepository(log, pool)
		skus = skuRepo
		store = invpg.NewReservationStore(log, pool)
		orders = orderpg.NewRepository(log, pool)
		outboxDB = orderpg.NewOutboxStore(log, pool)
		events = notification.NewOutbox(outboxDB)

		if cfg.LedgerBackend == config.LedgerRedis {
			redisLedger := invredis.NewLedger(log, rdb)
			levels, err := skuRepo.StockLevels(ctx)
			if err != nil {
				return err
			}
			seeded, err := redisLedger.Seed(ctx, levels)
			if err != nil {
				return err
			}
			log.Info("redis stock ledger seeded", "skus", len(levels), "new_counters", seeded)
			ledger = redisLedger
		} else {
			ledger = invpg.NewLedger(log, pool)
		}
	} else {
		log.Warn("PG_URL not set, running with in-memory stores")
		mem := catalogmem.NewCatalog()
		skus, carts = mem, mem
		store = invmem.NewReservationStore()
		orders = ordermem.NewRepository()
		ledger = invmem.NewLedger()
		async = notification.NewAsync(log, notification.NewLogSink(log))
		events = async
	}

	if cfg.CartServiceURL != "" {
		carts = cataloghttp.NewCartClient(log, cfg.CartServiceURL, cfg.CartServiceTimeout)
	} else if carts == nil {
		return errors.New("CART_SERVICE_URL is required when running against postgres")
	}

	var locker idempotency.Locker = idempotency.NewLocalLocker(cfg.CheckoutLockTTL)
	if rdb != nil {
		locker = idempotency.NewRedisLocker(rdb, cfg.CheckoutLockTTL, cfg.CheckoutLockTTL)
	}

	// Services
	mgr := invapp.NewManager(log, ledger, store, runner, invapp.WithBatchSize(cfg.ReaperBatchSize))
	checkout := checkoutapp.NewService(log, carts, skus, mgr, locker, checkoutapp.Config{
		TTL:               cfg.ReservationTTL,
		CompensatePartial: cfg.CompensatePartial,
	})
	orderSvc := orderapp.NewService(log, orderapp.Deps{
		Tx:           runner,
		Repo:         orders,
		Reservations: mgr,
		Stock:        ledger,
		Skus:         skus,
		Carts:        carts,
		Events:       events,
	})
	reaper := invapp.NewReaper(log, mgr, cfg.ReaperInterval)

	// HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "postgres unreachable")
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1", func(r chi.Router) {
		checkouthttp.NewHandler(log, checkout).Routes(r)
		orderhttp.NewHandler(log, orderSvc, cfg.WebhookSecret).Routes(r)
		invhttp.NewHandler(log, mgr).Routes(r)
	})
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	group := shutdown.NewGroup(log)
	group.Go(ctx, "reaper", reaper.Run)

	// Kafka: outbox relay and payment consumer
	if cfg.KafkaAddr != "" {
		brokers := []string{cfg.KafkaAddr}

		if outboxDB != nil {
			writer := orderkafka.NewWriter(brokers)
			defer writer.Close()
			dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
			relay := outbox.NewRelay(log, outboxDB, dispatch, cfg.ServiceName+"-relay")
			group.Go(ctx, "outbox-relay", relay.Run)
		}

		var idem *idempotency.Store
		if rdb != nil {
			idem = idempotency.NewStore(rdb, 24*time.Hour)
		}
		reader := orderkafka.NewReader(brokers, cfg.PaymentTopic, cfg.PaymentGroup)
		consumer := orderkafka.NewPaymentConsumer(log, reader, orderSvc, idem)
		group.Go(ctx, "payment-consumer", consumer.Run)
	}

	// Run HTTP
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	group.Wait(10 * time.Second)
	if async != nil {
		async.Wait()
	}
	log.Info("reservation-service shutdown complete")
	return nil
}
