package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/HaulTicket/config"
	"github.com/BearBump/HaulTicket/internal/api/tickets_api"
	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/BearBump/HaulTicket/internal/artifacts/artifactstore"
	"github.com/BearBump/HaulTicket/internal/artifacts/qrpng"
	"github.com/BearBump/HaulTicket/internal/broker/events"
	"github.com/BearBump/HaulTicket/internal/broker/kafka"
	"github.com/BearBump/HaulTicket/internal/cache/rediscache"
	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/BearBump/HaulTicket/internal/services/records"
	"github.com/BearBump/HaulTicket/internal/services/tickets"
	"github.com/BearBump/HaulTicket/internal/services/versioning"
	"github.com/BearBump/HaulTicket/internal/storage/pgrecords"
	"go.uber.org/zap"
)

type ticketAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    ticketAPIOpts
	api     *tickets_api.API
	log     *zap.Logger
	closers []func()
}

func mustBootstrapTicketAPI() *ticketAPIApp {
	if err := config.LoadEnv(); err != nil {
		panic(err)
	}
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		swaggerPath = "api/swagger.json"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}
	s := resolveAPISettings(cfg)

	log, err := observability.NewLogger(cfg.HaulTicket.LogLevel)
	if err != nil {
		panic(err)
	}
	metrics := observability.NewMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := &ticketAPIApp{ctx: ctx, cancel: cancel, log: log}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second, log)
	app.closers = append(app.closers, st.Close)

	rdb := rediscache.NewClient(cfg.Redis.Addr())
	app.closers = append(app.closers, func() { _ = rdb.Close() })

	store, err := artifactstore.Open(ctx, cfg.Artifacts)
	if err != nil {
		app.Close()
		panic(fmt.Sprintf("open artifact store: %v", err))
	}
	writer := artifacts.NewWriter(store, st, rediscache.NewLocker(rdb))
	encoder := qrpng.New(cfg.Artifacts.QRSize)

	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	app.closers = append(app.closers, func() { _ = producer.Close() })
	emitter := events.NewEmitter(producer, s.topic, log)

	recordSvc := records.New(st, records.Options{
		Cache:         rediscache.NewFromClient(rdb),
		Engine:        versioning.New(versioning.Policy{SnapshotFirstUpdate: cfg.HaulTicket.SnapshotFirstUpdate}),
		Encoder:       encoder,
		Artifacts:     writer,
		Events:        emitter,
		Metrics:       metrics,
		Logger:        log,
		PublicBaseURL: s.publicBaseURL,
		RecordTTL:     s.recordTTL,
		ListTTL:       s.listTTL,
	})
	ticketSvc := tickets.New(st, tickets.Options{
		Encoder:   encoder,
		Artifacts: writer,
		Events:    emitter,
		Metrics:   metrics,
		Logger:    log,
	})

	app.api = tickets_api.New(recordSvc, ticketSvc, tickets_api.Options{
		Logger:             log,
		Metrics:            metrics,
		ScanLimiter:        rediscache.NewRateLimiterFromClient(rdb, "rl:scan"),
		ScanLimitPerMinute: int64(cfg.HaulTicket.ScanRateLimitPerMinute),
		SwaggerPath:        swaggerPath,
		Health:             st.Ping,
	})
	app.opts = ticketAPIOpts{httpAddr: s.httpAddr, swaggerPath: swaggerPath}

	log.Info("ticket-api bootstrapped",
		zap.String("artifacts_driver", string(store.Driver())),
		zap.String("topic", s.topic),
		zap.Bool("snapshot_first_update", cfg.HaulTicket.SnapshotFirstUpdate))
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration, log *zap.Logger) *pgrecords.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgrecords.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		log.Warn("postgres not ready, retrying", zap.Error(err))
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *ticketAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *ticketAPIApp) Run() error {
	return runTicketAPI(a.ctx, a.opts, a.api.Routes(), a.log)
}
