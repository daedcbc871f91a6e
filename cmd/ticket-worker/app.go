package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/HaulTicket/config"
	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/BearBump/HaulTicket/internal/artifacts/artifactstore"
	"github.com/BearBump/HaulTicket/internal/artifacts/qrpng"
	"github.com/BearBump/HaulTicket/internal/broker/kafka"
	"github.com/BearBump/HaulTicket/internal/broker/messages"
	"github.com/BearBump/HaulTicket/internal/cache/rediscache"
	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/BearBump/HaulTicket/internal/services/reconciler"
	"github.com/BearBump/HaulTicket/internal/storage/pgrecords"
	"go.uber.org/zap"
)

// workerRepo is the outbox surface the worker needs: claiming for the reconciler and
// revision tracking for the artifact writer.
type workerRepo interface {
	reconciler.Repository
	artifacts.Tracker
}

type eventConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo workerRepo, closeFn func(), err error)
	newArtifactStore func(ctx context.Context, cfg *config.Config) (artifacts.Store, error)
	newLocker        func(cfg *config.Config) (locker artifacts.Locker, closeFn func())
	newConsumer      func(cfg *config.Config) eventConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerRepo, func(), error) {
			st, err := pgrecords.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newArtifactStore: func(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
			return artifactstore.Open(ctx, cfg.Artifacts)
		},
		newLocker: func(cfg *config.Config) (artifacts.Locker, func()) {
			rdb := rediscache.NewClient(cfg.Redis.Addr())
			return rediscache.NewLocker(rdb), func() { _ = rdb.Close() }
		},
		newConsumer: func(cfg *config.Config) eventConsumer {
			topic := cfg.Kafka.TicketEventsTopicName
			if topic == "" {
				topic = "ticket.events"
			}
			group := cfg.Kafka.WorkerConsumerGroup
			if group == "" {
				group = "ticket-worker"
			}
			return kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
		},
	}
}

type workerSettings struct {
	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration
	httpAddr     string
	backoff      reconciler.BackoffConfig
}

func resolveWorkerSettings(cfg *config.Config) workerSettings {
	h := cfg.HaulTicket
	s := workerSettings{
		pollInterval: time.Duration(h.WorkerPollIntervalSeconds) * time.Second,
		batchSize:    h.WorkerBatchSize,
		concurrency:  h.WorkerConcurrency,
		lease:        time.Duration(h.WorkerLeaseSeconds) * time.Second,
		httpAddr:     h.WorkerHTTPAddr,
		backoff: reconciler.BackoffConfig{
			Step1: time.Duration(h.WorkerBackoff1Seconds) * time.Second,
			Step2: time.Duration(h.WorkerBackoff2Seconds) * time.Second,
			Step3: time.Duration(h.WorkerBackoff3Seconds) * time.Second,
			Step4: time.Duration(h.WorkerBackoff4Seconds) * time.Second,
		},
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 5 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 50
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.lease <= 0 {
		s.lease = 2 * time.Minute
	}
	if s.httpAddr == "" {
		s.httpAddr = ":8082"
	}
	return s
}

type workerRunOpts struct {
	swaggerPath string
	onListen    func(httpAddr string)
	log         *zap.Logger
	metrics     *observability.Metrics
}

// RunTicketWorker runs the artifact reconciler, the event consumer that triggers it and the
// side HTTP port until ctx is done or one of them fails.
func RunTicketWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerRunOpts) error {
	log := opts.log
	if log == nil {
		log = zap.NewNop()
	}
	s := resolveWorkerSettings(cfg)

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	store, err := f.newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}
	locker, closeLocker := f.newLocker(cfg)
	if closeLocker != nil {
		defer closeLocker()
	}

	rec := reconciler.New(repo, qrpng.New(cfg.Artifacts.QRSize), artifacts.NewWriter(store, repo, locker), log).
		WithSettings(s.pollInterval, s.batchSize, s.concurrency, s.lease).
		WithBackoff(s.backoff).
		WithMetrics(opts.metrics)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if consumer := f.newConsumer(cfg); consumer != nil {
		defer func() { _ = consumer.Close() }()
		go func() {
			log.Info("kafka consumer started", zap.String("topic", cfg.Kafka.TicketEventsTopicName))
			if err := consumer.Consume(runCtx, handleTicketEvent(rec, log)); err != nil && runCtx.Err() == nil {
				log.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(runCtx, workerHTTPOpts{
			httpAddr:    s.httpAddr,
			swaggerPath: opts.swaggerPath,
			onListen:    opts.onListen,
			reconciler:  rec,
			settings:    s,
			metrics:     opts.metrics,
		})
	}()

	recErr := make(chan error, 1)
	go func() { recErr <- rec.Run(runCtx) }()

	log.Info("ticket-worker started",
		zap.Duration("poll_interval", s.pollInterval),
		zap.Int("batch_size", s.batchSize),
		zap.Int("concurrency", s.concurrency),
		zap.String("artifacts_driver", string(store.Driver())))

	select {
	case err := <-recErr:
		return err
	case err := <-httpErr:
		if err == nil {
			err = ctx.Err()
		}
		return err
	}
}

type triggerer interface {
	Trigger()
}

// handleTicketEvent wakes the reconciler for events whose artifact write is still pending.
// Undecodable messages are logged and committed so they cannot stall the partition.
func handleTicketEvent(t triggerer, log *zap.Logger) func(key, value []byte) error {
	return func(key, value []byte) error {
		var ev messages.TicketEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			log.Warn("skip undecodable ticket event", zap.ByteString("key", key), zap.Error(err))
			return nil
		}
		if ev.ArtifactPending {
			log.Info("artifact pending, triggering reconcile", zap.String("type", ev.Type), zap.String("short_id", ev.ShortID))
			t.Trigger()
		}
		return nil
	}
}
