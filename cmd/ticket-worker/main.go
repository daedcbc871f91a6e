package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/HaulTicket/config"
	"github.com/BearBump/HaulTicket/internal/observability"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		panic(err)
	}
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}
	log, err := observability.NewLogger(cfg.HaulTicket.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	swaggerPath := os.Getenv("workerSwaggerPath")
	if swaggerPath == "" {
		swaggerPath = "api/worker.swagger.json"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunTicketWorker(ctx, cfg, defaultWorkerFactories(), workerRunOpts{
		swaggerPath: swaggerPath,
		log:         log,
		metrics:     observability.NewMetrics(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
