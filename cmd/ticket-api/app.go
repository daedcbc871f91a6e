package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/HaulTicket/config"
	"go.uber.org/zap"
)

type ticketAPIOpts struct {
	httpAddr    string
	swaggerPath string

	onListen func(httpAddr string)
}

// apiSettings are the config values the api needs after defaults are applied.
type apiSettings struct {
	httpAddr      string
	publicBaseURL string
	topic         string
	recordTTL     time.Duration
	listTTL       time.Duration
}

func resolveAPISettings(cfg *config.Config) apiSettings {
	s := apiSettings{
		httpAddr:      cfg.HaulTicket.HTTPAddr,
		publicBaseURL: cfg.HaulTicket.PublicBaseURL,
		topic:         cfg.Kafka.TicketEventsTopicName,
		recordTTL:     time.Duration(cfg.HaulTicket.RecordTTLSeconds) * time.Second,
		listTTL:       time.Duration(cfg.HaulTicket.ListTTLSeconds) * time.Second,
	}
	if s.httpAddr == "" {
		s.httpAddr = ":8080"
	}
	if s.publicBaseURL == "" {
		s.publicBaseURL = "http://localhost:8080"
	}
	if s.topic == "" {
		s.topic = "ticket.events"
	}
	if s.recordTTL <= 0 {
		s.recordTTL = time.Hour
	}
	if s.listTTL <= 0 {
		s.listTTL = time.Hour
	}
	return s
}

func runTicketAPI(ctx context.Context, opts ticketAPIOpts, handler http.Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
