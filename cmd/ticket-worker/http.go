package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/BearBump/HaulTicket/internal/services/reconciler"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type reconcilerControl interface {
	Stats() reconciler.Stats
	Trigger()
}

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	reconciler reconcilerControl
	settings   workerSettings
	metrics    *observability.Metrics
}

func workerRoutes(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.reconciler == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reconciler not wired"})
			return
		}
		writeJSON(w, http.StatusOK, opts.reconciler.Stats())
	})

	// Operational settings only; no credentials.
	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		s := opts.settings
		writeJSON(w, http.StatusOK, map[string]any{
			"pollIntervalSeconds": int(s.pollInterval / time.Second),
			"batchSize":           s.batchSize,
			"concurrency":         s.concurrency,
			"leaseSeconds":        int(s.lease / time.Second),
			"backoffSeconds": []int{
				int(s.backoff.Step1 / time.Second),
				int(s.backoff.Step2 / time.Second),
				int(s.backoff.Step3 / time.Second),
				int(s.backoff.Step4 / time.Second),
			},
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.reconciler == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reconciler not wired"})
			return
		}
		opts.reconciler.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
	})

	r.Method(http.MethodGet, "/metrics", opts.metrics.Handler())

	if opts.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
		}
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: workerRoutes(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
