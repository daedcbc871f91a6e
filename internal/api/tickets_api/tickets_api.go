// Package tickets_api is the HTTP surface of the ticket service.
package tickets_api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/BearBump/HaulTicket/internal/services/records"
	"github.com/BearBump/HaulTicket/internal/services/tickets"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type RecordService interface {
	CreateRecord(ctx context.Context, p *models.RecordPatch) (*records.Created, error)
	UpdateRecord(ctx context.Context, shortID string, p *models.RecordPatch) (*records.Updated, error)
	Scan(ctx context.Context, shortID string) (*models.TrackingRecord, error)
	ListRecords(ctx context.Context) ([]models.RecordSummary, error)
	History(ctx context.Context, shortID string, limit, offset int) ([]*models.HistoryEntry, error)
}

type TicketService interface {
	CreateLoadTicket(ctx context.Context, in *tickets.LoadTicketInput) (*tickets.LoadCreated, error)
	CreateDisposalTicket(ctx context.Context, in *tickets.DisposalTicketInput) (*tickets.DisposalCreated, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, subject string, limit int64, window time.Duration) (bool, time.Duration, error)
}

type Options struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// ScanLimiter caps scans per client per minute when ScanLimitPerMinute > 0.
	ScanLimiter        RateLimiter
	ScanLimitPerMinute int64

	SwaggerPath string
	Health      func(ctx context.Context) error
}

type API struct {
	records RecordService
	tickets TicketService
	opts    Options
	log     *zap.Logger
}

func New(rs RecordService, ts TicketService, opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &API{records: rs, tickets: ts, opts: opts, log: log}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.accessLog)

	r.Get("/healthz", a.healthz)
	r.Method(http.MethodGet, "/metrics", a.opts.Metrics.Handler())

	if a.opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, a.opts.SwaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	}

	r.Post("/api/generate", a.generateRecord)
	r.With(a.scanLimit).Get("/api/info/{id}", a.scanRecord)
	r.Put("/api/info/{id}", a.updateRecord)
	r.Get("/api/info/{id}/history", a.recordHistory)
	r.Get("/records", a.listRecords)
	r.Post("/api/generateloadticket", a.generateLoadTicket)
	r.Post("/api/generatedisposalticket", a.generateDisposalTicket)

	return r
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if a.opts.Health != nil {
		if err := a.opts.Health(r.Context()); err != nil {
			a.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) generateRecord(w http.ResponseWriter, r *http.Request) {
	var p models.RecordPatch
	if err := decodeBody(r, &p); err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.records.CreateRecord(r.Context(), &p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "QR generated successfully",
		"qrData":  out.Payload,
		"base64":  base64.StdEncoding.EncodeToString(out.Image),
		"shortId": out.Record.ShortID,
	})
}

func (a *API) scanRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := a.records.Scan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) updateRecord(w http.ResponseWriter, r *http.Request) {
	var p models.RecordPatch
	if err := decodeBody(r, &p); err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.records.UpdateRecord(r.Context(), chi.URLParam(r, "id"), &p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if out.Unchanged {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "No changes detected. Record unchanged.",
			"record":  out.Record,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "QR record updated successfully",
		"record":        out.Record,
		"changedFields": out.ChangedFields,
	})
}

func (a *API) recordHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.records.History(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	out, err := a.records.ListRecords(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) generateLoadTicket(w http.ResponseWriter, r *http.Request) {
	var in tickets.LoadTicketInput
	if err := decodeBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.tickets.CreateLoadTicket(r.Context(), &in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Load ticket QR generated successfully",
		"qrData":       out.Payload,
		"base64":       base64.StdEncoding.EncodeToString(out.Image),
		"shortId":      out.Ticket.ShortID,
		"ticketRecord": out.Ticket,
	})
}

func (a *API) generateDisposalTicket(w http.ResponseWriter, r *http.Request) {
	var in tickets.DisposalTicketInput
	if err := decodeBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.tickets.CreateDisposalTicket(r.Context(), &in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "Disposal ticket generated successfully",
		"disposalRecord":    out.Ticket,
		"loadTicketDetails": out.Details,
	})
}

// decodeBody reads one JSON object. An empty body decodes as {}.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return apperr.Validation("request body must be a JSON object", nil)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation(name+" must be a non-negative integer", nil)
	}
	return n, nil
}
