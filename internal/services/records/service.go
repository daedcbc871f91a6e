// Package records runs the truck certificate lifecycle: create, update, scan and listing.
package records

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/BearBump/HaulTicket/internal/broker/messages"
	"github.com/BearBump/HaulTicket/internal/cache"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/BearBump/HaulTicket/internal/services/versioning"
	"github.com/BearBump/HaulTicket/internal/storage/pgrecords"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	CreateRecord(ctx context.Context, in pgrecords.RecordCreate) (*models.TrackingRecord, error)
	GetRecord(ctx context.Context, shortID string) (*models.TrackingRecord, error)
	UpdateRecord(ctx context.Context, shortID string, fn pgrecords.UpdateFunc) (*models.TrackingRecord, error)
	IncrementScan(ctx context.Context, shortID string) (*models.TrackingRecord, error)
	ListRecords(ctx context.Context) ([]*models.TrackingRecord, error)
	ListHistory(ctx context.Context, shortID string, limit, offset int) ([]*models.HistoryEntry, error)
}

// ArtifactWriter stores committed QR images.
type ArtifactWriter interface {
	Locate(key string) string
	Write(ctx context.Context, job *models.ArtifactJob, body []byte) error
}

type EventEmitter interface {
	Emit(ctx context.Context, ev messages.TicketEvent)
}

type Options struct {
	Cache     cache.BytesCache
	Engine    *versioning.Engine
	Encoder   artifacts.Encoder
	Artifacts ArtifactWriter
	Events    EventEmitter
	Metrics   *observability.Metrics
	Logger    *zap.Logger

	PublicBaseURL string
	RecordTTL     time.Duration
	ListTTL       time.Duration

	Now func() time.Time
}

type Service struct {
	repo      Repository
	cache     cache.BytesCache
	engine    *versioning.Engine
	encoder   artifacts.Encoder
	artifacts ArtifactWriter
	events    EventEmitter
	metrics   *observability.Metrics
	log       *zap.Logger

	baseURL   string
	recordTTL time.Duration
	listTTL   time.Duration
	now       func() time.Time
}

func New(repo Repository, opts Options) *Service {
	s := &Service{
		repo:      repo,
		cache:     opts.Cache,
		engine:    opts.Engine,
		encoder:   opts.Encoder,
		artifacts: opts.Artifacts,
		events:    opts.Events,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		baseURL:   strings.TrimRight(opts.PublicBaseURL, "/"),
		recordTTL: opts.RecordTTL,
		listTTL:   opts.ListTTL,
		now:       opts.Now,
	}
	if s.engine == nil {
		s.engine = versioning.New(versioning.Policy{})
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Created is the outcome of CreateRecord.
type Created struct {
	Record          *models.TrackingRecord
	Payload         Payload
	Image           []byte
	ArtifactPending bool
}

// Updated is the outcome of UpdateRecord. Unchanged means nothing was written.
type Updated struct {
	Record          *models.TrackingRecord
	Unchanged       bool
	ChangedFields   []string
	Version         int
	ArtifactPending bool
}

// CreateRecord inserts a record with its INSERT history row and QR outbox entry in one
// transaction. The image is rendered before commit and stored after it.
func (s *Service) CreateRecord(ctx context.Context, p *models.RecordPatch) (*Created, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}

	now := s.clock()
	rec := &models.TrackingRecord{
		ID:        uuid.NewString(),
		ShortID:   "qr_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	versioning.Apply(rec, p)
	if rec.Color == nil {
		rec.Color = []string{}
	}
	if rec.Meta == nil {
		rec.Meta = map[string]any{}
	}
	rec.URL = s.publicURL(rec.ShortID)

	key := artifacts.RecordKey(rec.ShortID)
	rec.QRImagePath = s.artifacts.Locate(key)

	payload := payloadOf(rec)
	encoded, img, err := artifacts.Render(s.encoder, payload)
	if err != nil {
		return nil, err
	}
	job := &models.ArtifactJob{
		Key:          key,
		OwnerShortID: rec.ShortID,
		ContentType:  artifacts.ContentTypePNG,
		Payload:      encoded,
	}

	saved, err := s.repo.CreateRecord(ctx, pgrecords.RecordCreate{
		Record:   rec,
		History:  versioning.Initial(rec, p.UpdatedBy),
		Artifact: job,
	})
	if err != nil {
		return nil, err
	}
	saved.URL = rec.URL

	pending := !s.writeArtifact(ctx, job, img)

	s.cacheRecord(ctx, saved)
	s.invalidateList(ctx)

	s.emit(ctx, messages.TicketEvent{
		Type:            messages.TypeRecordCreated,
		ShortID:         saved.ShortID,
		Version:         1,
		ArtifactKey:     key,
		ArtifactPending: pending,
	})

	return &Created{Record: saved, Payload: payload, Image: img, ArtifactPending: pending}, nil
}

// UpdateRecord applies a partial update under the row lock. The QR image is regenerated
// only when a field it encodes changed.
func (s *Service) UpdateRecord(ctx context.Context, shortID string, p *models.RecordPatch) (*Updated, error) {
	if strings.TrimSpace(shortID) == "" {
		return nil, apperr.Validation("id is required", nil)
	}
	if p == nil {
		p = &models.RecordPatch{}
	}

	var (
		before *models.TrackingRecord
		plan   *versioning.Plan
		job    *models.ArtifactJob
		img    []byte
	)
	updated, err := s.repo.UpdateRecord(ctx, shortID, func(cur *models.TrackingRecord, stats models.HistoryStats) (*pgrecords.RecordMutation, error) {
		before = cur
		pl, err := s.engine.Plan(cur, stats, p, s.clock())
		if err != nil {
			return nil, err
		}
		plan = pl

		mut := &pgrecords.RecordMutation{Next: pl.Next, Snapshot: pl.Snapshot}
		if touchesPayload(pl.Changed) {
			pl.Next.URL = s.publicURL(pl.Next.ShortID)
			encoded, body, err := artifacts.Render(s.encoder, payloadOf(pl.Next))
			if err != nil {
				return nil, err
			}
			job = &models.ArtifactJob{
				Key:          artifacts.RecordKey(pl.Next.ShortID),
				OwnerShortID: pl.Next.ShortID,
				ContentType:  artifacts.ContentTypePNG,
				Payload:      encoded,
			}
			img = body
			mut.Artifact = job
		}
		return mut, nil
	})
	if errors.Is(err, apperr.ErrUnchanged) && before != nil {
		s.metrics.Update("unchanged")
		before.URL = s.publicURL(before.ShortID)
		return &Updated{Record: before, Unchanged: true}, nil
	}
	if err != nil {
		s.metrics.Update("error")
		return nil, err
	}
	s.metrics.Update("ok")
	updated.URL = s.publicURL(updated.ShortID)

	pending := false
	if job != nil {
		pending = !s.writeArtifact(ctx, job, img)
	}

	s.cacheRecord(ctx, updated)
	s.invalidateList(ctx)

	out := &Updated{Record: updated, ChangedFields: plan.Changed, ArtifactPending: pending}
	if plan.Snapshot != nil {
		out.Version = plan.Snapshot.Version
	}

	ev := messages.TicketEvent{
		Type:            messages.TypeRecordUpdated,
		ShortID:         updated.ShortID,
		Version:         out.Version,
		ChangedFields:   plan.Changed,
		ArtifactPending: pending,
	}
	if job != nil {
		ev.ArtifactKey = job.Key
	}
	s.emit(ctx, ev)

	return out, nil
}

// Scan serves one QR scan: cache-first lookup, expiry gate, atomic counter bump, re-cache.
// Expired records are neither counted nor cached.
func (s *Service) Scan(ctx context.Context, shortID string) (*models.TrackingRecord, error) {
	if strings.TrimSpace(shortID) == "" {
		return nil, apperr.Validation("id is required", nil)
	}

	rec := s.cachedRecord(ctx, shortID)
	if rec == nil {
		var err error
		rec, err = s.repo.GetRecord(ctx, shortID)
		if err != nil {
			s.metrics.Scan(scanResult(err))
			return nil, err
		}
	}

	if rec.Expired(s.clock()) {
		s.metrics.Scan("expired")
		return nil, apperr.Expired("record has expired")
	}

	counted, err := s.repo.IncrementScan(ctx, shortID)
	if err != nil {
		s.metrics.Scan(scanResult(err))
		return nil, err
	}
	counted.URL = s.publicURL(counted.ShortID)
	s.cacheRecord(ctx, counted)
	s.metrics.Scan("ok")

	s.emit(ctx, messages.TicketEvent{
		Type:      messages.TypeRecordScanned,
		ShortID:   counted.ShortID,
		ScanCount: counted.ScanCount,
	})
	return counted, nil
}

// ListRecords returns summaries newest first, served from the list cache when warm.
func (s *Service) ListRecords(ctx context.Context) ([]models.RecordSummary, error) {
	if s.listCacheEnabled() {
		b, ok, err := s.cache.Get(ctx, cache.RecordsListKey)
		if err != nil {
			s.log.Warn("records list cache get", zap.Error(err))
		}
		if ok {
			var out []models.RecordSummary
			if json.Unmarshal(b, &out) == nil {
				s.metrics.CacheLookup("list", true)
				return out, nil
			}
		}
		s.metrics.CacheLookup("list", false)
	}

	recs, err := s.repo.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.RecordSummary, 0, len(recs))
	for _, r := range recs {
		r.URL = s.publicURL(r.ShortID)
		out = append(out, r.Summary())
	}

	if s.listCacheEnabled() {
		b, _ := json.Marshal(out)
		if err := s.cache.Set(ctx, cache.RecordsListKey, b, s.listTTL); err != nil {
			s.log.Warn("records list cache set", zap.Error(err))
		}
	}
	return out, nil
}

// History lists the snapshots of one record by version. It is not a scan.
func (s *Service) History(ctx context.Context, shortID string, limit, offset int) ([]*models.HistoryEntry, error) {
	if strings.TrimSpace(shortID) == "" {
		return nil, apperr.Validation("id is required", nil)
	}
	return s.repo.ListHistory(ctx, shortID, limit, offset)
}

func validateCreate(p *models.RecordPatch) error {
	if p == nil {
		p = &models.RecordPatch{}
	}
	var missing []string
	if strings.TrimSpace(p.DriverName.Value) == "" {
		missing = append(missing, "driverName")
	}
	if strings.TrimSpace(p.TruckNumber.Value) == "" {
		missing = append(missing, "truckNumber")
	}
	if strings.TrimSpace(p.DriverLicenseNumber.Value) == "" {
		missing = append(missing, "driverLicenseNumber")
	}
	if len(missing) > 0 {
		return apperr.Validation("driverName, truckNumber, and driverLicenseNumber are required",
			map[string]any{"missing": missing})
	}
	return nil
}

// writeArtifact stores the image after commit. A failure leaves the outbox row pending
// for the worker and reports false.
func (s *Service) writeArtifact(ctx context.Context, job *models.ArtifactJob, img []byte) bool {
	err := s.artifacts.Write(ctx, job, img)
	s.metrics.ArtifactWrite("inline", err)
	if err != nil {
		s.log.Error("write artifact after commit",
			zap.String("key", job.Key), zap.Int64("revision", job.Revision), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) cachedRecord(ctx context.Context, shortID string) *models.TrackingRecord {
	if !s.recordCacheEnabled() {
		return nil
	}
	b, ok, err := s.cache.Get(ctx, cache.RecordKey(shortID))
	if err != nil {
		s.log.Warn("record cache get", zap.String("short_id", shortID), zap.Error(err))
	}
	if !ok {
		s.metrics.CacheLookup("record", false)
		return nil
	}
	var rec models.TrackingRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		s.metrics.CacheLookup("record", false)
		return nil
	}
	s.metrics.CacheLookup("record", true)
	return &rec
}

func (s *Service) cacheRecord(ctx context.Context, rec *models.TrackingRecord) {
	if !s.recordCacheEnabled() {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn("marshal record for cache", zap.String("short_id", rec.ShortID), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cache.RecordKey(rec.ShortID), b, s.recordTTL); err != nil {
		s.log.Warn("record cache set", zap.String("short_id", rec.ShortID), zap.Error(err))
	}
}

func (s *Service) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.RecordsListKey); err != nil {
		s.log.Warn("records list cache delete", zap.Error(err))
	}
}

func (s *Service) recordCacheEnabled() bool {
	return s.cache != nil && s.recordTTL > 0
}

func (s *Service) listCacheEnabled() bool {
	return s.cache != nil && s.listTTL > 0
}

func (s *Service) emit(ctx context.Context, ev messages.TicketEvent) {
	if s.events == nil {
		return
	}
	ev.At = s.clock()
	s.events.Emit(ctx, ev)
}

func (s *Service) publicURL(shortID string) string {
	if s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/api/info/" + shortID
}

// clock is now in UTC at the precision Postgres keeps.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func scanResult(err error) string {
	if apperr.Is(err, apperr.CodeNotFound) {
		return "not_found"
	}
	return "error"
}
