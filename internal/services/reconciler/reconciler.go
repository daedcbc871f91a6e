// Package reconciler re-renders QR artifacts whose post-commit write never landed.
package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	ClaimPendingArtifacts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ArtifactJob, error)
	MarkArtifactFailed(ctx context.Context, key string, revision int64, lastError string, nextAttemptAt time.Time) error
}

type Writer interface {
	Write(ctx context.Context, job *models.ArtifactJob, body []byte) error
}

type Reconciler struct {
	repo    Repository
	encoder artifacts.Encoder
	writer  Writer
	metrics *observability.Metrics
	log     *zap.Logger

	backoff *Backoff

	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration

	now       func() time.Time
	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalWritten        atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, enc artifacts.Encoder, w Writer, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		repo: repo, encoder: enc, writer: w, log: log,
		backoff:           NewBackoff(DefaultBackoffConfig()),
		pollInterval:      5 * time.Second,
		batchSize:         50,
		concurrency:       4,
		lease:             2 * time.Minute,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (r *Reconciler) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Reconciler {
	if pollInterval > 0 {
		r.pollInterval = pollInterval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	if lease > 0 {
		r.lease = lease
	}
	return r
}

func (r *Reconciler) WithBackoff(cfg BackoffConfig) *Reconciler {
	r.backoff = NewBackoff(cfg)
	return r
}

func (r *Reconciler) WithMetrics(m *observability.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// Trigger asks for an immediate cycle. It never blocks; triggers coalesce.
func (r *Reconciler) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed  int64      `json:"totalClaimed"`
	TotalWritten  int64      `json:"totalWritten"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (r *Reconciler) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalClaimed: r.totalClaimed.Load(),
		TotalWritten: r.totalWritten.Load(),
		TotalErrors:  r.totalErrors.Load(),
		InFlight:     r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx)
		case <-r.triggerCh:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	now := r.now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())

	jobs, err := r.repo.ClaimPendingArtifacts(ctx, now, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("claim pending artifacts", zap.Error(err))
		r.setLastError(err)
		return
	}
	r.totalClaimed.Add(int64(len(jobs)))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		sem <- struct{}{}
		wg.Add(1)
		r.inFlight.Add(1)
		go func() {
			defer func() {
				r.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := r.processOne(ctx, job); err != nil {
				r.totalErrors.Add(1)
				r.setLastError(err)
				r.log.Error("reconcile artifact", zap.String("key", job.Key), zap.Int64("revision", job.Revision), zap.Error(err))
				return
			}
			r.totalWritten.Add(1)
		}()
	}
	wg.Wait()
}

// processOne renders the stored payload and writes it. On failure the row is pushed
// back with a backoff that grows with its attempt count.
func (r *Reconciler) processOne(ctx context.Context, job *models.ArtifactJob) error {
	body, err := r.encoder.Encode(job.Payload)
	if err == nil {
		err = r.writer.Write(ctx, job, body)
	}
	r.metrics.ArtifactWrite("reconciler", err)
	if err == nil {
		return nil
	}

	next := r.now().UTC().Add(r.backoff.Delay(job.Attempts + 1))
	if markErr := r.repo.MarkArtifactFailed(ctx, job.Key, job.Revision, err.Error(), next); markErr != nil {
		return errors.Wrap(markErr, err.Error())
	}
	return err
}

func (r *Reconciler) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}
