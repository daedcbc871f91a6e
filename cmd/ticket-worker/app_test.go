package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/HaulTicket/config"
	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/BearBump/HaulTicket/internal/artifacts/fsstore"
	"github.com/BearBump/HaulTicket/internal/broker/messages"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/BearBump/HaulTicket/internal/services/reconciler"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu      sync.Mutex
	pending []*models.ArtifactJob
	done    chan string
}

func (r *fakeRepo) ClaimPendingArtifacts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ArtifactJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out, nil
}

func (r *fakeRepo) MarkArtifactFailed(ctx context.Context, key string, revision int64, lastError string, nextAttemptAt time.Time) error {
	return nil
}

func (r *fakeRepo) ArtifactRevision(ctx context.Context, key string) (int64, error) {
	return 1, nil
}

func (r *fakeRepo) MarkArtifactDone(ctx context.Context, key string, revision int64) error {
	if r.done != nil {
		r.done <- key
	}
	return nil
}

type fakeConsumer struct {
	messages [][]byte
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, m := range c.messages {
		if err := handler(nil, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConsumer) Close() error { return nil }

func testFactories(t *testing.T, repo *fakeRepo, cons eventConsumer, closed *bool) (workerFactories, string) {
	t.Helper()
	dir := t.TempDir()
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerRepo, func(), error) {
			return repo, func() { *closed = true }, nil
		},
		newArtifactStore: func(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
			return fsstore.New(dir)
		},
		newLocker: func(cfg *config.Config) (artifacts.Locker, func()) {
			return nil, nil
		},
		newConsumer: func(cfg *config.Config) eventConsumer {
			return cons
		},
	}, dir
}

func TestResolveWorkerSettings_Defaults(t *testing.T) {
	s := resolveWorkerSettings(&config.Config{})
	require.Equal(t, 5*time.Second, s.pollInterval)
	require.Equal(t, 50, s.batchSize)
	require.Equal(t, 4, s.concurrency)
	require.Equal(t, 2*time.Minute, s.lease)
	require.Equal(t, ":8082", s.httpAddr)
	require.Zero(t, s.backoff.Step1)
}

func TestResolveWorkerSettings_Overrides(t *testing.T) {
	s := resolveWorkerSettings(&config.Config{HaulTicket: config.HaulTicketConfig{
		WorkerPollIntervalSeconds: 1,
		WorkerBatchSize:           10,
		WorkerConcurrency:         2,
		WorkerLeaseSeconds:        30,
		WorkerHTTPAddr:            "127.0.0.1:0",
		WorkerBackoff1Seconds:     5,
	}})
	require.Equal(t, time.Second, s.pollInterval)
	require.Equal(t, 10, s.batchSize)
	require.Equal(t, 2, s.concurrency)
	require.Equal(t, 30*time.Second, s.lease)
	require.Equal(t, "127.0.0.1:0", s.httpAddr)
	require.Equal(t, 5*time.Second, s.backoff.Step1)
}

func TestRunTicketWorker_ContextCanceled(t *testing.T) {
	closed := false
	f, _ := testFactories(t, &fakeRepo{}, &fakeConsumer{}, &closed)
	cfg := &config.Config{HaulTicket: config.HaulTicketConfig{WorkerPollIntervalSeconds: 1, WorkerHTTPAddr: "127.0.0.1:0"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunTicketWorker(ctx, cfg, f, workerRunOpts{})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, closed)
}

func TestRunTicketWorker_PendingEventWritesArtifact(t *testing.T) {
	repo := &fakeRepo{
		pending: []*models.ArtifactJob{{Key: "qrcode_qr_1.png", Payload: `{"shortId":"qr_1"}`, Revision: 1}},
		done:    make(chan string, 1),
	}
	ev, err := json.Marshal(messages.TicketEvent{Type: messages.TypeRecordCreated, ShortID: "qr_1", ArtifactPending: true})
	require.NoError(t, err)

	closed := false
	f, dir := testFactories(t, repo, &fakeConsumer{messages: [][]byte{[]byte("not json"), ev}}, &closed)
	cfg := &config.Config{HaulTicket: config.HaulTicketConfig{WorkerPollIntervalSeconds: 60, WorkerHTTPAddr: "127.0.0.1:0"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- RunTicketWorker(ctx, cfg, f, workerRunOpts{log: zap.NewNop()}) }()

	select {
	case key := <-repo.done:
		require.Equal(t, "qrcode_qr_1.png", key)
	case <-time.After(3 * time.Second):
		t.Fatal("pending artifact was not reconciled")
	}

	st, err := fsstore.New(dir)
	require.NoError(t, err)
	body, err := st.Get(context.Background(), "qrcode_qr_1.png")
	require.NoError(t, err)
	require.NotEmpty(t, body)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.True(t, closed)
}

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

func TestHandleTicketEvent(t *testing.T) {
	tr := &countingTrigger{}
	h := handleTicketEvent(tr, zap.NewNop())

	pending, _ := json.Marshal(messages.TicketEvent{Type: messages.TypeRecordUpdated, ArtifactPending: true})
	settled, _ := json.Marshal(messages.TicketEvent{Type: messages.TypeRecordScanned})

	require.NoError(t, h([]byte("qr_1"), pending))
	require.NoError(t, h([]byte("qr_1"), settled))
	require.NoError(t, h([]byte("qr_1"), []byte("{")))
	require.Equal(t, 1, tr.n)
}

type fakeControl struct{ triggered int }

func (c *fakeControl) Stats() reconciler.Stats { return reconciler.Stats{TotalWritten: 3} }
func (c *fakeControl) Trigger()                { c.triggered++ }

func TestWorkerRoutes(t *testing.T) {
	ctl := &fakeControl{}
	h := workerRoutes(workerHTTPOpts{
		reconciler: ctl,
		settings:   resolveWorkerSettings(&config.Config{}),
		metrics:    observability.NewMetrics(),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"totalWritten":3`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, ctl.triggered)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"batchSize":50`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWorkerRoutes_ReconcilerNotWired(t *testing.T) {
	h := workerRoutes(workerHTTPOpts{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
