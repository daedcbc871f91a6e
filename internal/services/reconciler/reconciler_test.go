package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/stretchr/testify/require"
)

type failedMark struct {
	key       string
	revision  int64
	lastError string
	next      time.Time
}

type fakeRepo struct {
	mu     sync.Mutex
	calls  int
	jobs   []*models.ArtifactJob
	err    error
	failed []failedMark
}

func (r *fakeRepo) ClaimPendingArtifacts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ArtifactJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := r.jobs
	r.jobs = nil
	return out, nil
}

func (r *fakeRepo) MarkArtifactFailed(ctx context.Context, key string, revision int64, lastError string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, failedMark{key, revision, lastError, next})
	return nil
}

func (r *fakeRepo) claimCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeWriter struct {
	mu      sync.Mutex
	written map[string][]byte
	failKey string
}

func (w *fakeWriter) Write(ctx context.Context, job *models.ArtifactJob, body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job.Key == w.failKey {
		return errors.New("bucket unavailable")
	}
	if w.written == nil {
		w.written = map[string][]byte{}
	}
	w.written[job.Key] = body
	return nil
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty payload")
	}
	return []byte("png:" + payload), nil
}

var fixed = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func newReconciler(repo *fakeRepo, w *fakeWriter) *Reconciler {
	r := New(repo, fakeEncoder{}, w, nil)
	r.now = func() time.Time { return fixed }
	return r
}

func TestReconciler_runOnce_WritesAndBacksOff(t *testing.T) {
	repo := &fakeRepo{jobs: []*models.ArtifactJob{
		{Key: "qrcode_qr_a.png", Revision: 1, Payload: `{"shortId":"qr_a"}`},
		{Key: "qrcode_qr_b.png", Revision: 3, Payload: `{"shortId":"qr_b"}`, Attempts: 1},
		{Key: "loadticket_loadticket_c.png", Revision: 1, Payload: ""},
	}}
	w := &fakeWriter{failKey: "qrcode_qr_b.png"}
	r := newReconciler(repo, w)

	r.runOnce(context.Background())

	require.Equal(t, []byte(`png:{"shortId":"qr_a"}`), w.written["qrcode_qr_a.png"])
	require.Len(t, repo.failed, 2)

	byKey := map[string]failedMark{}
	for _, f := range repo.failed {
		byKey[f.key] = f
	}
	require.Equal(t, int64(3), byKey["qrcode_qr_b.png"].revision)
	require.Equal(t, fixed.Add(2*time.Minute), byKey["qrcode_qr_b.png"].next)
	require.Equal(t, "bucket unavailable", byKey["qrcode_qr_b.png"].lastError)
	require.Equal(t, fixed.Add(30*time.Second), byKey["loadticket_loadticket_c.png"].next)

	st := r.Stats()
	require.Equal(t, int64(3), st.TotalClaimed)
	require.Equal(t, int64(1), st.TotalWritten)
	require.Equal(t, int64(2), st.TotalErrors)
	require.Equal(t, int64(0), st.InFlight)
	require.NotEmpty(t, st.LastError)
	require.NotNil(t, st.LastCycleAt)
}

func TestReconciler_runOnce_ClaimError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	r := newReconciler(repo, &fakeWriter{})

	r.runOnce(context.Background())
	require.Equal(t, "db down", r.Stats().LastError)
	require.Equal(t, int64(0), r.Stats().TotalClaimed)
}

func TestReconciler_WithSettings(t *testing.T) {
	r := New(&fakeRepo{}, fakeEncoder{}, &fakeWriter{}, nil).
		WithSettings(5*time.Second, 7, 9, 11*time.Second)
	require.Equal(t, 5*time.Second, r.pollInterval)
	require.Equal(t, 7, r.batchSize)
	require.Equal(t, 9, r.concurrency)
	require.Equal(t, 11*time.Second, r.lease)

	r.WithSettings(0, 0, 0, 0)
	require.Equal(t, 7, r.batchSize)
}

func TestReconciler_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	r := New(repo, fakeEncoder{}, &fakeWriter{}, nil).WithSettings(5*time.Millisecond, 1, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, repo.claimCalls(), 1)
}

func TestReconciler_TriggerRunsImmediately(t *testing.T) {
	repo := &fakeRepo{}
	r := New(repo, fakeEncoder{}, &fakeWriter{}, nil).WithSettings(time.Hour, 1, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Trigger()
	r.Trigger()
	require.Eventually(t, func() bool { return repo.claimCalls() >= 1 }, time.Second, 5*time.Millisecond)
	require.NotNil(t, r.Stats().LastTriggerAt)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
