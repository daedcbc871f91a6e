package artifacts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (m *memStore) Driver() Driver { return "mem" }

func (m *memStore) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.objs[key] = body
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *memStore) Locate(key string) string { return "mem://" + key }

type fakeTracker struct {
	revisions map[string]int64
	done      map[string]int64
}

func (f *fakeTracker) ArtifactRevision(_ context.Context, key string) (int64, error) {
	return f.revisions[key], nil
}

func (f *fakeTracker) MarkArtifactDone(_ context.Context, key string, revision int64) error {
	f.done[key] = revision
	return nil
}

type countingLocker struct {
	keys []string
	err  error
}

func (l *countingLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() {}, nil
}

func newFixture() (*memStore, *fakeTracker, *countingLocker) {
	return &memStore{objs: map[string][]byte{}},
		&fakeTracker{revisions: map[string]int64{}, done: map[string]int64{}},
		&countingLocker{}
}

func TestWriter_WritesAndMarksDone(t *testing.T) {
	st, tr, lk := newFixture()
	tr.revisions["qrcode_qr_1.png"] = 2
	w := NewWriter(st, tr, lk)

	job := &models.ArtifactJob{Key: "qrcode_qr_1.png", Revision: 2}
	require.NoError(t, w.Write(context.Background(), job, []byte("png")))

	require.Equal(t, []byte("png"), st.objs["qrcode_qr_1.png"])
	require.Equal(t, int64(2), tr.done["qrcode_qr_1.png"])
	require.Equal(t, []string{"lock:artifact:qrcode_qr_1.png"}, lk.keys)
}

func TestWriter_SkipsSupersededRevision(t *testing.T) {
	st, tr, lk := newFixture()
	tr.revisions["k.png"] = 3
	w := NewWriter(st, tr, lk)

	require.NoError(t, w.Write(context.Background(), &models.ArtifactJob{Key: "k.png", Revision: 2}, []byte("old")))
	require.Empty(t, st.objs)
	require.Empty(t, tr.done)
}

func TestWriter_Errors(t *testing.T) {
	st, tr, lk := newFixture()
	st.err = errors.New("disk full")
	w := NewWriter(st, tr, nil)

	err := w.Write(context.Background(), &models.ArtifactJob{Key: "k.png", Revision: 1}, []byte("x"))
	require.ErrorIs(t, err, st.err)
	require.Empty(t, tr.done)

	lk.err = errors.New("busy")
	w = NewWriter(st, tr, lk)
	err = w.Write(context.Background(), &models.ArtifactJob{Key: "k.png", Revision: 1}, []byte("x"))
	require.ErrorIs(t, err, lk.err)
}

type fakeEncoder struct{ err error }

func (f fakeEncoder) Encode(payload string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png:" + payload), nil
}

func TestRender(t *testing.T) {
	payload, img, err := Render(fakeEncoder{}, map[string]string{"shortId": "qr_1"})
	require.NoError(t, err)
	require.Equal(t, `{"shortId":"qr_1"}`, payload)
	require.Equal(t, []byte(`png:{"shortId":"qr_1"}`), img)

	_, _, err = Render(fakeEncoder{err: errors.New("too long")}, map[string]string{})
	require.True(t, apperr.Is(err, apperr.CodeEncoding))
}

func TestKeys(t *testing.T) {
	require.Equal(t, "qrcode_qr_1.png", RecordKey("qr_1"))
	require.Equal(t, "loadticket_loadticket_9.png", LoadTicketKey("loadticket_9"))
}
