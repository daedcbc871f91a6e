package artifacts

import (
	"context"
	"time"

	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/pkg/errors"
)

// Tracker is the outbox side of an artifact write.
type Tracker interface {
	ArtifactRevision(ctx context.Context, key string) (int64, error)
	MarkArtifactDone(ctx context.Context, key string, revision int64) error
}

type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Writer puts committed artifacts into the store, one writer per key at a time.
type Writer struct {
	store   Store
	tracker Tracker
	locker  Locker
	lockTTL time.Duration
}

// NewWriter builds a Writer. locker may be nil for single-process setups.
func NewWriter(store Store, tracker Tracker, locker Locker) *Writer {
	return &Writer{store: store, tracker: tracker, locker: locker, lockTTL: 30 * time.Second}
}

// Write stores body for job and marks the outbox row done. A job superseded by a
// newer revision of the same key is dropped without touching the store.
func (w *Writer) Write(ctx context.Context, job *models.ArtifactJob, body []byte) error {
	if w.locker != nil {
		release, err := w.locker.Lock(ctx, "lock:artifact:"+job.Key, w.lockTTL)
		if err != nil {
			return errors.Wrap(err, "lock artifact")
		}
		defer release()
	}

	latest, err := w.tracker.ArtifactRevision(ctx, job.Key)
	if err != nil {
		return err
	}
	if latest > job.Revision {
		return nil
	}

	contentType := job.ContentType
	if contentType == "" {
		contentType = ContentTypePNG
	}
	if err := w.store.Put(ctx, job.Key, body, contentType); err != nil {
		return errors.Wrap(err, "put artifact")
	}
	return w.tracker.MarkArtifactDone(ctx, job.Key, job.Revision)
}

// Locate is the reference the store assigns to key.
func (w *Writer) Locate(key string) string {
	return w.store.Locate(key)
}
