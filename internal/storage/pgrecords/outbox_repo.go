package pgrecords

import (
	"context"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// artifactGrace keeps the worker off a fresh outbox row while the request that
// created it writes the bytes itself.
const artifactGrace = 30 * time.Second

const artifactColumns = `
  key, owner_short_id, content_type, payload, state, revision, attempts, last_error,
  next_attempt_at, created_at, updated_at`

func scanArtifact(row pgx.Row) (*models.ArtifactJob, error) {
	var j models.ArtifactJob
	if err := row.Scan(
		&j.Key, &j.OwnerShortID, &j.ContentType, &j.Payload, &j.State, &j.Revision, &j.Attempts, &j.LastError,
		&j.NextAttemptAt, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

// upsertArtifact records job as pending inside q's transaction. A key seen before
// gets its payload replaced and its revision bumped; job is refreshed from the row.
func upsertArtifact(ctx context.Context, q querier, job *models.ArtifactJob, now time.Time) error {
	now = now.UTC()
	got, err := scanArtifact(q.QueryRow(ctx, `
INSERT INTO artifact_outbox (
  key, owner_short_id, content_type, payload, state, revision, attempts, next_attempt_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,1,0,$6,$7,$7)
ON CONFLICT (key) DO UPDATE SET
  owner_short_id = EXCLUDED.owner_short_id,
  content_type = EXCLUDED.content_type,
  payload = EXCLUDED.payload,
  state = EXCLUDED.state,
  revision = artifact_outbox.revision + 1,
  attempts = 0,
  last_error = NULL,
  next_attempt_at = EXCLUDED.next_attempt_at,
  updated_at = EXCLUDED.updated_at
RETURNING`+artifactColumns,
		job.Key, job.OwnerShortID, job.ContentType, job.Payload, models.ArtifactStatePending,
		now.Add(artifactGrace), now,
	))
	if err != nil {
		return apperr.Storage(err, "upsert artifact")
	}
	*job = *got
	return nil
}

// ClaimPendingArtifacts picks due pending rows and pushes their next attempt past
// the lease, so concurrent workers skip them. Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimPendingArtifacts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ArtifactJob, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT`+artifactColumns+`
FROM artifact_outbox
WHERE state = $1
  AND next_attempt_at <= $2
ORDER BY next_attempt_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, models.ArtifactStatePending, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select pending artifacts")
	}

	var picked []*models.ArtifactJob
	for rows.Next() {
		j, err := scanArtifact(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan artifact")
		}
		picked = append(picked, j)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, j := range picked {
		if _, err := tx.Exec(ctx, `UPDATE artifact_outbox SET next_attempt_at = $2, updated_at = $3 WHERE key = $1`,
			j.Key, leaseUntil, now.UTC()); err != nil {
			return nil, errors.Wrap(err, "lease artifact")
		}
		j.NextAttemptAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// ArtifactRevision returns the latest revision recorded for key, or 0 when unknown.
func (s *Storage) ArtifactRevision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRow(ctx, `SELECT revision FROM artifact_outbox WHERE key = $1`, key).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "select artifact revision")
	}
	return rev, nil
}

// MarkArtifactDone completes key only if no newer revision was queued meanwhile.
func (s *Storage) MarkArtifactDone(ctx context.Context, key string, revision int64) error {
	_, err := s.db.Exec(ctx, `
UPDATE artifact_outbox
SET state = $3, last_error = NULL, updated_at = now()
WHERE key = $1 AND revision = $2 AND state = $4
`, key, revision, models.ArtifactStateDone, models.ArtifactStatePending)
	return errors.Wrap(err, "mark artifact done")
}

func (s *Storage) MarkArtifactFailed(ctx context.Context, key string, revision int64, lastError string, nextAttemptAt time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE artifact_outbox
SET attempts = attempts + 1, last_error = $3, next_attempt_at = $4, updated_at = now()
WHERE key = $1 AND revision = $2 AND state = $5
`, key, revision, lastError, nextAttemptAt.UTC(), models.ArtifactStatePending)
	return errors.Wrap(err, "mark artifact failed")
}
