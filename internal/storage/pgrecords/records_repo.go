package pgrecords

import (
	"context"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// RecordCreate is everything written atomically when a record is born.
type RecordCreate struct {
	Record   *models.TrackingRecord
	History  *models.HistoryEntry
	Artifact *models.ArtifactJob
}

// RecordMutation is what an UpdateFunc wants written for the locked row.
type RecordMutation struct {
	Next     *models.TrackingRecord
	Snapshot *models.HistoryEntry
	Artifact *models.ArtifactJob
}

// UpdateFunc decides the mutation while the row lock is held. Returning an error
// (apperr.ErrUnchanged included) rolls the transaction back untouched.
type UpdateFunc func(cur *models.TrackingRecord, stats models.HistoryStats) (*RecordMutation, error)

func (s *Storage) CreateRecord(ctx context.Context, in RecordCreate) (*models.TrackingRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Storage(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanRecord(tx.QueryRow(ctx, insertRecordSQL, recordArgs(in.Record)...))
	if err != nil {
		return nil, apperr.Storage(err, "insert record")
	}

	if in.History != nil {
		in.History.RecordID = rec.ID
		if _, err := tx.Exec(ctx, insertHistorySQL, historyArgs(in.History)...); err != nil {
			return nil, apperr.Storage(err, "insert history")
		}
	}

	if in.Artifact != nil {
		if err := upsertArtifact(ctx, tx, in.Artifact, rec.CreatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage(err, "commit tx")
	}
	return rec, nil
}

func (s *Storage) GetRecord(ctx context.Context, shortID string) (*models.TrackingRecord, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM qr_records WHERE short_id = $1`, shortID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("record")
	}
	if err != nil {
		return nil, apperr.Storage(err, "select record")
	}
	return rec, nil
}

// UpdateRecord locks the row with FOR UPDATE, so concurrent updates of one shortId
// run one after another and each sees the previous commit.
func (s *Storage) UpdateRecord(ctx context.Context, shortID string, fn UpdateFunc) (*models.TrackingRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Storage(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM qr_records WHERE short_id = $1 FOR UPDATE`, shortID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("record")
	}
	if err != nil {
		return nil, apperr.Storage(err, "lock record")
	}

	var stats models.HistoryStats
	if err := tx.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(MAX(version), 0)
FROM qr_records_history
WHERE record_id = $1
`, cur.ID).Scan(&stats.Count, &stats.MaxVersion); err != nil {
		return nil, apperr.Storage(err, "select history stats")
	}

	mut, err := fn(cur, stats)
	if err != nil {
		return nil, err
	}

	if mut.Snapshot != nil {
		mut.Snapshot.RecordID = cur.ID
		if _, err := tx.Exec(ctx, insertHistorySQL, historyArgs(mut.Snapshot)...); err != nil {
			return nil, apperr.Storage(err, "insert history")
		}
	}

	next := mut.Next
	args := append([]any{cur.ID}, businessArgs(&next.RecordFields)...)
	args = append(args, next.ExpiryAt, next.UpdatedAt)
	updated, err := scanRecord(tx.QueryRow(ctx, updateRecordSQL, args...))
	if err != nil {
		return nil, apperr.Storage(err, "update record")
	}

	if mut.Artifact != nil {
		if err := upsertArtifact(ctx, tx, mut.Artifact, next.UpdatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage(err, "commit tx")
	}
	return updated, nil
}

// IncrementScan bumps scan_count in one statement and returns the whole row.
func (s *Storage) IncrementScan(ctx context.Context, shortID string) (*models.TrackingRecord, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `
UPDATE qr_records SET scan_count = scan_count + 1
WHERE short_id = $1
RETURNING `+recordColumns, shortID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("record")
	}
	if err != nil {
		return nil, apperr.Storage(err, "increment scan")
	}
	return rec, nil
}

// ListRecords returns every record, newest first.
func (s *Storage) ListRecords(ctx context.Context) ([]*models.TrackingRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+` FROM qr_records ORDER BY created_at DESC, short_id`)
	if err != nil {
		return nil, apperr.Storage(err, "select records")
	}
	defer rows.Close()

	out := make([]*models.TrackingRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan record")
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, apperr.Storage(rows.Err(), "rows")
	}
	return out, nil
}

// ListHistory returns history entries of one record ordered by version.
func (s *Storage) ListHistory(ctx context.Context, shortID string, limit, offset int) ([]*models.HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var recordID string
	err := s.db.QueryRow(ctx, `SELECT id FROM qr_records WHERE short_id = $1`, shortID).Scan(&recordID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("record")
	}
	if err != nil {
		return nil, apperr.Storage(err, "select record id")
	}

	rows, err := s.db.Query(ctx, `
SELECT `+historyColumns+`
FROM qr_records_history
WHERE record_id = $1
ORDER BY version ASC
LIMIT $2 OFFSET $3
`, recordID, limit, offset)
	if err != nil {
		return nil, apperr.Storage(err, "select history")
	}
	defer rows.Close()

	out := make([]*models.HistoryEntry, 0)
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan history")
		}
		out = append(out, h)
	}
	if rows.Err() != nil {
		return nil, apperr.Storage(rows.Err(), "rows")
	}
	return out, nil
}

func findRecordByRef(ctx context.Context, q querier, ref string) (*models.TrackingRecord, error) {
	rec, err := scanRecord(q.QueryRow(ctx, `SELECT `+recordColumns+` FROM qr_records WHERE id = $1 OR short_id = $1 LIMIT 1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "select record")
	}
	return rec, nil
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
