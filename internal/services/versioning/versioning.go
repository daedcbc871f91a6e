// Package versioning decides how an update touches a record and its history.
package versioning

import (
	"strings"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/models"
)

type Policy struct {
	// SnapshotFirstUpdate snapshots every changing update, including the first one after creation.
	SnapshotFirstUpdate bool
}

type Engine struct {
	policy Policy
}

func New(p Policy) *Engine {
	return &Engine{policy: p}
}

// Plan is the outcome of a changing update.
type Plan struct {
	Changed  []string
	Next     *models.TrackingRecord
	Snapshot *models.HistoryEntry
}

// Plan diffs p against cur and, if anything changed, builds the next live state and
// the optional pre-update snapshot. It returns apperr.ErrUnchanged when nothing differs.
func (e *Engine) Plan(cur *models.TrackingRecord, stats models.HistoryStats, p *models.RecordPatch, now time.Time) (*Plan, error) {
	changed := Diff(cur, p)
	if len(changed) == 0 {
		return nil, apperr.ErrUnchanged
	}

	plan := &Plan{Changed: changed}
	if e.snapshotEligible(cur, stats) {
		plan.Snapshot = Snapshot(cur, stats.MaxVersion+1, models.OperationUpdate, actorOf(p.UpdatedBy), now)
	}

	next := cur.Clone()
	Apply(next, p)
	next.UpdatedAt = now
	plan.Next = next
	return plan, nil
}

// The first update after creation is skipped unless the policy says otherwise:
// its pre-state is the INSERT row already.
func (e *Engine) snapshotEligible(cur *models.TrackingRecord, stats models.HistoryStats) bool {
	if e.policy.SnapshotFirstUpdate {
		return true
	}
	return stats.Count >= 1 && cur.PreviouslyUpdated()
}

// Initial is the version 1 INSERT entry written together with a new record.
func Initial(rec *models.TrackingRecord, actor string) *models.HistoryEntry {
	return Snapshot(rec, 1, models.OperationInsert, actorOf(actor), rec.CreatedAt)
}

// Snapshot captures rec as a history entry.
func Snapshot(rec *models.TrackingRecord, version int, op models.OperationType, actor string, at time.Time) *models.HistoryEntry {
	c := rec.Clone()
	return &models.HistoryEntry{
		RecordID:      rec.ID,
		Version:       version,
		OperationType: op,
		RecordFields:  c.RecordFields,
		ScanCount:     c.ScanCount,
		QRImagePath:   c.QRImagePath,
		ExpiryAt:      c.ExpiryAt,
		UpdatedBy:     actor,
		UpdatedAt:     at,
	}
}

func actorOf(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return models.DefaultActor
}
