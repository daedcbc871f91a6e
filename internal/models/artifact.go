package models

import "time"

const (
	ArtifactStatePending = "pending"
	ArtifactStateDone    = "done"
)

// ArtifactJob is an outbox row: the QR payload that must end up rendered under Key.
// Revision grows on every re-render of the same key.
type ArtifactJob struct {
	Key           string
	OwnerShortID  string
	ContentType   string
	Payload       string
	State         string
	Revision      int64
	Attempts      int32
	LastError     *string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
