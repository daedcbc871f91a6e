package messages

import "time"

const (
	TypeRecordCreated         = "record.created"
	TypeRecordUpdated         = "record.updated"
	TypeRecordScanned         = "record.scanned"
	TypeLoadTicketCreated     = "loadticket.created"
	TypeDisposalTicketCreated = "disposalticket.created"
)

// TicketEvent is published after every committed mutation and successful scan.
type TicketEvent struct {
	Type    string    `json:"type"`
	ShortID string    `json:"short_id"`
	At      time.Time `json:"at"`

	Version   int   `json:"version,omitempty"`
	ScanCount int64 `json:"scan_count,omitempty"`

	ChangedFields []string `json:"changed_fields,omitempty"`

	ArtifactKey     string `json:"artifact_key,omitempty"`
	ArtifactPending bool   `json:"artifact_pending,omitempty"`

	LoadTicketID string `json:"load_ticket_id,omitempty"`
}
