package tickets

import (
	"github.com/BearBump/HaulTicket/internal/sanitize"
)

// LoadTicketInput is what a field monitor submits at pickup.
type LoadTicketInput struct {
	TruckCertificationDetails sanitize.Document `json:"truckCertificationDetails" validate:"required"`
	FieldMonitorName          string            `json:"fieldMonitorName" validate:"required"`
	SubActivity               string            `json:"subActivity"`
	DebrisType                string            `json:"debrisType"`
	LoadDate                  string            `json:"loadDate"`
	LoadTime                  string            `json:"loadTime"`
	Latitude                  sanitize.Number   `json:"latitude"`
	Longitude                 sanitize.Number   `json:"longitude"`
	Address                   string            `json:"address"`
	FieldMonitorNotes         string            `json:"fieldMonitorNotes"`
	TruckCapacity             sanitize.Number   `json:"truckCapacity"`
}

// DisposalTicketInput is what a site monitor submits at drop-off.
type DisposalTicketInput struct {
	LoadTicketID        string          `json:"load_ticket_id" validate:"required"`
	DisposalSite        string          `json:"disposal_site" validate:"required"`
	OffloadDate         string          `json:"offload_date"`
	OffloadTime         string          `json:"offload_time"`
	DebrisType          string          `json:"debris_type"`
	LoadCall            int             `json:"load_call" validate:"gte=0"`
	ConfirmQuantity     sanitize.Number `json:"confirm_quantity"`
	TippingTicketNumber string          `json:"tipping_ticket_number"`
	TippingFee          sanitize.Number `json:"tipping_fee"`
	SiteMonitorNotes    string          `json:"site_monitor_notes"`
	SiteMonitorName     string          `json:"site_monitor_name"`
}
