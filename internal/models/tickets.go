package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoadTicket is a pickup event tied to a truck certificate.
type LoadTicket struct {
	ID                        string              `json:"id"`
	ShortID                   string              `json:"shortId"`
	TruckCertificateID        string              `json:"truckCertificateId"`
	TruckCertificationDetails map[string]any      `json:"truckCertificationDetails"`
	FieldMonitorName          string              `json:"fieldMonitorName"`
	SubActivity               string              `json:"subActivity"`
	DebrisType                string              `json:"debrisType"`
	LoadDate                  string              `json:"loadDate"`
	LoadTime                  string              `json:"loadTime"`
	Latitude                  decimal.NullDecimal `json:"latitude"`
	Longitude                 decimal.NullDecimal `json:"longitude"`
	Address                   string              `json:"address"`
	FieldMonitorNotes         string              `json:"fieldMonitorNotes"`
	TruckCapacity             decimal.NullDecimal `json:"truckCapacity"`
	QRImagePath               string              `json:"qrImagePath"`
	CreatedAt                 time.Time           `json:"createdAt"`
}

// DisposalTicket is a drop-off event tied to a load ticket.
type DisposalTicket struct {
	ID                  string              `json:"id"`
	LoadTicketID        string              `json:"loadTicketId"`
	DisposalSite        string              `json:"disposalSite"`
	OffloadDate         string              `json:"offloadDate"`
	OffloadTime         string              `json:"offloadTime"`
	DebrisType          string              `json:"debrisType"`
	LoadCall            int                 `json:"loadCall"`
	ConfirmQuantity     decimal.NullDecimal `json:"confirmQuantity"`
	TippingTicketNumber string              `json:"tippingTicketNumber"`
	TippingFee          decimal.NullDecimal `json:"tippingFee"`
	SiteMonitorNotes    string              `json:"siteMonitorNotes"`
	SiteMonitorName     string              `json:"siteMonitorName"`
	CreatedAt           time.Time           `json:"createdAt"`
}

// LoadTicketDetails is a load ticket joined with its truck certificate, when one matches.
type LoadTicketDetails struct {
	LoadTicket       *LoadTicket     `json:"loadTicket"`
	TruckCertificate *TrackingRecord `json:"truckCertificate"`
}
