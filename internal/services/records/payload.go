package records

import (
	"time"

	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/shopspring/decimal"
)

// Payload is what a record QR encodes. It carries no internal row id.
type Payload struct {
	ShortID         string              `json:"shortId"`
	ProjectName     string              `json:"projectName"`
	Client          string              `json:"client"`
	Event           string              `json:"event"`
	PrimeContractor string              `json:"primeContractor"`
	SubContractor   string              `json:"subContractor"`
	OwnerName       string              `json:"ownerName"`
	DriverName      string              `json:"driverName"`
	VehicleType     string              `json:"vehicleType"`
	TruckNumber     string              `json:"truckNumber"`
	Sideboards      bool                `json:"sideboards"`
	OpenBack        bool                `json:"openBack"`
	HandLoader      bool                `json:"handLoader"`
	Color           []string            `json:"color"`
	Make            string              `json:"make"`
	Model           string              `json:"model"`
	BaseMeasurement decimal.NullDecimal `json:"baseMeasurement"`
	Additions       decimal.NullDecimal `json:"additions"`
	Deductions      decimal.NullDecimal `json:"deductions"`
	VehicleWeight   decimal.NullDecimal `json:"vehicleWeight"`
	GoodsWeight     decimal.NullDecimal `json:"goodsWeight"`
	Meta            map[string]any      `json:"meta"`
	CreatedAt       time.Time           `json:"createdAt"`
	ExpiryAt        *time.Time          `json:"expiryAt"`
	URL             string              `json:"url"`
}

// payloadFields are the patch field names that show up in Payload.
var payloadFields = map[string]struct{}{
	"projectName": {}, "client": {}, "event": {}, "primeContractor": {}, "subContractor": {},
	"ownerName": {}, "driverName": {}, "vehicleType": {}, "truckNumber": {},
	"sideboards": {}, "openBack": {}, "handLoader": {}, "color": {}, "make": {}, "model": {},
	"baseMeasurement": {}, "additions": {}, "deductions": {}, "vehicleWeight": {}, "goodsWeight": {},
	"meta": {}, "expiryAt": {},
}

func payloadOf(r *models.TrackingRecord) Payload {
	return Payload{
		ShortID:         r.ShortID,
		ProjectName:     r.ProjectName,
		Client:          r.Client,
		Event:           r.Event,
		PrimeContractor: r.PrimeContractor,
		SubContractor:   r.SubContractor,
		OwnerName:       r.OwnerName,
		DriverName:      r.DriverName,
		VehicleType:     r.VehicleType,
		TruckNumber:     r.TruckNumber,
		Sideboards:      r.Sideboards,
		OpenBack:        r.OpenBack,
		HandLoader:      r.HandLoader,
		Color:           r.Color,
		Make:            r.Make,
		Model:           r.Model,
		BaseMeasurement: r.BaseMeasurement,
		Additions:       r.Additions,
		Deductions:      r.Deductions,
		VehicleWeight:   r.VehicleWeight,
		GoodsWeight:     r.GoodsWeight,
		Meta:            r.Meta,
		CreatedAt:       r.CreatedAt,
		ExpiryAt:        r.ExpiryAt,
		URL:             r.URL,
	}
}

func touchesPayload(changed []string) bool {
	for _, name := range changed {
		if _, ok := payloadFields[name]; ok {
			return true
		}
	}
	return false
}
