package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationInsert OperationType = "INSERT"
	OperationUpdate OperationType = "UPDATE"
)

// DefaultActor is recorded as updatedBy when the caller names nobody.
const DefaultActor = "system"

// RecordFields are the business attributes of a truck certificate.
type RecordFields struct {
	ProjectName     string `json:"projectName"`
	Client          string `json:"client"`
	Event           string `json:"event"`
	Date            string `json:"date"`
	PrimeContractor string `json:"primeContractor"`
	SubContractor   string `json:"subContractor"`

	OwnerName  string `json:"ownerName"`
	DriverName string `json:"driverName"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`

	DriverLicenseState  string `json:"driverLicenseState"`
	DriverLicenseNumber string `json:"driverLicenseNumber"`
	DriverLicenseExpiry string `json:"driverLicenseExpiry"`

	VehicleType         string   `json:"vehicleType"`
	TruckNumber         string   `json:"truckNumber"`
	CustomVehicleType   string   `json:"customVehicleType"`
	Sideboards          bool     `json:"sideboards"`
	OpenBack            bool     `json:"openBack"`
	HandLoader          bool     `json:"handLoader"`
	Color               []string `json:"color"`
	Make                string   `json:"make"`
	Model               string   `json:"model"`
	VinRegistrationInfo string   `json:"vinRegistrationInfo"`

	LicensePlateState     string `json:"licensePlateState"`
	LicensePlateTagNumber string `json:"licensePlateTagNumber"`
	LicensePlateExpiry    string `json:"licensePlateExpiry"`

	BaseMeasurement decimal.NullDecimal `json:"baseMeasurement"`
	Additions       decimal.NullDecimal `json:"additions"`
	Deductions      decimal.NullDecimal `json:"deductions"`
	VehicleWeight   decimal.NullDecimal `json:"vehicleWeight"`
	GoodsWeight     decimal.NullDecimal `json:"goodsWeight"`

	Meta map[string]any `json:"meta"`
}

// TrackingRecord is one certified vehicle. ShortID is the public identity.
type TrackingRecord struct {
	ID      string `json:"id"`
	ShortID string `json:"shortId"`
	RecordFields

	ScanCount   int64      `json:"scanCount"`
	QRImagePath string     `json:"qrImagePath"`
	ExpiryAt    *time.Time `json:"expiryAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	URL string `json:"url,omitempty"`
}

// Expired reports whether the record is past its expiry at now.
func (r *TrackingRecord) Expired(now time.Time) bool {
	return r.ExpiryAt != nil && r.ExpiryAt.Before(now)
}

// PreviouslyUpdated reports whether the record was mutated after creation.
func (r *TrackingRecord) PreviouslyUpdated() bool {
	return !r.UpdatedAt.Equal(r.CreatedAt)
}

// Clone returns a copy that shares no slices or maps with r.
func (r *TrackingRecord) Clone() *TrackingRecord {
	out := *r
	if r.Color != nil {
		out.Color = append([]string(nil), r.Color...)
	}
	if r.Meta != nil {
		out.Meta = make(map[string]any, len(r.Meta))
		for k, v := range r.Meta {
			out.Meta[k] = v
		}
	}
	if r.ExpiryAt != nil {
		t := *r.ExpiryAt
		out.ExpiryAt = &t
	}
	return &out
}

// RecordSummary is one row of the records listing.
type RecordSummary struct {
	ShortID       string              `json:"shortId"`
	OwnerName     string              `json:"ownerName"`
	DriverName    string              `json:"driverName"`
	TruckNumber   string              `json:"truckNumber"`
	VehicleWeight decimal.NullDecimal `json:"vehicleWeight"`
	GoodsWeight   decimal.NullDecimal `json:"goodsWeight"`
	Meta          map[string]any      `json:"meta"`
	ScanCount     int64               `json:"scanCount"`
	QRImagePath   string              `json:"qrImagePath"`
	ExpiryAt      *time.Time          `json:"expiryAt"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	URL           string              `json:"url"`
}

func (r *TrackingRecord) Summary() RecordSummary {
	return RecordSummary{
		ShortID:       r.ShortID,
		OwnerName:     r.OwnerName,
		DriverName:    r.DriverName,
		TruckNumber:   r.TruckNumber,
		VehicleWeight: r.VehicleWeight,
		GoodsWeight:   r.GoodsWeight,
		Meta:          r.Meta,
		ScanCount:     r.ScanCount,
		QRImagePath:   r.QRImagePath,
		ExpiryAt:      r.ExpiryAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		URL:           r.URL,
	}
}

// HistoryEntry is an immutable snapshot of a record at one version.
type HistoryEntry struct {
	ID            int64         `json:"id"`
	RecordID      string        `json:"recordId"`
	Version       int           `json:"version"`
	OperationType OperationType `json:"operationType"`
	RecordFields

	ScanCount   int64      `json:"scanCount"`
	QRImagePath string     `json:"qrImagePath"`
	ExpiryAt    *time.Time `json:"expiryAt"`
	UpdatedBy   string     `json:"updatedBy"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// HistoryStats summarizes the history of one record.
type HistoryStats struct {
	Count      int
	MaxVersion int
}
