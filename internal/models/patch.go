package models

import (
	"time"

	"github.com/BearBump/HaulTicket/internal/sanitize"
)

// RecordPatch is a partial update. Only fields with Set=true are considered.
type RecordPatch struct {
	ProjectName     Optional[string] `json:"projectName"`
	Client          Optional[string] `json:"client"`
	Event           Optional[string] `json:"event"`
	Date            Optional[string] `json:"date"`
	PrimeContractor Optional[string] `json:"primeContractor"`
	SubContractor   Optional[string] `json:"subContractor"`

	OwnerName  Optional[string] `json:"ownerName"`
	DriverName Optional[string] `json:"driverName"`
	Phone      Optional[string] `json:"phone"`
	Email      Optional[string] `json:"email"`

	DriverLicenseState  Optional[string] `json:"driverLicenseState"`
	DriverLicenseNumber Optional[string] `json:"driverLicenseNumber"`
	DriverLicenseExpiry Optional[string] `json:"driverLicenseExpiry"`

	VehicleType         Optional[string]   `json:"vehicleType"`
	TruckNumber         Optional[string]   `json:"truckNumber"`
	CustomVehicleType   Optional[string]   `json:"customVehicleType"`
	Sideboards          Optional[bool]     `json:"sideboards"`
	OpenBack            Optional[bool]     `json:"openBack"`
	HandLoader          Optional[bool]     `json:"handLoader"`
	Color               Optional[[]string] `json:"color"`
	Make                Optional[string]   `json:"make"`
	Model               Optional[string]   `json:"model"`
	VinRegistrationInfo Optional[string]   `json:"vinRegistrationInfo"`

	LicensePlateState     Optional[string] `json:"licensePlateState"`
	LicensePlateTagNumber Optional[string] `json:"licensePlateTagNumber"`
	LicensePlateExpiry    Optional[string] `json:"licensePlateExpiry"`

	BaseMeasurement Optional[sanitize.Number] `json:"baseMeasurement"`
	Additions       Optional[sanitize.Number] `json:"additions"`
	Deductions      Optional[sanitize.Number] `json:"deductions"`
	VehicleWeight   Optional[sanitize.Number] `json:"vehicleWeight"`
	GoodsWeight     Optional[sanitize.Number] `json:"goodsWeight"`

	Meta Optional[sanitize.Document] `json:"meta"`

	ExpiryAt Optional[*time.Time] `json:"expiryAt"`

	UpdatedBy string `json:"updatedBy"`
}
