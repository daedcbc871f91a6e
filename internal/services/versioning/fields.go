package versioning

import (
	"slices"
	"time"

	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/BearBump/HaulTicket/internal/sanitize"
	"github.com/shopspring/decimal"
)

type stringField struct {
	name  string
	patch func(*models.RecordPatch) models.Optional[string]
	live  func(*models.RecordFields) *string
}

type boolField struct {
	name  string
	patch func(*models.RecordPatch) models.Optional[bool]
	live  func(*models.RecordFields) *bool
}

type numberField struct {
	name  string
	patch func(*models.RecordPatch) models.Optional[sanitize.Number]
	live  func(*models.RecordFields) *decimal.NullDecimal
}

var stringFields = []stringField{
	{"projectName", func(p *models.RecordPatch) models.Optional[string] { return p.ProjectName }, func(f *models.RecordFields) *string { return &f.ProjectName }},
	{"client", func(p *models.RecordPatch) models.Optional[string] { return p.Client }, func(f *models.RecordFields) *string { return &f.Client }},
	{"event", func(p *models.RecordPatch) models.Optional[string] { return p.Event }, func(f *models.RecordFields) *string { return &f.Event }},
	{"date", func(p *models.RecordPatch) models.Optional[string] { return p.Date }, func(f *models.RecordFields) *string { return &f.Date }},
	{"primeContractor", func(p *models.RecordPatch) models.Optional[string] { return p.PrimeContractor }, func(f *models.RecordFields) *string { return &f.PrimeContractor }},
	{"subContractor", func(p *models.RecordPatch) models.Optional[string] { return p.SubContractor }, func(f *models.RecordFields) *string { return &f.SubContractor }},
	{"ownerName", func(p *models.RecordPatch) models.Optional[string] { return p.OwnerName }, func(f *models.RecordFields) *string { return &f.OwnerName }},
	{"driverName", func(p *models.RecordPatch) models.Optional[string] { return p.DriverName }, func(f *models.RecordFields) *string { return &f.DriverName }},
	{"phone", func(p *models.RecordPatch) models.Optional[string] { return p.Phone }, func(f *models.RecordFields) *string { return &f.Phone }},
	{"email", func(p *models.RecordPatch) models.Optional[string] { return p.Email }, func(f *models.RecordFields) *string { return &f.Email }},
	{"driverLicenseState", func(p *models.RecordPatch) models.Optional[string] { return p.DriverLicenseState }, func(f *models.RecordFields) *string { return &f.DriverLicenseState }},
	{"driverLicenseNumber", func(p *models.RecordPatch) models.Optional[string] { return p.DriverLicenseNumber }, func(f *models.RecordFields) *string { return &f.DriverLicenseNumber }},
	{"driverLicenseExpiry", func(p *models.RecordPatch) models.Optional[string] { return p.DriverLicenseExpiry }, func(f *models.RecordFields) *string { return &f.DriverLicenseExpiry }},
	{"vehicleType", func(p *models.RecordPatch) models.Optional[string] { return p.VehicleType }, func(f *models.RecordFields) *string { return &f.VehicleType }},
	{"truckNumber", func(p *models.RecordPatch) models.Optional[string] { return p.TruckNumber }, func(f *models.RecordFields) *string { return &f.TruckNumber }},
	{"customVehicleType", func(p *models.RecordPatch) models.Optional[string] { return p.CustomVehicleType }, func(f *models.RecordFields) *string { return &f.CustomVehicleType }},
	{"make", func(p *models.RecordPatch) models.Optional[string] { return p.Make }, func(f *models.RecordFields) *string { return &f.Make }},
	{"model", func(p *models.RecordPatch) models.Optional[string] { return p.Model }, func(f *models.RecordFields) *string { return &f.Model }},
	{"vinRegistrationInfo", func(p *models.RecordPatch) models.Optional[string] { return p.VinRegistrationInfo }, func(f *models.RecordFields) *string { return &f.VinRegistrationInfo }},
	{"licensePlateState", func(p *models.RecordPatch) models.Optional[string] { return p.LicensePlateState }, func(f *models.RecordFields) *string { return &f.LicensePlateState }},
	{"licensePlateTagNumber", func(p *models.RecordPatch) models.Optional[string] { return p.LicensePlateTagNumber }, func(f *models.RecordFields) *string { return &f.LicensePlateTagNumber }},
	{"licensePlateExpiry", func(p *models.RecordPatch) models.Optional[string] { return p.LicensePlateExpiry }, func(f *models.RecordFields) *string { return &f.LicensePlateExpiry }},
}

var boolFields = []boolField{
	{"sideboards", func(p *models.RecordPatch) models.Optional[bool] { return p.Sideboards }, func(f *models.RecordFields) *bool { return &f.Sideboards }},
	{"openBack", func(p *models.RecordPatch) models.Optional[bool] { return p.OpenBack }, func(f *models.RecordFields) *bool { return &f.OpenBack }},
	{"handLoader", func(p *models.RecordPatch) models.Optional[bool] { return p.HandLoader }, func(f *models.RecordFields) *bool { return &f.HandLoader }},
}

var numberFields = []numberField{
	{"baseMeasurement", func(p *models.RecordPatch) models.Optional[sanitize.Number] { return p.BaseMeasurement }, func(f *models.RecordFields) *decimal.NullDecimal { return &f.BaseMeasurement }},
	{"additions", func(p *models.RecordPatch) models.Optional[sanitize.Number] { return p.Additions }, func(f *models.RecordFields) *decimal.NullDecimal { return &f.Additions }},
	{"deductions", func(p *models.RecordPatch) models.Optional[sanitize.Number] { return p.Deductions }, func(f *models.RecordFields) *decimal.NullDecimal { return &f.Deductions }},
	{"vehicleWeight", func(p *models.RecordPatch) models.Optional[sanitize.Number] { return p.VehicleWeight }, func(f *models.RecordFields) *decimal.NullDecimal { return &f.VehicleWeight }},
	{"goodsWeight", func(p *models.RecordPatch) models.Optional[sanitize.Number] { return p.GoodsWeight }, func(f *models.RecordFields) *decimal.NullDecimal { return &f.GoodsWeight }},
}

// Diff lists the fields present in p whose value differs from cur, in a stable order.
func Diff(cur *models.TrackingRecord, p *models.RecordPatch) []string {
	var changed []string
	for _, f := range stringFields {
		if o := f.patch(p); o.Set && o.Value != *f.live(&cur.RecordFields) {
			changed = append(changed, f.name)
		}
	}
	for _, f := range boolFields {
		if o := f.patch(p); o.Set && o.Value != *f.live(&cur.RecordFields) {
			changed = append(changed, f.name)
		}
	}
	for _, f := range numberFields {
		if o := f.patch(p); o.Set && !sanitize.EqualNumbers(o.Value.NullDecimal, *f.live(&cur.RecordFields)) {
			changed = append(changed, f.name)
		}
	}
	if p.Color.Set && !equalColors(p.Color.Value, cur.Color) {
		changed = append(changed, "color")
	}
	if p.Meta.Set && !sanitize.EqualDocuments(p.Meta.Value, cur.Meta) {
		changed = append(changed, "meta")
	}
	if p.ExpiryAt.Set && !equalInstants(p.ExpiryAt.Value, cur.ExpiryAt) {
		changed = append(changed, "expiryAt")
	}
	return changed
}

// Apply copies every present field of p onto rec.
func Apply(rec *models.TrackingRecord, p *models.RecordPatch) {
	for _, f := range stringFields {
		if o := f.patch(p); o.Set {
			*f.live(&rec.RecordFields) = o.Value
		}
	}
	for _, f := range boolFields {
		if o := f.patch(p); o.Set {
			*f.live(&rec.RecordFields) = o.Value
		}
	}
	for _, f := range numberFields {
		if o := f.patch(p); o.Set {
			*f.live(&rec.RecordFields) = o.Value.NullDecimal
		}
	}
	if p.Color.Set {
		rec.Color = append([]string{}, p.Color.Value...)
	}
	if p.Meta.Set {
		rec.Meta = map[string]any(p.Meta.Value)
		if rec.Meta == nil {
			rec.Meta = map[string]any{}
		}
	}
	if p.ExpiryAt.Set {
		if p.ExpiryAt.Value == nil {
			rec.ExpiryAt = nil
		} else {
			t := p.ExpiryAt.Value.UTC()
			rec.ExpiryAt = &t
		}
	}
}

func equalColors(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

func equalInstants(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
