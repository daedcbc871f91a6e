package pgrecords

import (
	"fmt"
	"strings"

	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/jackc/pgx/v5"
)

// businessColumns, businessArgs and businessDests must stay in the same order.
var businessColumns = []string{
	"project_name", "client", "event", "record_date", "prime_contractor", "sub_contractor",
	"owner_name", "driver_name", "phone", "email",
	"driver_license_state", "driver_license_number", "driver_license_expiry",
	"vehicle_type", "truck_number", "custom_vehicle_type", "sideboards", "open_back", "hand_loader", "color",
	"make", "model", "vin_registration_info",
	"license_plate_state", "license_plate_tag_number", "license_plate_expiry",
	"base_measurement", "additions", "deductions", "vehicle_weight", "goods_weight",
	"meta",
}

func businessArgs(f *models.RecordFields) []any {
	color := f.Color
	if color == nil {
		color = []string{}
	}
	meta := f.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return []any{
		f.ProjectName, f.Client, f.Event, f.Date, f.PrimeContractor, f.SubContractor,
		f.OwnerName, f.DriverName, f.Phone, f.Email,
		f.DriverLicenseState, f.DriverLicenseNumber, f.DriverLicenseExpiry,
		f.VehicleType, f.TruckNumber, f.CustomVehicleType, f.Sideboards, f.OpenBack, f.HandLoader, color,
		f.Make, f.Model, f.VinRegistrationInfo,
		f.LicensePlateState, f.LicensePlateTagNumber, f.LicensePlateExpiry,
		f.BaseMeasurement, f.Additions, f.Deductions, f.VehicleWeight, f.GoodsWeight,
		meta,
	}
}

func businessDests(f *models.RecordFields) []any {
	return []any{
		&f.ProjectName, &f.Client, &f.Event, &f.Date, &f.PrimeContractor, &f.SubContractor,
		&f.OwnerName, &f.DriverName, &f.Phone, &f.Email,
		&f.DriverLicenseState, &f.DriverLicenseNumber, &f.DriverLicenseExpiry,
		&f.VehicleType, &f.TruckNumber, &f.CustomVehicleType, &f.Sideboards, &f.OpenBack, &f.HandLoader, &f.Color,
		&f.Make, &f.Model, &f.VinRegistrationInfo,
		&f.LicensePlateState, &f.LicensePlateTagNumber, &f.LicensePlateExpiry,
		&f.BaseMeasurement, &f.Additions, &f.Deductions, &f.VehicleWeight, &f.GoodsWeight,
		&f.Meta,
	}
}

// Statements are assembled once from the fixed column lists above; values are always bound.
var (
	recordColumns = "id, short_id, " + strings.Join(businessColumns, ", ") +
		", scan_count, qr_image_path, expiry_at, created_at, updated_at"

	historyColumns = "id, record_id, version, operation_type, " + strings.Join(businessColumns, ", ") +
		", scan_count, qr_image_path, expiry_at, updated_by, updated_at"

	insertRecordSQL = fmt.Sprintf(`
INSERT INTO qr_records (id, short_id, %s, scan_count, qr_image_path, expiry_at, created_at, updated_at)
VALUES (%s)
RETURNING %s`, strings.Join(businessColumns, ", "), placeholders(1, 2+len(businessColumns)+5), recordColumns)

	insertHistorySQL = fmt.Sprintf(`
INSERT INTO qr_records_history (record_id, version, operation_type, %s, scan_count, qr_image_path, expiry_at, updated_by, updated_at)
VALUES (%s)`, strings.Join(businessColumns, ", "), placeholders(1, 3+len(businessColumns)+5))

	updateRecordSQL = fmt.Sprintf(`
UPDATE qr_records SET %s, expiry_at = $%d, updated_at = $%d
WHERE id = $1
RETURNING %s`, assignments(businessColumns, 2), len(businessColumns)+2, len(businessColumns)+3, recordColumns)
)

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

func assignments(cols []string, from int) string {
	as := make([]string, len(cols))
	for i, c := range cols {
		as[i] = fmt.Sprintf("%s = $%d", c, from+i)
	}
	return strings.Join(as, ", ")
}

func scanRecord(row pgx.Row) (*models.TrackingRecord, error) {
	var r models.TrackingRecord
	dests := append([]any{&r.ID, &r.ShortID}, businessDests(&r.RecordFields)...)
	dests = append(dests, &r.ScanCount, &r.QRImagePath, &r.ExpiryAt, &r.CreatedAt, &r.UpdatedAt)
	if err := row.Scan(dests...); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanHistory(row pgx.Row) (*models.HistoryEntry, error) {
	var h models.HistoryEntry
	var op string
	dests := append([]any{&h.ID, &h.RecordID, &h.Version, &op}, businessDests(&h.RecordFields)...)
	dests = append(dests, &h.ScanCount, &h.QRImagePath, &h.ExpiryAt, &h.UpdatedBy, &h.UpdatedAt)
	if err := row.Scan(dests...); err != nil {
		return nil, err
	}
	h.OperationType = models.OperationType(op)
	return &h, nil
}

func recordArgs(r *models.TrackingRecord) []any {
	args := append([]any{r.ID, r.ShortID}, businessArgs(&r.RecordFields)...)
	return append(args, r.ScanCount, r.QRImagePath, r.ExpiryAt, r.CreatedAt, r.UpdatedAt)
}

func historyArgs(h *models.HistoryEntry) []any {
	args := append([]any{h.RecordID, h.Version, string(h.OperationType)}, businessArgs(&h.RecordFields)...)
	return append(args, h.ScanCount, h.QRImagePath, h.ExpiryAt, h.UpdatedBy, h.UpdatedAt)
}
