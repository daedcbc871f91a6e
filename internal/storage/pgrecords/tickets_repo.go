package pgrecords

import (
	"context"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const loadTicketColumns = `
  id, short_id, truck_certificate_id, truck_certification_details, field_monitor_name,
  sub_activity, debris_type, load_date, load_time, latitude, longitude, address,
  field_monitor_notes, truck_capacity, load_qr_image_path, created_at`

const disposalTicketColumns = `
  id, load_ticket_id, disposal_site, offload_date, offload_time, debris_type, load_call,
  confirm_quantity, tipping_ticket_number, tipping_fee, site_monitor_notes, site_monitor_name, created_at`

func scanLoadTicket(row pgx.Row) (*models.LoadTicket, error) {
	var t models.LoadTicket
	if err := row.Scan(
		&t.ID, &t.ShortID, &t.TruckCertificateID, &t.TruckCertificationDetails, &t.FieldMonitorName,
		&t.SubActivity, &t.DebrisType, &t.LoadDate, &t.LoadTime, &t.Latitude, &t.Longitude, &t.Address,
		&t.FieldMonitorNotes, &t.TruckCapacity, &t.QRImagePath, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateLoadTicket stores the ticket and its pending QR artifact in one transaction.
// The truck certificate reference is not checked against qr_records.
func (s *Storage) CreateLoadTicket(ctx context.Context, t *models.LoadTicket, job *models.ArtifactJob) (*models.LoadTicket, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Storage(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	details := t.TruckCertificationDetails
	if details == nil {
		details = map[string]any{}
	}
	created, err := scanLoadTicket(tx.QueryRow(ctx, `
INSERT INTO load_ticket (
  id, short_id, truck_certificate_id, truck_certification_details, field_monitor_name,
  sub_activity, debris_type, load_date, load_time, latitude, longitude, address,
  field_monitor_notes, truck_capacity, load_qr_image_path, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING`+loadTicketColumns,
		t.ID, t.ShortID, t.TruckCertificateID, details, t.FieldMonitorName,
		t.SubActivity, t.DebrisType, t.LoadDate, t.LoadTime, t.Latitude, t.Longitude, t.Address,
		t.FieldMonitorNotes, t.TruckCapacity, t.QRImagePath, utc(t.CreatedAt),
	))
	if err != nil {
		return nil, apperr.Storage(err, "insert load ticket")
	}

	if job != nil {
		if err := upsertArtifact(ctx, tx, job, created.CreatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage(err, "commit tx")
	}
	return created, nil
}

// CreateDisposalTicket resolves the load ticket by id or shortId, stores the disposal
// row against it and returns the load ticket joined with its truck certificate.
func (s *Storage) CreateDisposalTicket(ctx context.Context, d *models.DisposalTicket) (*models.DisposalTicket, *models.LoadTicketDetails, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, apperr.Storage(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lt, err := scanLoadTicket(tx.QueryRow(ctx, `
SELECT`+loadTicketColumns+`
FROM load_ticket
WHERE id = $1 OR short_id = $1
LIMIT 1
FOR SHARE
`, d.LoadTicketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperr.NotFound("load ticket")
	}
	if err != nil {
		return nil, nil, apperr.Storage(err, "select load ticket")
	}

	cert, err := findRecordByRef(ctx, tx, lt.TruckCertificateID)
	if err != nil {
		return nil, nil, err
	}

	var out models.DisposalTicket
	err = tx.QueryRow(ctx, `
INSERT INTO disposal_ticket (
  id, load_ticket_id, disposal_site, offload_date, offload_time, debris_type, load_call,
  confirm_quantity, tipping_ticket_number, tipping_fee, site_monitor_notes, site_monitor_name, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING`+disposalTicketColumns,
		d.ID, lt.ID, d.DisposalSite, d.OffloadDate, d.OffloadTime, d.DebrisType, d.LoadCall,
		d.ConfirmQuantity, d.TippingTicketNumber, d.TippingFee, d.SiteMonitorNotes, d.SiteMonitorName, utc(d.CreatedAt),
	).Scan(
		&out.ID, &out.LoadTicketID, &out.DisposalSite, &out.OffloadDate, &out.OffloadTime, &out.DebrisType, &out.LoadCall,
		&out.ConfirmQuantity, &out.TippingTicketNumber, &out.TippingFee, &out.SiteMonitorNotes, &out.SiteMonitorName, &out.CreatedAt,
	)
	if err != nil {
		return nil, nil, apperr.Storage(err, "insert disposal ticket")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, apperr.Storage(err, "commit tx")
	}
	return &out, &models.LoadTicketDetails{LoadTicket: lt, TruckCertificate: cert}, nil
}
