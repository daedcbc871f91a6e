package pgrecords

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS qr_records (
  id TEXT PRIMARY KEY,
  short_id TEXT NOT NULL UNIQUE,
  project_name TEXT NOT NULL DEFAULT '',
  client TEXT NOT NULL DEFAULT '',
  event TEXT NOT NULL DEFAULT '',
  record_date TEXT NOT NULL DEFAULT '',
  prime_contractor TEXT NOT NULL DEFAULT '',
  sub_contractor TEXT NOT NULL DEFAULT '',
  owner_name TEXT NOT NULL DEFAULT '',
  driver_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  driver_license_state TEXT NOT NULL DEFAULT '',
  driver_license_number TEXT NOT NULL DEFAULT '',
  driver_license_expiry TEXT NOT NULL DEFAULT '',
  vehicle_type TEXT NOT NULL DEFAULT '',
  truck_number TEXT NOT NULL DEFAULT '',
  custom_vehicle_type TEXT NOT NULL DEFAULT '',
  sideboards BOOLEAN NOT NULL DEFAULT FALSE,
  open_back BOOLEAN NOT NULL DEFAULT FALSE,
  hand_loader BOOLEAN NOT NULL DEFAULT FALSE,
  color JSONB NOT NULL DEFAULT '[]',
  make TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  vin_registration_info TEXT NOT NULL DEFAULT '',
  license_plate_state TEXT NOT NULL DEFAULT '',
  license_plate_tag_number TEXT NOT NULL DEFAULT '',
  license_plate_expiry TEXT NOT NULL DEFAULT '',
  base_measurement NUMERIC NULL,
  additions NUMERIC NULL,
  deductions NUMERIC NULL,
  vehicle_weight NUMERIC NULL,
  goods_weight NUMERIC NULL,
  meta JSONB NOT NULL DEFAULT '{}',
  scan_count BIGINT NOT NULL DEFAULT 0 CHECK (scan_count >= 0),
  qr_image_path TEXT NOT NULL DEFAULT '',
  expiry_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_qr_records_created_at ON qr_records(created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS qr_records_history (
  id BIGSERIAL PRIMARY KEY,
  record_id TEXT NOT NULL REFERENCES qr_records(id) ON DELETE CASCADE,
  version INT NOT NULL CHECK (version > 0),
  operation_type TEXT NOT NULL CHECK (operation_type IN ('INSERT', 'UPDATE')),
  project_name TEXT NOT NULL DEFAULT '',
  client TEXT NOT NULL DEFAULT '',
  event TEXT NOT NULL DEFAULT '',
  record_date TEXT NOT NULL DEFAULT '',
  prime_contractor TEXT NOT NULL DEFAULT '',
  sub_contractor TEXT NOT NULL DEFAULT '',
  owner_name TEXT NOT NULL DEFAULT '',
  driver_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  driver_license_state TEXT NOT NULL DEFAULT '',
  driver_license_number TEXT NOT NULL DEFAULT '',
  driver_license_expiry TEXT NOT NULL DEFAULT '',
  vehicle_type TEXT NOT NULL DEFAULT '',
  truck_number TEXT NOT NULL DEFAULT '',
  custom_vehicle_type TEXT NOT NULL DEFAULT '',
  sideboards BOOLEAN NOT NULL DEFAULT FALSE,
  open_back BOOLEAN NOT NULL DEFAULT FALSE,
  hand_loader BOOLEAN NOT NULL DEFAULT FALSE,
  color JSONB NOT NULL DEFAULT '[]',
  make TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  vin_registration_info TEXT NOT NULL DEFAULT '',
  license_plate_state TEXT NOT NULL DEFAULT '',
  license_plate_tag_number TEXT NOT NULL DEFAULT '',
  license_plate_expiry TEXT NOT NULL DEFAULT '',
  base_measurement NUMERIC NULL,
  additions NUMERIC NULL,
  deductions NUMERIC NULL,
  vehicle_weight NUMERIC NULL,
  goods_weight NUMERIC NULL,
  meta JSONB NOT NULL DEFAULT '{}',
  scan_count BIGINT NOT NULL DEFAULT 0,
  qr_image_path TEXT NOT NULL DEFAULT '',
  expiry_at TIMESTAMPTZ NULL,
  updated_by TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (record_id, version)
)`,
		`
CREATE TABLE IF NOT EXISTS load_ticket (
  id TEXT PRIMARY KEY,
  short_id TEXT NOT NULL UNIQUE,
  truck_certificate_id TEXT NOT NULL,
  truck_certification_details JSONB NOT NULL DEFAULT '{}',
  field_monitor_name TEXT NOT NULL,
  sub_activity TEXT NOT NULL DEFAULT '',
  debris_type TEXT NOT NULL DEFAULT '',
  load_date TEXT NOT NULL DEFAULT '',
  load_time TEXT NOT NULL DEFAULT '',
  latitude NUMERIC NULL,
  longitude NUMERIC NULL,
  address TEXT NOT NULL DEFAULT '',
  field_monitor_notes TEXT NOT NULL DEFAULT '',
  truck_capacity NUMERIC NULL,
  load_qr_image_path TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_load_ticket_truck_certificate_id ON load_ticket(truck_certificate_id)`,
		`
CREATE TABLE IF NOT EXISTS disposal_ticket (
  id TEXT PRIMARY KEY,
  load_ticket_id TEXT NOT NULL REFERENCES load_ticket(id),
  disposal_site TEXT NOT NULL,
  offload_date TEXT NOT NULL DEFAULT '',
  offload_time TEXT NOT NULL DEFAULT '',
  debris_type TEXT NOT NULL DEFAULT '',
  load_call INT NOT NULL DEFAULT 0,
  confirm_quantity NUMERIC NULL,
  tipping_ticket_number TEXT NOT NULL DEFAULT '',
  tipping_fee NUMERIC NULL,
  site_monitor_notes TEXT NOT NULL DEFAULT '',
  site_monitor_name TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS artifact_outbox (
  key TEXT PRIMARY KEY,
  owner_short_id TEXT NOT NULL,
  content_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  state TEXT NOT NULL CHECK (state IN ('pending', 'done')),
  revision BIGINT NOT NULL DEFAULT 1,
  attempts INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  next_attempt_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_artifact_outbox_pending ON artifact_outbox(next_attempt_at) WHERE state = 'pending'`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
