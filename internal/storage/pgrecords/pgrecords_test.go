package pgrecords

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/BearBump/HaulTicket/internal/sanitize"
	"github.com/BearBump/HaulTicket/internal/services/versioning"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "haulticket_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/haulticket_test?sslmode=disable"

	// the port opens before postgres accepts connections
	var st *Storage
	require.Eventually(t, func() bool {
		st, err = New(dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)
	return st
}

func newRecord(truck string, now time.Time) *models.TrackingRecord {
	shortID := "qr_" + uuid.NewString()
	r := &models.TrackingRecord{
		ID:          uuid.NewString(),
		ShortID:     shortID,
		QRImagePath: "qrcode_" + shortID + ".png",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.TruckNumber = truck
	r.DriverName = "Sam Driver"
	r.DriverLicenseNumber = "DL-1"
	r.VehicleWeight = sanitize.Clean("5,800")
	r.Color = []string{"white", "red"}
	r.Meta = map[string]any{"site": "A"}
	return r
}

func createRecord(t *testing.T, st *Storage, rec *models.TrackingRecord) *models.TrackingRecord {
	t.Helper()
	created, err := st.CreateRecord(context.Background(), RecordCreate{
		Record:  rec,
		History: versioning.Initial(rec, ""),
		Artifact: &models.ArtifactJob{
			Key:          rec.QRImagePath,
			OwnerShortID: rec.ShortID,
			ContentType:  "image/png",
			Payload:      `{"shortId":"` + rec.ShortID + `"}`,
		},
	})
	require.NoError(t, err)
	return created
}

func planUpdate(engine *versioning.Engine, p *models.RecordPatch, now time.Time) UpdateFunc {
	return func(cur *models.TrackingRecord, stats models.HistoryStats) (*RecordMutation, error) {
		plan, err := engine.Plan(cur, stats, p, now)
		if err != nil {
			return nil, err
		}
		return &RecordMutation{Next: plan.Next, Snapshot: plan.Snapshot}, nil
	}
}

func TestPGRecords_RecordFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	engine := versioning.New(versioning.Policy{})

	created := createRecord(t, st, newRecord("T-100", now))
	require.Equal(t, int64(0), created.ScanCount)
	require.True(t, created.VehicleWeight.Valid)
	require.Equal(t, "5800", created.VehicleWeight.Decimal.String())
	require.Equal(t, []string{"white", "red"}, created.Color)

	got, err := st.GetRecord(ctx, created.ShortID)
	require.NoError(t, err)
	require.Equal(t, "T-100", got.TruckNumber)
	require.Equal(t, "A", got.Meta["site"])
	require.Nil(t, got.ExpiryAt)

	_, err = st.GetRecord(ctx, "qr_missing")
	require.True(t, apperr.Is(err, apperr.CodeNotFound))

	// no-op update leaves everything alone
	_, err = st.UpdateRecord(ctx, created.ShortID, planUpdate(engine, &models.RecordPatch{VehicleWeight: models.Some(sanitize.NewNumber("5800 lbs"))}, now.Add(time.Minute)))
	require.ErrorIs(t, err, apperr.ErrUnchanged)

	// first update: no snapshot
	upd1, err := st.UpdateRecord(ctx, created.ShortID, planUpdate(engine, &models.RecordPatch{Meta: models.Some(sanitize.Document{"site": "B"})}, now.Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, "B", upd1.Meta["site"])
	require.True(t, upd1.PreviouslyUpdated())

	hist, err := st.ListHistory(ctx, created.ShortID, 0, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, models.OperationInsert, hist[0].OperationType)

	// second and third updates: snapshots 2 and 3
	_, err = st.UpdateRecord(ctx, created.ShortID, planUpdate(engine, &models.RecordPatch{OwnerName: models.Some("Acme"), UpdatedBy: "ops"}, now.Add(2*time.Minute)))
	require.NoError(t, err)
	_, err = st.UpdateRecord(ctx, created.ShortID, planUpdate(engine, &models.RecordPatch{OwnerName: models.Some("Bolt")}, now.Add(3*time.Minute)))
	require.NoError(t, err)

	hist, err = st.ListHistory(ctx, created.ShortID, 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	for i, h := range hist {
		require.Equal(t, i+1, h.Version)
	}
	require.Equal(t, "B", hist[1].Meta["site"])
	require.Equal(t, "", hist[1].OwnerName)
	require.Equal(t, "ops", hist[1].UpdatedBy)
	require.Equal(t, "Acme", hist[2].OwnerName)

	_, err = st.ListHistory(ctx, "qr_missing", 10, 0)
	require.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = st.UpdateRecord(ctx, "qr_missing", planUpdate(engine, &models.RecordPatch{}, now))
	require.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestPGRecords_ScanCounterAndListing(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	older := createRecord(t, st, newRecord("T-1", now.Add(-time.Hour)))
	newer := createRecord(t, st, newRecord("T-2", now))

	const scans = 20
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.IncrementScan(ctx, older.ShortID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := st.GetRecord(ctx, older.ShortID)
	require.NoError(t, err)
	require.Equal(t, int64(scans), got.ScanCount)
	require.True(t, got.UpdatedAt.Equal(got.CreatedAt))

	_, err = st.IncrementScan(ctx, "qr_missing")
	require.True(t, apperr.Is(err, apperr.CodeNotFound))

	list, err := st.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ShortID, list[0].ShortID)
	require.Equal(t, older.ShortID, list[1].ShortID)
}

func TestPGRecords_ConcurrentUpdatesSerialize(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()
	engine := versioning.New(versioning.Policy{SnapshotFirstUpdate: true})

	rec := createRecord(t, st, newRecord("T-9", now))

	const updates = 8
	var wg sync.WaitGroup
	for i := 0; i < updates; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &models.RecordPatch{GoodsWeight: models.Some(sanitize.NewNumber(1000 + i))}
			_, err := st.UpdateRecord(ctx, rec.ShortID, planUpdate(engine, p, now.Add(time.Duration(i+1)*time.Second)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	hist, err := st.ListHistory(ctx, rec.ShortID, 100, 0)
	require.NoError(t, err)
	require.Len(t, hist, updates+1)
	for i, h := range hist {
		require.Equal(t, i+1, h.Version)
	}
}

func TestPGRecords_TicketsAndOutbox(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := createRecord(t, st, newRecord("T-7", now))

	lt := &models.LoadTicket{
		ID:                        uuid.NewString(),
		ShortID:                   "loadticket_" + uuid.NewString(),
		TruckCertificateID:        rec.ID,
		TruckCertificationDetails: map[string]any{"id": rec.ID, "truckNumber": "T-7"},
		FieldMonitorName:          "Fran",
		DebrisType:                "vegetative",
		Latitude:                  sanitize.Clean("29.95"),
		TruckCapacity:             sanitize.Clean("40 cy"),
		CreatedAt:                 now,
	}
	lt.QRImagePath = "loadticket_" + lt.ShortID + ".png"
	createdLT, err := st.CreateLoadTicket(ctx, lt, &models.ArtifactJob{
		Key: lt.QRImagePath, OwnerShortID: lt.ShortID, ContentType: "image/png", Payload: "{}",
	})
	require.NoError(t, err)
	require.Equal(t, "40", createdLT.TruckCapacity.Decimal.String())

	// no foreign key on the certificate reference
	orphan := &models.LoadTicket{
		ID:                 uuid.NewString(),
		ShortID:            "loadticket_" + uuid.NewString(),
		TruckCertificateID: "does-not-exist",
		FieldMonitorName:   "Fran",
		CreatedAt:          now,
	}
	_, err = st.CreateLoadTicket(ctx, orphan, nil)
	require.NoError(t, err)

	d, details, err := st.CreateDisposalTicket(ctx, &models.DisposalTicket{
		ID:              uuid.NewString(),
		LoadTicketID:    createdLT.ShortID,
		DisposalSite:    "Site 4",
		ConfirmQuantity: sanitize.Clean("38"),
		CreatedAt:       now,
	})
	require.NoError(t, err)
	require.Equal(t, createdLT.ID, d.LoadTicketID)
	require.Equal(t, createdLT.ID, details.LoadTicket.ID)
	require.NotNil(t, details.TruckCertificate)
	require.Equal(t, rec.ShortID, details.TruckCertificate.ShortID)

	_, details, err = st.CreateDisposalTicket(ctx, &models.DisposalTicket{ID: uuid.NewString(), LoadTicketID: orphan.ID, DisposalSite: "Site 4"})
	require.NoError(t, err)
	require.Nil(t, details.TruckCertificate)

	_, _, err = st.CreateDisposalTicket(ctx, &models.DisposalTicket{ID: uuid.NewString(), LoadTicketID: "missing", DisposalSite: "Site 4"})
	require.True(t, apperr.Is(err, apperr.CodeNotFound))

	// outbox: rows are in their grace period, then become claimable
	claimed, err := st.ClaimPendingArtifacts(ctx, now, 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, claimed)

	later := now.Add(time.Hour)
	claimed, err = st.ClaimPendingArtifacts(ctx, later, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.WithinDuration(t, later.Add(time.Minute), claimed[0].NextAttemptAt, time.Second)

	again, err := st.ClaimPendingArtifacts(ctx, later, 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, again)

	job := claimed[0]
	rev, err := st.ArtifactRevision(ctx, job.Key)
	require.NoError(t, err)
	require.Equal(t, job.Revision, rev)

	require.NoError(t, st.MarkArtifactFailed(ctx, job.Key, job.Revision, "disk full", later))
	require.NoError(t, st.MarkArtifactDone(ctx, job.Key, job.Revision))
	done, err := st.ClaimPendingArtifacts(ctx, later.Add(time.Hour), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.NotEqual(t, job.Key, done[0].Key)

	rev, err = st.ArtifactRevision(ctx, "unknown.png")
	require.NoError(t, err)
	require.Zero(t, rev)
}
