package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordPatch_Presence(t *testing.T) {
	var p RecordPatch
	require.NoError(t, json.Unmarshal([]byte(`{"ownerName":"","vehicleWeight":"6,200 lbs","meta":"{\"site\":\"A\"}","expiryAt":null}`), &p))

	require.True(t, p.OwnerName.Set)
	require.Equal(t, "", p.OwnerName.Value)
	require.False(t, p.DriverName.Set)

	require.True(t, p.VehicleWeight.Set)
	require.Equal(t, "6200", p.VehicleWeight.Value.Decimal.String())
	require.False(t, p.GoodsWeight.Set)

	require.True(t, p.Meta.Set)
	require.Equal(t, "A", p.Meta.Value["site"])

	require.True(t, p.ExpiryAt.Set)
	require.Nil(t, p.ExpiryAt.Value)
}

func TestTrackingRecord_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.False(t, (&TrackingRecord{}).Expired(now))
	require.True(t, (&TrackingRecord{ExpiryAt: &past}).Expired(now))
	require.False(t, (&TrackingRecord{ExpiryAt: &future}).Expired(now))
}

func TestTrackingRecord_PreviouslyUpdated(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &TrackingRecord{CreatedAt: created, UpdatedAt: created}
	require.False(t, r.PreviouslyUpdated())

	r.UpdatedAt = created.Add(time.Second)
	require.True(t, r.PreviouslyUpdated())
}

func TestTrackingRecord_CloneIsDeep(t *testing.T) {
	r := &TrackingRecord{ShortID: "qr_1"}
	r.Color = []string{"red"}
	r.Meta = map[string]any{"a": "1"}

	c := r.Clone()
	c.Color[0] = "blue"
	c.Meta["a"] = "2"

	require.Equal(t, "red", r.Color[0])
	require.Equal(t, "1", r.Meta["a"])
	require.Equal(t, "qr_1", c.ShortID)
}
