package service

import (
	"context"
	"testing"
	"time"

	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type monitorFixture struct {
	ingest  *IngestService
	monitor *MonitorService
	kv      *store.MemoryKV
	now     *time.Time
}

func setupMonitor(t *testing.T) *monitorFixture {
	devices := repository.NewMemoryDevicesRepo()
	readings := repository.NewMemoryReadingsRepo()
	kv := store.NewMemoryKV()
	logger := zap.NewNop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ingest := NewIngestService(devices, readings, kv, 5*time.Minute, logger)
	ingest.now = func() time.Time { return now }

	monitor := NewMonitorService(devices, readings, readings, kv, 30*time.Second, 20, 500, logger)
	monitor.now = func() time.Time { return now }

	f := &monitorFixture{ingest: ingest, monitor: monitor, kv: kv, now: &now}

	_, err := monitor.RegisterDevice(context.Background(), "u1", "ESP32-001", "Ward A")
	require.NoError(t, err)
	return f
}

func TestMonitor_RegisterSelectsDevice(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	device, err := f.monitor.ActiveDevice(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ESP32-001", device.KodePerangkat)

	_, err = f.monitor.RegisterDevice(ctx, "u2", "ESP32-001", "")
	assert.ErrorIs(t, err, repository.ErrCodeTaken)
}

func TestMonitor_NoActiveDevice(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	_, err := f.monitor.Latest(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNoActiveDevice)

	_, err = f.monitor.SaveLatest(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNoActiveDevice)

	_, err = f.monitor.Records(ctx, "nobody", RecordQuery{})
	assert.ErrorIs(t, err, ErrNoActiveDevice)
}

func TestMonitor_SelectForeignDeviceRejected(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	device, err := f.monitor.ActiveDevice(ctx, "u1")
	require.NoError(t, err)

	err = f.monitor.SelectDevice(ctx, "u2", device.DeviceID)
	assert.ErrorIs(t, err, repository.ErrDeviceNotFound)
}

func TestMonitor_LatestBeforeFirstIngest(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	status, err := f.monitor.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ESP32-001", status.KodePerangkat)
	assert.Equal(t, "Ward A", status.NamaPerangkat)
	assert.Nil(t, status.HeartRateBPM)
	assert.Nil(t, status.HeartStatus)
	assert.Equal(t, "disconnected", status.Connection)
	assert.False(t, status.IsValid)
	assert.False(t, status.CanSave)
}

func TestMonitor_RoundTrip(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	require.NoError(t, f.ingest.Ingest(ctx, TelemetryPayload{
		KodePerangkat: "ESP32-001",
		HeartRateBPM:  72.0,
		BodyTempC:     36.8,
		Timestamp:     "2026-03-01T11:59:00Z",
	}))

	status, err := f.monitor.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 72.0, *status.HeartRateBPM)
	assert.Equal(t, 36.8, *status.BodyTempC)
	assert.Equal(t, "Normal", *status.HeartStatus)
	assert.Equal(t, "Healthy", *status.OverallStatus)
	assert.Equal(t, "connected", status.Connection)
	assert.True(t, status.IsValid)
	assert.True(t, status.CanSave)

	// first save commits exactly one record
	outcome, err := f.monitor.SaveLatest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, SaveOutcomeOK, outcome)

	// second save with no new telemetry is the benign idempotent signal
	outcome, err = f.monitor.SaveLatest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, SaveOutcomeAlreadySaved, outcome)

	records, err := f.monitor.Records(ctx, "u1", RecordQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 72.0, records[0].HeartRateBPM)
	assert.Equal(t, "Healthy", records[0].OverallStatus)

	// can_save flips off once committed, back on with fresh telemetry
	status, err = f.monitor.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.CanSave)

	require.NoError(t, f.ingest.Ingest(ctx, TelemetryPayload{
		KodePerangkat: "ESP32-001",
		HeartRateBPM:  110.0,
		BodyTempC:     38.2,
		Timestamp:     "2026-03-01T12:00:30Z",
	}))
	status, err = f.monitor.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.CanSave)
	assert.Equal(t, "Critical", *status.OverallStatus)
}

func TestMonitor_SaveInvalidReading(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	require.NoError(t, f.ingest.Ingest(ctx, TelemetryPayload{
		KodePerangkat: "ESP32-001",
		HeartRateBPM:  300.0, // classifiable but implausible
		BodyTempC:     36.8,
	}))

	_, err := f.monitor.SaveLatest(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrNoValidReading)
}

func TestMonitor_ConnectionReflectsQueryTime(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	require.NoError(t, f.ingest.Ingest(ctx, TelemetryPayload{
		KodePerangkat: "ESP32-001",
		HeartRateBPM:  72.0,
		BodyTempC:     36.8,
	}))

	status, err := f.monitor.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "connected", status.Connection)

	// liveness is recomputed against the wall clock, not the write clock
	*f.now = f.now.Add(31 * time.Second)
	status, err = f.monitor.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "disconnected", status.Connection)
}

func TestMonitor_StaleSelectionDropped(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	// selection points at a device id that no longer resolves for the user
	require.NoError(t, f.kv.Set(ctx, "monitor:selection:user:u1", "gone", 0))

	_, err := f.monitor.Latest(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoActiveDevice)

	_, err = f.kv.Get(ctx, "monitor:selection:user:u1")
	assert.ErrorIs(t, err, store.ErrMiss, "stale selection should be cleared")
}

func TestMonitor_CardsFallBackToRepo(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	require.NoError(t, f.ingest.Ingest(ctx, TelemetryPayload{
		KodePerangkat: "ESP32-001",
		HeartRateBPM:  72.0,
		BodyTempC:     36.8,
	}))
	// drop the snapshot: the cards view must fall back to the readings repo
	require.NoError(t, f.kv.Delete(ctx, "monitor:reading:ESP32-001:latest"))

	cards, err := f.monitor.Cards(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "ESP32-001", cards[0].KodePerangkat)
	assert.True(t, cards[0].IsActive)
	assert.Equal(t, "connected", cards[0].Connection)
	assert.Equal(t, 72.0, *cards[0].HeartRateBPM)
	assert.Equal(t, "Healthy", cards[0].OverallStatus)
}

func TestMonitor_RecordsLimitClamped(t *testing.T) {
	f := setupMonitor(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.ingest.Ingest(ctx, TelemetryPayload{
			KodePerangkat: "ESP32-001",
			HeartRateBPM:  70.0,
			BodyTempC:     36.5,
			Timestamp:     base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}))
		_, err := f.monitor.SaveLatest(ctx, "u1")
		require.NoError(t, err)
	}

	records, err := f.monitor.Records(ctx, "u1", RecordQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	// oldest of the window first
	assert.True(t, records[0].Timestamp.Before(records[1].Timestamp))

	records, err = f.monitor.Records(ctx, "u1", RecordQuery{Limit: 100000})
	require.NoError(t, err)
	assert.Len(t, records, 5, "limit is clamped to the configured max")
}
