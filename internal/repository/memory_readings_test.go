package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"vitalwatch-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReading(deviceID string, readingTime time.Time) *domain.DeviceReading {
	bpm := 72.0
	temp := 36.8
	return &domain.DeviceReading{
		DeviceID:         deviceID,
		LastHeartRateBPM: &bpm,
		LastBodyTempC:    &temp,
		LastReadingTime:  &readingTime,
		HeartStatus:      "Normal",
		TempStatus:       "Normal",
		OverallStatus:    "Healthy",
		IsValid:          true,
		UpdatedAt:        time.Now(),
	}
}

func TestMemoryReadings_UpsertPreservesSavedMarker(t *testing.T) {
	repo := NewMemoryReadingsRepo()
	ctx := context.Background()
	readingTime := time.Now().Add(-time.Minute)

	require.NoError(t, repo.UpsertReading(ctx, validReading("dev-1", readingTime)))
	_, err := repo.CommitReading(ctx, "dev-1")
	require.NoError(t, err)

	// re-ingest of the identical payload must not clear the dedup marker
	require.NoError(t, repo.UpsertReading(ctx, validReading("dev-1", readingTime)))
	_, err = repo.CommitReading(ctx, "dev-1")
	assert.ErrorIs(t, err, ErrAlreadySaved)

	// a new instant makes the reading committable again
	require.NoError(t, repo.UpsertReading(ctx, validReading("dev-1", readingTime.Add(time.Minute))))
	rec, err := repo.CommitReading(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.ID)
}

func TestMemoryReadings_CommitPreconditions(t *testing.T) {
	repo := NewMemoryReadingsRepo()
	ctx := context.Background()

	_, err := repo.CommitReading(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoValidReading)

	invalid := validReading("dev-1", time.Now())
	invalid.IsValid = false
	require.NoError(t, repo.UpsertReading(ctx, invalid))
	_, err = repo.CommitReading(ctx, "dev-1")
	assert.ErrorIs(t, err, ErrNoValidReading)

	noTime := validReading("dev-2", time.Now())
	noTime.LastReadingTime = nil
	require.NoError(t, repo.UpsertReading(ctx, noTime))
	_, err = repo.CommitReading(ctx, "dev-2")
	assert.ErrorIs(t, err, ErrNoValidReading)
}

func TestMemoryReadings_ConcurrentCommitsProduceOneRecord(t *testing.T) {
	repo := NewMemoryReadingsRepo()
	ctx := context.Background()
	readingTime := time.Now().Add(-time.Minute)
	require.NoError(t, repo.UpsertReading(ctx, validReading("dev-1", readingTime)))

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	saved := 0
	dup := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CommitReading(ctx, "dev-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved++
			case err == ErrAlreadySaved:
				dup++
			default:
				t.Errorf("unexpected commit error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, saved)
	assert.Equal(t, n-1, dup)

	records, err := repo.ListRecent(ctx, "dev-1", RecordFilters{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryReadings_ListRecentWindow(t *testing.T) {
	repo := NewMemoryReadingsRepo()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.UpsertReading(ctx, validReading("dev-1", base.Add(time.Duration(i)*time.Minute))))
		_, err := repo.CommitReading(ctx, "dev-1")
		require.NoError(t, err)
	}

	// most recent 3, oldest of the window first
	records, err := repo.ListRecent(ctx, "dev-1", RecordFilters{Limit: 3})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, base.Add(2*time.Minute), records[0].Timestamp)
	assert.Equal(t, base.Add(4*time.Minute), records[2].Timestamp)

	// date-range filter: [base+1m, base+3m)
	from := base.Add(time.Minute)
	to := base.Add(3 * time.Minute)
	records, err = repo.ListRecent(ctx, "dev-1", RecordFilters{Limit: 10, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, from, records[0].Timestamp)
}

func TestMemoryDevices_CreateAndLookup(t *testing.T) {
	repo := NewMemoryDevicesRepo()
	ctx := context.Background()

	id, err := repo.CreateDevice(ctx, &domain.Device{UserID: "u1", KodePerangkat: "ESP32-001", NamaPerangkat: "Ward A"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = repo.CreateDevice(ctx, &domain.Device{UserID: "u2", KodePerangkat: "ESP32-001"})
	assert.ErrorIs(t, err, ErrCodeTaken)

	d, err := repo.GetByCode(ctx, "ESP32-001")
	require.NoError(t, err)
	assert.Equal(t, "u1", d.UserID)
	assert.Equal(t, "Ward A", d.DisplayName())
	assert.Nil(t, d.LastSeen)

	_, err = repo.GetByID(ctx, "u2", id)
	assert.ErrorIs(t, err, ErrDeviceNotFound, "device lookup is account-scoped")

	seenAt := time.Now()
	require.NoError(t, repo.TouchLastSeen(ctx, id, seenAt))
	d, err = repo.GetByID(ctx, "u1", id)
	require.NoError(t, err)
	require.NotNil(t, d.LastSeen)
	assert.WithinDuration(t, seenAt, *d.LastSeen, time.Second)
}
