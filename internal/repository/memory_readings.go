package repository

import (
	"context"
	"sort"
	"sync"

	"vitalwatch-data/internal/domain"
)

// MemoryReadingsRepo keeps the mutable latest-reading rows and the append-only
// history log together so CommitReading can cover both under one lock, the same
// guarantee the Postgres implementation gets from its transaction.
type MemoryReadingsRepo struct {
	mu sync.RWMutex

	readings map[string]*domain.DeviceReading // deviceID -> latest
	records  []*domain.HealthRecord           // append-only
	nextID   int64
}

func NewMemoryReadingsRepo() *MemoryReadingsRepo {
	return &MemoryReadingsRepo{
		readings: map[string]*domain.DeviceReading{},
		nextID:   1,
	}
}

var (
	_ ReadingsRepository      = (*MemoryReadingsRepo)(nil)
	_ HealthRecordsRepository = (*MemoryReadingsRepo)(nil)
)

func cloneReading(r *domain.DeviceReading) *domain.DeviceReading {
	c := *r
	if r.LastHeartRateBPM != nil {
		v := *r.LastHeartRateBPM
		c.LastHeartRateBPM = &v
	}
	if r.LastBodyTempC != nil {
		v := *r.LastBodyTempC
		c.LastBodyTempC = &v
	}
	if r.LastReadingTime != nil {
		t := *r.LastReadingTime
		c.LastReadingTime = &t
	}
	if r.LastSavedReadingTime != nil {
		t := *r.LastSavedReadingTime
		c.LastSavedReadingTime = &t
	}
	return &c
}

func (r *MemoryReadingsRepo) GetReading(_ context.Context, deviceID string) (*domain.DeviceReading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reading, ok := r.readings[deviceID]
	if !ok {
		return nil, ErrNoReading
	}
	return cloneReading(reading), nil
}

func (r *MemoryReadingsRepo) UpsertReading(_ context.Context, reading *domain.DeviceReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := cloneReading(reading)
	if existing, ok := r.readings[reading.DeviceID]; ok {
		// dedup marker survives ingest overwrites
		c.LastSavedReadingTime = existing.LastSavedReadingTime
	} else {
		c.LastSavedReadingTime = nil
	}
	r.readings[reading.DeviceID] = c
	return nil
}

func (r *MemoryReadingsRepo) CommitReading(_ context.Context, deviceID string) (*domain.HealthRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reading, ok := r.readings[deviceID]
	if !ok || !reading.IsValid || reading.LastReadingTime == nil {
		return nil, ErrNoValidReading
	}
	if reading.LastSavedReadingTime != nil && reading.LastSavedReadingTime.Equal(*reading.LastReadingTime) {
		return nil, ErrAlreadySaved
	}

	record := &domain.HealthRecord{
		ID:            r.nextID,
		DeviceID:      deviceID,
		Timestamp:     *reading.LastReadingTime,
		HeartRateBPM:  *reading.LastHeartRateBPM,
		BodyTempC:     *reading.LastBodyTempC,
		HeartStatus:   reading.HeartStatus,
		TempStatus:    reading.TempStatus,
		OverallStatus: reading.OverallStatus,
	}
	r.nextID++
	r.records = append(r.records, record)

	t := *reading.LastReadingTime
	reading.LastSavedReadingTime = &t

	rec := *record
	return &rec, nil
}

func (r *MemoryReadingsRepo) ListRecent(_ context.Context, deviceID string, filters RecordFilters) ([]*domain.HealthRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []*domain.HealthRecord{}
	for _, rec := range r.records {
		if rec.DeviceID != deviceID {
			continue
		}
		if filters.From != nil && rec.Timestamp.Before(*filters.From) {
			continue
		}
		if filters.To != nil && !rec.Timestamp.Before(*filters.To) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].ID < matched[j].ID
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	out := make([]*domain.HealthRecord, len(matched))
	for i, rec := range matched {
		c := *rec
		out[i] = &c
	}
	return out, nil
}
