package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"vitalwatch-data/internal/domain"

	"github.com/google/uuid"
)

// MemoryDevicesRepo: 用于 DB 未就绪时的联测（与 Postgres 实现语义一致）
type MemoryDevicesRepo struct {
	mu sync.RWMutex

	byID   map[string]*domain.Device
	byCode map[string]string // kode_perangkat -> device_id
}

func NewMemoryDevicesRepo() *MemoryDevicesRepo {
	return &MemoryDevicesRepo{
		byID:   map[string]*domain.Device{},
		byCode: map[string]string{},
	}
}

var _ DevicesRepository = (*MemoryDevicesRepo)(nil)

func cloneDevice(d *domain.Device) *domain.Device {
	c := *d
	if d.LastSeen != nil {
		t := *d.LastSeen
		c.LastSeen = &t
	}
	return &c
}

func (r *MemoryDevicesRepo) GetByCode(_ context.Context, kodePerangkat string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[kodePerangkat]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return cloneDevice(r.byID[id]), nil
}

func (r *MemoryDevicesRepo) GetByID(_ context.Context, userID, deviceID string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[deviceID]
	if !ok || d.UserID != userID {
		return nil, ErrDeviceNotFound
	}
	return cloneDevice(d), nil
}

func (r *MemoryDevicesRepo) ListByUser(_ context.Context, userID string) ([]*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := []*domain.Device{}
	for _, d := range r.byID {
		if d.UserID == userID {
			devices = append(devices, cloneDevice(d))
		}
	}
	// newest first, matching the Postgres ORDER BY created_at DESC
	sort.Slice(devices, func(i, j int) bool {
		if !devices[i].CreatedAt.Equal(devices[j].CreatedAt) {
			return devices[i].CreatedAt.After(devices[j].CreatedAt)
		}
		return devices[i].DeviceID > devices[j].DeviceID
	})
	return devices, nil
}

func (r *MemoryDevicesRepo) CreateDevice(_ context.Context, device *domain.Device) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[device.KodePerangkat]; exists {
		return "", ErrCodeTaken
	}

	d := cloneDevice(device)
	if d.DeviceID == "" {
		d.DeviceID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	r.byID[d.DeviceID] = d
	r.byCode[d.KodePerangkat] = d.DeviceID
	return d.DeviceID, nil
}

func (r *MemoryDevicesRepo) TouchLastSeen(_ context.Context, deviceID string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[deviceID]
	if !ok {
		return ErrDeviceNotFound
	}
	t := seenAt
	d.LastSeen = &t
	return nil
}
