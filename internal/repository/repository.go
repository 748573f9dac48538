package repository

import (
	"context"
	"errors"
	"time"

	"vitalwatch-data/internal/domain"
)

// Sentinel errors surfaced to the service/HTTP layers.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrCodeTaken      = errors.New("device code already registered")
	ErrNoReading      = errors.New("no reading for device")
	// ErrNoValidReading: commit precondition failed (missing, invalid or
	// timestamp-less latest reading). No state change.
	ErrNoValidReading = errors.New("no valid reading to save")
	// ErrAlreadySaved: benign idempotent signal, not a failure. The latest
	// reading's instant is already committed to history.
	ErrAlreadySaved = errors.New("reading already saved")
)

// DevicesRepository 设备注册表
// Device codes are globally unique across accounts; code lookup is therefore
// not account-scoped (the ingest boundary only knows the code).
type DevicesRepository interface {
	GetByCode(ctx context.Context, kodePerangkat string) (*domain.Device, error)
	GetByID(ctx context.Context, userID, deviceID string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Device, error)

	// CreateDevice returns ErrCodeTaken when the code exists under any account.
	CreateDevice(ctx context.Context, device *domain.Device) (string, error)

	// TouchLastSeen tracks transport liveness, distinct from the reading's own clock.
	TouchLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error
}

// ReadingsRepository 每设备 latest reading（mutable keyed row）+ history commit
type ReadingsRepository interface {
	GetReading(ctx context.Context, deviceID string) (*domain.DeviceReading, error)

	// UpsertReading replaces all derived fields of the device's latest reading,
	// creating the row on first contact. It never touches the dedup marker.
	UpsertReading(ctx context.Context, reading *domain.DeviceReading) error

	// CommitReading promotes the current latest reading into a HealthRecord and
	// advances the dedup marker. The check-insert-advance sequence is atomic per
	// device: concurrent calls for one unchanged instant produce one record.
	CommitReading(ctx context.Context, deviceID string) (*domain.HealthRecord, error)
}

// HealthRecordsRepository append-only 历史记录
type HealthRecordsRepository interface {
	// ListRecent returns the most recent records in the window, oldest first.
	ListRecent(ctx context.Context, deviceID string, filters RecordFilters) ([]*domain.HealthRecord, error)
}

// RecordFilters 历史查询过滤器
type RecordFilters struct {
	Limit int        // most recent N, already clamped by the caller
	From  *time.Time // inclusive lower bound
	To    *time.Time // exclusive upper bound
}
