package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vitalwatch-data/internal/domain"
	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/store"
	"vitalwatch-data/internal/vitals"

	"go.uber.org/zap"
)

// ErrNoActiveDevice: the caller has no (or a stale) active device selection.
var ErrNoActiveDevice = errors.New("no active device")

// Save outcomes reported to the caller.
const (
	SaveOutcomeOK           = "ok"
	SaveOutcomeAlreadySaved = "already_saved"
)

// MonitorService serves the account-facing surface: latest status, the history
// commit, record listings and the devices dashboard. The caller identity and
// its active-device selection are request-scoped inputs, not ambient state.
type MonitorService struct {
	devices  repository.DevicesRepository
	readings repository.ReadingsRepository
	records  repository.HealthRecordsRepository
	kv       store.KV

	connThreshold time.Duration
	defaultLimit  int
	maxLimit      int

	logger *zap.Logger
	now    func() time.Time
}

func NewMonitorService(
	devices repository.DevicesRepository,
	readings repository.ReadingsRepository,
	records repository.HealthRecordsRepository,
	kv store.KV,
	connThreshold time.Duration,
	defaultLimit, maxLimit int,
	logger *zap.Logger,
) *MonitorService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit <= 0 {
		maxLimit = 500
	}
	return &MonitorService{
		devices:       devices,
		readings:      readings,
		records:       records,
		kv:            kv,
		connThreshold: connThreshold,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
		logger:        logger,
		now:           time.Now,
	}
}

func selectionKey(userID string) string {
	return "monitor:selection:user:" + userID
}

// SelectDevice makes deviceID the caller's active device. The device must
// belong to the caller.
func (s *MonitorService) SelectDevice(ctx context.Context, userID, deviceID string) error {
	if _, err := s.devices.GetByID(ctx, userID, deviceID); err != nil {
		return err
	}
	return s.kv.Set(ctx, selectionKey(userID), deviceID, 0)
}

// ActiveDevice resolves the caller's selection to a device row. A stale
// selection (device deleted or re-owned) is dropped and reported as none.
func (s *MonitorService) ActiveDevice(ctx context.Context, userID string) (*domain.Device, error) {
	deviceID, err := s.kv.Get(ctx, selectionKey(userID))
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, ErrNoActiveDevice
		}
		return nil, err
	}
	device, err := s.devices.GetByID(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			_ = s.kv.Delete(ctx, selectionKey(userID))
			return nil, ErrNoActiveDevice
		}
		return nil, err
	}
	return device, nil
}

// RegisterDevice creates a device under the caller's account and makes it the
// active selection.
func (s *MonitorService) RegisterDevice(ctx context.Context, userID, kodePerangkat, namaPerangkat string) (*domain.Device, error) {
	device := &domain.Device{
		UserID:        userID,
		KodePerangkat: kodePerangkat,
		NamaPerangkat: namaPerangkat,
		CreatedAt:     s.now(),
	}
	id, err := s.devices.CreateDevice(ctx, device)
	if err != nil {
		return nil, err
	}
	device.DeviceID = id
	if err := s.kv.Set(ctx, selectionKey(userID), id, 0); err != nil {
		s.logger.Warn("failed to store device selection", zap.Error(err))
	}
	return device, nil
}

// DeviceView 设备列表项
type DeviceView struct {
	ID            string     `json:"id"`
	KodePerangkat string     `json:"kode_perangkat"`
	NamaPerangkat string     `json:"nama_perangkat"`
	IsActive      bool       `json:"is_active"`
	LastSeen      *time.Time `json:"last_seen"`
}

// ListDevices returns the caller's devices, newest first.
func (s *MonitorService) ListDevices(ctx context.Context, userID string) ([]DeviceView, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	activeID, _ := s.kv.Get(ctx, selectionKey(userID))

	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, DeviceView{
			ID:            d.DeviceID,
			KodePerangkat: d.KodePerangkat,
			NamaPerangkat: d.NamaPerangkat,
			IsActive:      d.DeviceID == activeID,
			LastSeen:      d.LastSeen,
		})
	}
	return views, nil
}

// LatestStatus 当前读数视图（可直接序列化）
// Status fields are nil when the device has never reported; an empty string
// means a reading exists but that vital was absent.
type LatestStatus struct {
	KodePerangkat   string     `json:"kode_perangkat"`
	NamaPerangkat   string     `json:"nama_perangkat"`
	LastReadingTime *time.Time `json:"last_reading_time"`
	HeartRateBPM    *float64   `json:"heart_rate_bpm"`
	BodyTempC       *float64   `json:"body_temp_c"`
	HeartStatus     *string    `json:"heart_status"`
	TempStatus      *string    `json:"temp_status"`
	OverallStatus   *string    `json:"overall_status"`
	Connection      string     `json:"connection"`
	LastSeen        *time.Time `json:"last_seen"`
	IsValid         bool       `json:"is_valid"`
	CanSave         bool       `json:"can_save"`
}

// Latest returns the active device's current classified state. Connection is
// recomputed against the wall clock on every call, never cached.
func (s *MonitorService) Latest(ctx context.Context, userID string) (*LatestStatus, error) {
	device, err := s.ActiveDevice(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &LatestStatus{
		KodePerangkat: device.KodePerangkat,
		NamaPerangkat: device.DisplayName(),
		Connection:    vitals.ConnectionStatus(device.LastSeen, s.now(), s.connThreshold),
		LastSeen:      device.LastSeen,
	}

	reading, err := s.readings.GetReading(ctx, device.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNoReading) {
			return status, nil
		}
		return nil, err
	}

	status.LastReadingTime = reading.LastReadingTime
	status.HeartRateBPM = reading.LastHeartRateBPM
	status.BodyTempC = reading.LastBodyTempC
	status.HeartStatus = &reading.HeartStatus
	status.TempStatus = &reading.TempStatus
	status.OverallStatus = &reading.OverallStatus
	status.IsValid = reading.IsValid
	status.CanSave = reading.CanSave()
	return status, nil
}

// SaveLatest promotes the active device's latest reading into history.
// Returns SaveOutcomeAlreadySaved when the reading instant was committed
// before; that is an idempotent no-op, not a failure.
func (s *MonitorService) SaveLatest(ctx context.Context, userID string) (string, error) {
	device, err := s.ActiveDevice(ctx, userID)
	if err != nil {
		return "", err
	}

	record, err := s.readings.CommitReading(ctx, device.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadySaved) {
			return SaveOutcomeAlreadySaved, nil
		}
		return "", err
	}

	s.logger.Info("latest reading saved to history",
		zap.String("kode_perangkat", device.KodePerangkat),
		zap.Int64("record_id", record.ID),
	)
	return SaveOutcomeOK, nil
}

// RecordQuery 历史查询参数（日期为 "2006-01-02"，服务器本地时区）
type RecordQuery struct {
	Limit    int
	FromDate string
	ToDate   string
}

// Records lists the active device's most recent history window, oldest first.
func (s *MonitorService) Records(ctx context.Context, userID string, q RecordQuery) ([]*domain.HealthRecord, error) {
	device, err := s.ActiveDevice(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	filters := repository.RecordFilters{Limit: limit}
	if t, err := time.ParseInLocation("2006-01-02", q.FromDate, time.Local); err == nil {
		filters.From = &t
	}
	if t, err := time.ParseInLocation("2006-01-02", q.ToDate, time.Local); err == nil {
		// inclusive date bound: the whole "to" day belongs to the window
		end := t.AddDate(0, 0, 1)
		filters.To = &end
	}

	return s.records.ListRecent(ctx, device.DeviceID, filters)
}

// DeviceCard dashboard 列表项：设备 + latest 快照 + 连接状态
type DeviceCard struct {
	DeviceID        string     `json:"device_id"`
	KodePerangkat   string     `json:"kode_perangkat"`
	NamaPerangkat   string     `json:"nama_perangkat"`
	IsActive        bool       `json:"is_active"`
	Connection      string     `json:"connection"`
	LastSeen        *time.Time `json:"last_seen"`
	HeartRateBPM    *float64   `json:"heart_rate_bpm"`
	BodyTempC       *float64   `json:"body_temp_c"`
	OverallStatus   string     `json:"overall_status"`
	LastReadingTime *time.Time `json:"last_reading_time"`
}

// Cards builds the dashboard view over all the caller's devices. The KV
// snapshot is preferred; on a miss the reading repo is consulted.
func (s *MonitorService) Cards(ctx context.Context, userID string) ([]DeviceCard, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	activeID, _ := s.kv.Get(ctx, selectionKey(userID))
	now := s.now()

	cards := make([]DeviceCard, 0, len(devices))
	for _, d := range devices {
		card := DeviceCard{
			DeviceID:      d.DeviceID,
			KodePerangkat: d.KodePerangkat,
			NamaPerangkat: d.DisplayName(),
			IsActive:      d.DeviceID == activeID,
			Connection:    vitals.ConnectionStatus(d.LastSeen, now, s.connThreshold),
			LastSeen:      d.LastSeen,
		}

		if raw, err := s.kv.Get(ctx, snapshotKey(d.KodePerangkat)); err == nil {
			var snap readingSnapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				card.HeartRateBPM = snap.HeartRateBPM
				card.BodyTempC = snap.BodyTempC
				card.OverallStatus = snap.OverallStatus
				card.LastReadingTime = snap.LastReadingTime
				cards = append(cards, card)
				continue
			}
		}

		if reading, err := s.readings.GetReading(ctx, d.DeviceID); err == nil {
			card.HeartRateBPM = reading.LastHeartRateBPM
			card.BodyTempC = reading.LastBodyTempC
			card.OverallStatus = reading.OverallStatus
			card.LastReadingTime = reading.LastReadingTime
		}
		cards = append(cards, card)
	}
	return cards, nil
}
