package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"vitalwatch-data/internal/domain"
	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/store"
	"vitalwatch-data/internal/vitals"

	"go.uber.org/zap"
)

// ErrMissingDeviceCode: the payload carried no kode_perangkat.
var ErrMissingDeviceCode = errors.New("missing kode_perangkat")

// TelemetryPayload 设备上报报文（HTTP ingest 与 MQTT 通道共用）
// Numeric fields are typed `any`: sensors send numbers or quoted numbers, and
// garbage must degrade to an absent value instead of failing the request.
type TelemetryPayload struct {
	KodePerangkat string `json:"kode_perangkat"`
	HeartRateBPM  any    `json:"heart_rate_bpm"`
	BodyTempC     any    `json:"body_temp_c"`
	Timestamp     any    `json:"timestamp"`
}

// IngestService turns raw telemetry into the device's classified latest
// reading. Lenient on input, never creates history rows.
type IngestService struct {
	devices     repository.DevicesRepository
	readings    repository.ReadingsRepository
	kv          store.KV
	snapshotTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewIngestService(
	devices repository.DevicesRepository,
	readings repository.ReadingsRepository,
	kv store.KV,
	snapshotTTL time.Duration,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		devices:     devices,
		readings:    readings,
		kv:          kv,
		snapshotTTL: snapshotTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Ingest validates the device code, coerces the vitals, classifies them and
// upserts the latest reading. last_seen is set to the server clock (transport
// liveness), separate from the reading's own timestamp. Re-ingesting an
// identical payload simply overwrites the row; dedup belongs to the save step.
func (s *IngestService) Ingest(ctx context.Context, p TelemetryPayload) error {
	if strings.TrimSpace(p.KodePerangkat) == "" {
		return ErrMissingDeviceCode
	}

	device, err := s.devices.GetByCode(ctx, p.KodePerangkat)
	if err != nil {
		return err
	}

	bpm := coerceFloat(p.HeartRateBPM)
	temp := coerceFloat(p.BodyTempC)
	readingTime := coerceTimestamp(p.Timestamp, s.now())

	heartStatus := vitals.HeartStatus(bpm)
	tempStatus := vitals.TempStatus(temp)

	reading := &domain.DeviceReading{
		DeviceID:         device.DeviceID,
		LastHeartRateBPM: bpm,
		LastBodyTempC:    temp,
		LastReadingTime:  &readingTime,
		HeartStatus:      heartStatus,
		TempStatus:       tempStatus,
		OverallStatus:    vitals.OverallStatus(heartStatus, tempStatus),
		IsValid:          vitals.IsValid(bpm, temp),
		UpdatedAt:        s.now(),
	}
	if err := s.readings.UpsertReading(ctx, reading); err != nil {
		return err
	}

	seenAt := s.now()
	if err := s.devices.TouchLastSeen(ctx, device.DeviceID, seenAt); err != nil {
		return err
	}

	s.cacheSnapshot(ctx, device, reading, seenAt)

	s.logger.Debug("telemetry ingested",
		zap.String("kode_perangkat", device.KodePerangkat),
		zap.Bool("is_valid", reading.IsValid),
		zap.String("overall_status", reading.OverallStatus),
	)
	return nil
}

// readingSnapshot KV 缓存的 latest reading 快照（dashboard cards 读取）
type readingSnapshot struct {
	KodePerangkat   string     `json:"kode_perangkat"`
	NamaPerangkat   string     `json:"nama_perangkat"`
	HeartRateBPM    *float64   `json:"heart_rate_bpm"`
	BodyTempC       *float64   `json:"body_temp_c"`
	LastReadingTime *time.Time `json:"last_reading_time"`
	HeartStatus     string     `json:"heart_status"`
	TempStatus      string     `json:"temp_status"`
	OverallStatus   string     `json:"overall_status"`
	IsValid         bool       `json:"is_valid"`
	LastSeen        *time.Time `json:"last_seen"`
}

func snapshotKey(kodePerangkat string) string {
	return "monitor:reading:" + kodePerangkat + ":latest"
}

// cacheSnapshot is best-effort: the repositories stay the source of truth and
// a degraded cache only costs the cards view a repo round trip.
func (s *IngestService) cacheSnapshot(ctx context.Context, device *domain.Device, reading *domain.DeviceReading, seenAt time.Time) {
	snap := readingSnapshot{
		KodePerangkat:   device.KodePerangkat,
		NamaPerangkat:   device.DisplayName(),
		HeartRateBPM:    reading.LastHeartRateBPM,
		BodyTempC:       reading.LastBodyTempC,
		LastReadingTime: reading.LastReadingTime,
		HeartStatus:     reading.HeartStatus,
		TempStatus:      reading.TempStatus,
		OverallStatus:   reading.OverallStatus,
		IsValid:         reading.IsValid,
		LastSeen:        &seenAt,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, snapshotKey(device.KodePerangkat), string(raw), s.snapshotTTL); err != nil {
		s.logger.Warn("failed to cache reading snapshot", zap.Error(err))
	}
}

// coerceFloat is the parse-or-absent conversion at the ingestion boundary:
// unparseable numeric telemetry becomes nil, never an error.
func coerceFloat(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// coerceTimestamp parses an ISO-8601 string. Missing or unparseable values
// default to the server clock; a timestamp with no zone is server-local time.
func coerceTimestamp(v any, fallback time.Time) time.Time {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return fallback
}
