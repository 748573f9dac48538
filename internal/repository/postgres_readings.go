package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vitalwatch-data/internal/domain"

	"go.uber.org/zap"
)

// PostgresReadingsRepo owns the device_readings row per device and the
// history-commit write into health_records (both touched in one transaction).
type PostgresReadingsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresReadingsRepo(db *sql.DB, logger *zap.Logger) *PostgresReadingsRepo {
	return &PostgresReadingsRepo{db: db, logger: logger}
}

var _ ReadingsRepository = (*PostgresReadingsRepo)(nil)

const readingColumns = `device_id::text, last_heart_rate_bpm, last_body_temp_c, last_reading_time,
	heart_status, temp_status, overall_status, is_valid, last_saved_reading_time, updated_at`

func scanReading(scan func(dest ...any) error) (*domain.DeviceReading, error) {
	var r domain.DeviceReading
	var bpm, temp sql.NullFloat64
	var readingTime, savedTime sql.NullTime
	err := scan(&r.DeviceID, &bpm, &temp, &readingTime,
		&r.HeartStatus, &r.TempStatus, &r.OverallStatus, &r.IsValid, &savedTime, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if bpm.Valid {
		v := bpm.Float64
		r.LastHeartRateBPM = &v
	}
	if temp.Valid {
		v := temp.Float64
		r.LastBodyTempC = &v
	}
	if readingTime.Valid {
		t := readingTime.Time
		r.LastReadingTime = &t
	}
	if savedTime.Valid {
		t := savedTime.Time
		r.LastSavedReadingTime = &t
	}
	return &r, nil
}

func (r *PostgresReadingsRepo) GetReading(ctx context.Context, deviceID string) (*domain.DeviceReading, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM device_readings WHERE device_id = $1`,
		deviceID,
	)
	reading, err := scanReading(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoReading
		}
		return nil, err
	}
	return reading, nil
}

// UpsertReading recomputes the whole row. last_saved_reading_time is the dedup
// marker and is deliberately left alone on conflict.
func (r *PostgresReadingsRepo) UpsertReading(ctx context.Context, reading *domain.DeviceReading) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_readings
			(device_id, last_heart_rate_bpm, last_body_temp_c, last_reading_time,
			 heart_status, temp_status, overall_status, is_valid, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (device_id) DO UPDATE SET
			last_heart_rate_bpm = EXCLUDED.last_heart_rate_bpm,
			last_body_temp_c    = EXCLUDED.last_body_temp_c,
			last_reading_time   = EXCLUDED.last_reading_time,
			heart_status        = EXCLUDED.heart_status,
			temp_status         = EXCLUDED.temp_status,
			overall_status      = EXCLUDED.overall_status,
			is_valid            = EXCLUDED.is_valid,
			updated_at          = EXCLUDED.updated_at`,
		reading.DeviceID,
		nullFloat(reading.LastHeartRateBPM),
		nullFloat(reading.LastBodyTempC),
		nullTime(reading.LastReadingTime),
		reading.HeartStatus,
		reading.TempStatus,
		reading.OverallStatus,
		reading.IsValid,
		reading.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert reading: %w", err)
	}
	return nil
}

// CommitReading runs the dedup-check, record insert and marker advance inside
// one transaction with the reading row locked, so two concurrent commits for
// the same instant cannot both pass the check.
func (r *PostgresReadingsRepo) CommitReading(ctx context.Context, deviceID string) (*domain.HealthRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM device_readings WHERE device_id = $1 FOR UPDATE`,
		deviceID,
	)
	reading, err := scanReading(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoValidReading
		}
		return nil, err
	}

	if !reading.IsValid || reading.LastReadingTime == nil {
		return nil, ErrNoValidReading
	}
	if reading.LastSavedReadingTime != nil && reading.LastSavedReadingTime.Equal(*reading.LastReadingTime) {
		return nil, ErrAlreadySaved
	}

	record := &domain.HealthRecord{
		DeviceID:      deviceID,
		Timestamp:     *reading.LastReadingTime,
		HeartRateBPM:  *reading.LastHeartRateBPM,
		BodyTempC:     *reading.LastBodyTempC,
		HeartStatus:   reading.HeartStatus,
		TempStatus:    reading.TempStatus,
		OverallStatus: reading.OverallStatus,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO health_records
			(device_id, timestamp, heart_rate_bpm, body_temp_c, heart_status, temp_status, overall_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		record.DeviceID, record.Timestamp, record.HeartRateBPM, record.BodyTempC,
		record.HeartStatus, record.TempStatus, record.OverallStatus,
	).Scan(&record.ID)
	if err != nil {
		return nil, fmt.Errorf("insert health record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE device_readings SET last_saved_reading_time = $2 WHERE device_id = $1`,
		deviceID, *reading.LastReadingTime,
	); err != nil {
		return nil, fmt.Errorf("advance saved marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reading tx: %w", err)
	}

	if r.logger != nil {
		r.logger.Info("reading committed to history",
			zap.String("device_id", deviceID),
			zap.Int64("record_id", record.ID),
			zap.Time("reading_time", record.Timestamp),
		)
	}
	return record, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
