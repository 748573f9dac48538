package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"vitalwatch-data/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockReadingsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresReadingsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	repo := NewPostgresReadingsRepo(db, zap.NewNop())
	return db, mock, repo
}

func readingRows(deviceID string, bpm, temp any, readingTime, savedTime any, valid bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"device_id", "last_heart_rate_bpm", "last_body_temp_c", "last_reading_time",
		"heart_status", "temp_status", "overall_status", "is_valid",
		"last_saved_reading_time", "updated_at",
	}).AddRow(deviceID, bpm, temp, readingTime, "Normal", "Normal", "Healthy", valid, savedTime, time.Now())
}

func TestGetReading_Success(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	deviceID := uuid.New().String()
	readingTime := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`SELECT`).
		WithArgs(deviceID).
		WillReturnRows(readingRows(deviceID, 72.0, 36.8, readingTime, nil, true))

	reading, err := repo.GetReading(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Equal(t, deviceID, reading.DeviceID)
	require.NotNil(t, reading.LastHeartRateBPM)
	assert.Equal(t, 72.0, *reading.LastHeartRateBPM)
	assert.Nil(t, reading.LastSavedReadingTime)
	assert.True(t, reading.CanSave())
}

func TestGetReading_NoRow(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	deviceID := uuid.New().String()
	mock.ExpectQuery(`SELECT`).
		WithArgs(deviceID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetReading(context.Background(), deviceID)
	assert.ErrorIs(t, err, ErrNoReading)
}

func TestCommitReading_InsertsAndAdvancesMarker(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	deviceID := uuid.New().String()
	readingTime := time.Now().Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
		WithArgs(deviceID).
		WillReturnRows(readingRows(deviceID, 72.0, 36.8, readingTime, nil, true))
	mock.ExpectQuery(`INSERT INTO health_records`).
		WithArgs(deviceID, readingTime, 72.0, 36.8, "Normal", "Normal", "Healthy").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))
	mock.ExpectExec(`UPDATE device_readings SET last_saved_reading_time`).
		WithArgs(deviceID, readingTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.CommitReading(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Equal(t, int64(41), record.ID)
	assert.Equal(t, "Healthy", record.OverallStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitReading_AlreadySaved(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	deviceID := uuid.New().String()
	readingTime := time.Now().Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
		WithArgs(deviceID).
		WillReturnRows(readingRows(deviceID, 72.0, 36.8, readingTime, readingTime, true))
	mock.ExpectRollback()

	_, err := repo.CommitReading(context.Background(), deviceID)
	assert.ErrorIs(t, err, ErrAlreadySaved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitReading_InvalidReading(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	deviceID := uuid.New().String()
	readingTime := time.Now().Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
		WithArgs(deviceID).
		WillReturnRows(readingRows(deviceID, 300.0, 36.8, readingTime, nil, false))
	mock.ExpectRollback()

	_, err := repo.CommitReading(context.Background(), deviceID)
	assert.ErrorIs(t, err, ErrNoValidReading)
}

func TestCommitReading_NoReadingRow(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	deviceID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
		WithArgs(deviceID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CommitReading(context.Background(), deviceID)
	assert.ErrorIs(t, err, ErrNoValidReading)
}

func TestUpsertReading_DoesNotTouchSavedMarker(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	deviceID := uuid.New().String()
	readingTime := time.Now()
	bpm := 88.0
	temp := 37.1

	mock.ExpectExec(`INSERT INTO device_readings`).
		WithArgs(deviceID,
			sql.NullFloat64{Float64: bpm, Valid: true},
			sql.NullFloat64{Float64: temp, Valid: true},
			sql.NullTime{Time: readingTime, Valid: true},
			"Normal", "Normal", "Healthy", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertReading(context.Background(), &domain.DeviceReading{
		DeviceID:         deviceID,
		LastHeartRateBPM: &bpm,
		LastBodyTempC:    &temp,
		LastReadingTime:  &readingTime,
		HeartStatus:      "Normal",
		TempStatus:       "Normal",
		OverallStatus:    "Healthy",
		IsValid:          true,
		UpdatedAt:        time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
