package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vitalwatch-data/internal/domain"

	"github.com/google/uuid"
)

type PostgresDevicesRepo struct {
	db *sql.DB
}

func NewPostgresDevicesRepo(db *sql.DB) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db}
}

var _ DevicesRepository = (*PostgresDevicesRepo)(nil)

const deviceColumns = `device_id::text, user_id, kode_perangkat, nama_perangkat, last_seen, created_at`

func scanDevice(row *sql.Row) (*domain.Device, error) {
	var d domain.Device
	var lastSeen sql.NullTime
	err := row.Scan(&d.DeviceID, &d.UserID, &d.KodePerangkat, &d.NamaPerangkat, &lastSeen, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeen = &t
	}
	return &d, nil
}

func (r *PostgresDevicesRepo) GetByCode(ctx context.Context, kodePerangkat string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE kode_perangkat = $1`,
		kodePerangkat,
	)
	return scanDevice(row)
}

func (r *PostgresDevicesRepo) GetByID(ctx context.Context, userID, deviceID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = $1 AND user_id = $2`,
		deviceID, userID,
	)
	return scanDevice(row)
}

func (r *PostgresDevicesRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := []*domain.Device{}
	for rows.Next() {
		var d domain.Device
		var lastSeen sql.NullTime
		if err := rows.Scan(&d.DeviceID, &d.UserID, &d.KodePerangkat, &d.NamaPerangkat, &lastSeen, &d.CreatedAt); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			t := lastSeen.Time
			d.LastSeen = &t
		}
		devices = append(devices, &d)
	}
	return devices, rows.Err()
}

func (r *PostgresDevicesRepo) CreateDevice(ctx context.Context, device *domain.Device) (string, error) {
	id := device.DeviceID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := device.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// kode_perangkat carries a unique constraint; ON CONFLICT DO NOTHING plus
	// RETURNING lets the duplicate surface as a missing row instead of an error.
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO devices (device_id, user_id, kode_perangkat, nama_perangkat, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (kode_perangkat) DO NOTHING
		 RETURNING device_id::text`,
		id, device.UserID, device.KodePerangkat, device.NamaPerangkat, createdAt,
	)
	var created string
	if err := row.Scan(&created); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrCodeTaken
		}
		return "", fmt.Errorf("create device: %w", err)
	}
	return created, nil
}

func (r *PostgresDevicesRepo) TouchLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen = $2 WHERE device_id = $1`,
		deviceID, seenAt,
	)
	if err != nil {
		return fmt.Errorf("touch last_seen: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
