package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"vitalwatch-data/internal/domain"
)

type PostgresHealthRecordsRepo struct {
	db *sql.DB
}

func NewPostgresHealthRecordsRepo(db *sql.DB) *PostgresHealthRecordsRepo {
	return &PostgresHealthRecordsRepo{db: db}
}

var _ HealthRecordsRepository = (*PostgresHealthRecordsRepo)(nil)

// ListRecent picks the newest N rows of the window, then re-orders ascending so
// the caller gets the window oldest-first (chart order).
func (r *PostgresHealthRecordsRepo) ListRecent(ctx context.Context, deviceID string, filters RecordFilters) ([]*domain.HealthRecord, error) {
	where := []string{"device_id = $1"}
	args := []any{deviceID}
	argN := 2

	if filters.From != nil {
		where = append(where, fmt.Sprintf("timestamp >= $%d", argN))
		args = append(args, *filters.From)
		argN++
	}
	if filters.To != nil {
		where = append(where, fmt.Sprintf("timestamp < $%d", argN))
		args = append(args, *filters.To)
		argN++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT id, device_id::text, timestamp, heart_rate_bpm, body_temp_c,
		       heart_status, temp_status, overall_status
		FROM (
			SELECT id, device_id, timestamp, heart_rate_bpm, body_temp_c,
			       heart_status, temp_status, overall_status
			FROM health_records
			WHERE %s
			ORDER BY timestamp DESC, id DESC
			LIMIT $%d
		) recent
		ORDER BY timestamp ASC, id ASC`,
		strings.Join(where, " AND "), argN,
	)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list health records: %w", err)
	}
	defer rows.Close()

	records := []*domain.HealthRecord{}
	for rows.Next() {
		var rec domain.HealthRecord
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Timestamp, &rec.HeartRateBPM, &rec.BodyTempC,
			&rec.HeartStatus, &rec.TempStatus, &rec.OverallStatus); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
