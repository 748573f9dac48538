// 建表脚本：go run scripts/create_tables.go
package main

import (
	"fmt"
	"os"

	"vitalwatch-data/internal/config"
	"vitalwatch-data/internal/database"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
    device_id       UUID PRIMARY KEY,
    user_id         TEXT NOT NULL,
    kode_perangkat  TEXT NOT NULL UNIQUE,
    nama_perangkat  TEXT NOT NULL DEFAULT '',
    last_seen       TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_devices_user_id ON devices (user_id);

CREATE TABLE IF NOT EXISTS device_readings (
    device_id               UUID PRIMARY KEY REFERENCES devices (device_id),
    last_heart_rate_bpm     DOUBLE PRECISION,
    last_body_temp_c        DOUBLE PRECISION,
    last_reading_time       TIMESTAMPTZ,
    heart_status            TEXT NOT NULL DEFAULT '',
    temp_status             TEXT NOT NULL DEFAULT '',
    overall_status          TEXT NOT NULL DEFAULT '',
    is_valid                BOOLEAN NOT NULL DEFAULT FALSE,
    last_saved_reading_time TIMESTAMPTZ,
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS health_records (
    id              BIGSERIAL PRIMARY KEY,
    device_id       UUID NOT NULL REFERENCES devices (device_id),
    timestamp       TIMESTAMPTZ NOT NULL,
    heart_rate_bpm  DOUBLE PRECISION NOT NULL,
    body_temp_c     DOUBLE PRECISION NOT NULL,
    heart_status    TEXT NOT NULL,
    temp_status     TEXT NOT NULL,
    overall_status  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_health_records_device_time
    ON health_records (device_id, timestamp DESC);
`

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create tables: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("vitalwatch tables created")
}
