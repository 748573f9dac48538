package domain

import "time"

// HealthRecord 已保存的历史读数（对应 health_records 表，append-only）
// 只有有效读数才会被提交，所以数值字段非空。
type HealthRecord struct {
	ID            int64     `db:"id"`
	DeviceID      string    `db:"device_id"`
	Timestamp     time.Time `db:"timestamp"`
	HeartRateBPM  float64   `db:"heart_rate_bpm"`
	BodyTempC     float64   `db:"body_temp_c"`
	HeartStatus   string    `db:"heart_status"`
	TempStatus    string    `db:"temp_status"`
	OverallStatus string    `db:"overall_status"`
}
