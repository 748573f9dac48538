package domain

import "time"

// DeviceReading 设备最新读数（对应 device_readings 表，每设备一行）
// 数值与时间字段可空：遥测字段缺失或无法解析时按"缺失"入库，不拒收。
// last_saved_reading_time 记录最近一次入史的读数时刻，用于保存去重。
type DeviceReading struct {
	DeviceID             string     `db:"device_id"`
	LastHeartRateBPM     *float64   `db:"last_heart_rate_bpm"`
	LastBodyTempC        *float64   `db:"last_body_temp_c"`
	LastReadingTime      *time.Time `db:"last_reading_time"`
	HeartStatus          string     `db:"heart_status"` // empty when the vital was absent
	TempStatus           string     `db:"temp_status"`
	OverallStatus        string     `db:"overall_status"`
	IsValid              bool       `db:"is_valid"`
	LastSavedReadingTime *time.Time `db:"last_saved_reading_time"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// CanSave reports whether the latest reading could be committed to history:
// it must be valid, carry a reading time, and not already be committed.
func (r *DeviceReading) CanSave() bool {
	if !r.IsValid || r.LastReadingTime == nil {
		return false
	}
	return r.LastSavedReadingTime == nil || !r.LastSavedReadingTime.Equal(*r.LastReadingTime)
}
