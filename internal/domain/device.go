package domain

import "time"

// Device 注册设备领域模型（对应 devices 表）
// kode_perangkat 在所有账号之间全局唯一
type Device struct {
	DeviceID      string     `db:"device_id"` // UUID
	UserID        string     `db:"user_id"`   // NOT NULL, owning account
	KodePerangkat string     `db:"kode_perangkat"`
	NamaPerangkat string     `db:"nama_perangkat"` // optional display name
	LastSeen      *time.Time `db:"last_seen"`      // nullable, transport liveness
	CreatedAt     time.Time  `db:"created_at"`
}

// DisplayName falls back to the device code when no name was given.
func (d *Device) DisplayName() string {
	if d.NamaPerangkat != "" {
		return d.NamaPerangkat
	}
	return d.KodePerangkat
}
