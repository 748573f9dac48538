package vitals

import "time"

const (
	ConnConnected    = "connected"
	ConnDisconnected = "disconnected"

	// DefaultConnThreshold 设备在线判定阈值
	DefaultConnThreshold = 30 * time.Second
)

// ConnectionStatus derives device liveness from the last-seen timestamp.
// Stateless: callers pass the current wall clock so liveness always reflects
// query-time recency. The threshold boundary itself counts as connected.
func ConnectionStatus(lastSeen *time.Time, now time.Time, threshold time.Duration) string {
	if lastSeen == nil {
		return ConnDisconnected
	}
	if now.Sub(*lastSeen) <= threshold {
		return ConnConnected
	}
	return ConnDisconnected
}
