package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"vitalwatch-data/internal/metrics"
	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/service"

	"go.uber.org/zap"
)

// MonitorHandler 监控面：当前状态、保存历史、历史查询、设备卡片
type MonitorHandler struct {
	monitor *service.MonitorService
	logger  *zap.Logger
}

func NewMonitorHandler(monitor *service.MonitorService, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{monitor: monitor, logger: logger}
}

// GET /monitor/api/v1/latest
func (h *MonitorHandler) Latest(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.monitor.Latest(r.Context(), uid)
	if err != nil {
		h.writeMonitorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// POST /monitor/api/v1/save
// {"status":"ok"} on a fresh commit, {"status":"already_saved"} when the
// reading instant was committed before.
func (h *MonitorHandler) Save(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	outcome, err := h.monitor.SaveLatest(r.Context(), uid)
	if err != nil {
		metrics.SaveResult("error")
		h.writeMonitorError(w, err)
		return
	}
	metrics.SaveResult(outcome)
	writeJSON(w, http.StatusOK, map[string]string{"status": outcome})
}

type recordRow struct {
	Timestamp      time.Time `json:"timestamp"`
	TimestampLabel string    `json:"timestamp_label"`
	HeartRateBPM   float64   `json:"heart_rate_bpm"`
	BodyTempC      float64   `json:"body_temp_c"`
	HeartStatus    string    `json:"heart_status"`
	TempStatus     string    `json:"temp_status"`
	OverallStatus  string    `json:"overall_status"`
}

// GET /monitor/api/v1/records?limit=&from=&to=
// from/to 为 "2006-01-02"（服务器本地时区，to 当天包含在内）
func (h *MonitorHandler) Records(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := service.RecordQuery{
		Limit:    parseInt(r.URL.Query().Get("limit"), 0),
		FromDate: r.URL.Query().Get("from"),
		ToDate:   r.URL.Query().Get("to"),
	}
	records, err := h.monitor.Records(r.Context(), uid, q)
	if err != nil {
		h.writeMonitorError(w, err)
		return
	}

	rows := make([]recordRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, recordRow{
			Timestamp:      rec.Timestamp,
			TimestampLabel: rec.Timestamp.Local().Format("15:04:05"),
			HeartRateBPM:   rec.HeartRateBPM,
			BodyTempC:      rec.BodyTempC,
			HeartStatus:    rec.HeartStatus,
			TempStatus:     rec.TempStatus,
			OverallStatus:  rec.OverallStatus,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": rows})
}

// GET /monitor/api/v1/records/export — xlsx download of the same window
func (h *MonitorHandler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := service.RecordQuery{
		Limit:    parseInt(r.URL.Query().Get("limit"), 0),
		FromDate: r.URL.Query().Get("from"),
		ToDate:   r.URL.Query().Get("to"),
	}
	records, err := h.monitor.Records(r.Context(), uid, q)
	if err != nil {
		h.writeMonitorError(w, err)
		return
	}

	data, err := GenerateRecordsExport(records)
	if err != nil {
		h.logger.Error("records export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	filename := fmt.Sprintf("health-records-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /monitor/api/v1/cards
func (h *MonitorHandler) Cards(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cards, err := h.monitor.Cards(r.Context(), uid)
	if err != nil {
		h.logger.Error("cards query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (h *MonitorHandler) writeMonitorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveDevice):
		writeError(w, http.StatusBadRequest, "no_active_device")
	case errors.Is(err, repository.ErrNoValidReading):
		writeError(w, http.StatusBadRequest, "no_valid_reading")
	case errors.Is(err, repository.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device_not_found")
	default:
		h.logger.Error("monitor request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
