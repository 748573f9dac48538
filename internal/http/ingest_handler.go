package httpapi

import (
	"errors"
	"net/http"

	"vitalwatch-data/internal/metrics"
	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/service"

	"go.uber.org/zap"
)

// IngestHandler 设备遥测上报入口
type IngestHandler struct {
	ingest *service.IngestService
	logger *zap.Logger
}

func NewIngestHandler(ingest *service.IngestService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, logger: logger}
}

// POST /iot/api/v1/ingest
// Body: {"kode_perangkat": "...", "heart_rate_bpm": ..., "body_temp_c": ..., "timestamp": ...}
// Vitals and timestamp are lenient; only the device code is mandatory.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var payload service.TelemetryPayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		metrics.IngestResult("invalid_json")
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	err := h.ingest.Ingest(r.Context(), payload)
	switch {
	case err == nil:
		metrics.IngestResult("ok")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, service.ErrMissingDeviceCode):
		metrics.IngestResult("missing_kode_perangkat")
		writeError(w, http.StatusBadRequest, "missing_kode_perangkat")
	case errors.Is(err, repository.ErrDeviceNotFound):
		metrics.IngestResult("device_not_found")
		writeError(w, http.StatusNotFound, "device_not_found")
	default:
		h.logger.Error("ingest failed", zap.Error(err))
		metrics.IngestResult("error")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
