package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/service"

	"go.uber.org/zap"
)

// DeviceHandler 设备注册 / 列表 / 选择
type DeviceHandler struct {
	monitor *service.MonitorService
	logger  *zap.Logger
}

func NewDeviceHandler(monitor *service.MonitorService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{monitor: monitor, logger: logger}
}

// GET /device/api/v1/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	devices, err := h.monitor.ListDevices(r.Context(), uid)
	if err != nil {
		h.logger.Error("device list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

type registerDeviceRequest struct {
	KodePerangkat string `json:"kode_perangkat"`
	NamaPerangkat string `json:"nama_perangkat"`
}

type registerDeviceResponse struct {
	ID            string     `json:"id"`
	KodePerangkat string     `json:"kode_perangkat"`
	NamaPerangkat string     `json:"nama_perangkat"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSeen      *time.Time `json:"last_seen"`
}

// POST /device/api/v1/devices
// The new device becomes the caller's active selection.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req registerDeviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.KodePerangkat = strings.TrimSpace(req.KodePerangkat)
	if req.KodePerangkat == "" {
		writeError(w, http.StatusBadRequest, "missing_kode_perangkat")
		return
	}

	device, err := h.monitor.RegisterDevice(r.Context(), uid, req.KodePerangkat, strings.TrimSpace(req.NamaPerangkat))
	if err != nil {
		if errors.Is(err, repository.ErrCodeTaken) {
			writeError(w, http.StatusConflict, "kode_taken")
			return
		}
		h.logger.Error("device registration failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, registerDeviceResponse{
		ID:            device.DeviceID,
		KodePerangkat: device.KodePerangkat,
		NamaPerangkat: device.NamaPerangkat,
		CreatedAt:     device.CreatedAt,
		LastSeen:      device.LastSeen,
	})
}

type selectDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

// POST /device/api/v1/devices/select
func (h *DeviceHandler) Select(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req selectDeviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "missing_device_id")
		return
	}

	if err := h.monitor.SelectDevice(r.Context(), uid, req.DeviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device_not_found")
			return
		}
		h.logger.Error("device selection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
