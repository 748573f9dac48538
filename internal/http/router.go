package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func methodGuard(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterIngestRoutes 注册设备上报路由
func (r *Router) RegisterIngestRoutes(h *IngestHandler) {
	r.Handle("/iot/api/v1/ingest", methodGuard(http.MethodPost, h.Ingest))
}

// RegisterMonitorRoutes 注册监控面路由（latest / save / records / cards）
func (r *Router) RegisterMonitorRoutes(h *MonitorHandler) {
	r.Handle("/monitor/api/v1/latest", methodGuard(http.MethodGet, h.Latest))
	r.Handle("/monitor/api/v1/save", methodGuard(http.MethodPost, h.Save))
	r.Handle("/monitor/api/v1/records", methodGuard(http.MethodGet, h.Records))
	r.Handle("/monitor/api/v1/records/export", methodGuard(http.MethodGet, h.ExportRecords))
	r.Handle("/monitor/api/v1/cards", methodGuard(http.MethodGet, h.Cards))
}

// RegisterDeviceRoutes 注册设备管理路由
func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.Handle("/device/api/v1/devices", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPost:
			h.Register(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/device/api/v1/devices/select", methodGuard(http.MethodPost, h.Select))
}

// RegisterOpsRoutes 健康检查 + Prometheus 指标
func (r *Router) RegisterOpsRoutes(metricsHandler http.Handler) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.HandleHandler("/metrics", metricsHandler)
}
