package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（Go 1.22 起支持方法与路径参数）
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

// RegisterIngestRoutes 设备上报
func (r *Router) RegisterIngestRoutes(h *IngestHandler) {
	r.Handle("POST /submit_data", h.SubmitData)
}

// RegisterBroadcastRoutes 实时推送：WebSocket 订阅 + 运维广播
func (r *Router) RegisterBroadcastRoutes(h *BroadcastHandler) {
	r.Handle("GET /ws/{role}", h.Subscribe)
	r.Handle("POST /broadcast", h.Broadcast)
}

// RegisterWorkerRoutes worker 档案与设备分配
func (r *Router) RegisterWorkerRoutes(h *WorkerHandler) {
	r.Handle("POST /assign_user", h.AssignUser)
	r.Handle("GET /get_assigned_user/{device_id}", h.GetAssignedUser)
	r.Handle("GET /worker/{worker_id}", h.GetWorker)
	r.Handle("GET /api/workers", h.ListWorkers)
}

// RegisterSensorDataRoutes 采集数据与评估结果查询
func (r *Router) RegisterSensorDataRoutes(h *SensorDataHandler) {
	r.Handle("GET /api/sensor_data", h.ListSensorData)
	r.Handle("GET /api/sensor_data/export", h.ExportSensorData)
	r.Handle("GET /api/latest", h.Latest)
	r.Handle("GET /api/alerts", h.Alerts)
}

// RegisterOpsRoutes /metrics 与 /healthz
func (r *Router) RegisterOpsRoutes(metricsHandler http.Handler) {
	r.HandleHandler("GET /metrics", metricsHandler)
	r.Handle("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
}
