// Package httpapi 监护系统 HTTP 接口
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（方法 + 路径参数模式）
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

// HandleHandler 支持 http.Handler 接口（用于 /metrics）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterPatientRoutes 注册患者与日志接口
func (r *Router) RegisterPatientRoutes(h *PatientHandler) {
	r.Handle("GET /api/v1/patients", h.ListPatients)
	r.Handle("POST /api/v1/patients", h.RegisterPatient)
	r.Handle("GET /api/v1/patients/{id}", h.GetSnapshot)
	r.Handle("POST /api/v1/patients/{id}/acknowledge", h.Acknowledge)
	r.Handle("GET /api/v1/patients/{id}/log", h.GetPatientLog)
	r.Handle("GET /api/v1/patients/{id}/escalations", h.GetEscalations)
	r.Handle("GET /api/v1/snapshots", h.SnapshotAll)
	r.Handle("GET /api/v1/logs/system", h.GetSystemLog)
	r.Handle("GET /api/v1/logs/patients", h.GetAllPatientLogs)
	r.Handle("GET /healthz", h.Health)
}

// RegisterCacheRoutes 注册快照缓存查询（仅启用 Redis 时）
func (r *Router) RegisterCacheRoutes(h *CacheHandler) {
	r.Handle("GET /api/v1/cache/snapshots", h.ListCachedSnapshots)
	r.Handle("GET /api/v1/cache/snapshots/{id}", h.GetCachedSnapshot)
}

// RegisterMetrics 暴露 Prometheus 指标；gatherer 为 nil 时使用默认注册表
func (r *Router) RegisterMetrics(gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.HandleHandler("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
