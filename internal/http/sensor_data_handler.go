package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"smart-industry/internal/domain"
	"smart-industry/internal/repository"

	"go.uber.org/zap"
)

const (
	defaultListLimit   = 100
	maxListLimit       = 1000
	defaultAlertsLimit = 50
)

// VerdictReader 评估结果缓存读取（consumer.CacheManager）
type VerdictReader interface {
	GetLatestVerdict(ctx context.Context, workerID string) (*domain.RiskVerdict, error)
	RecentVerdicts(ctx context.Context, count int64, unsafeOnly bool) ([]domain.RiskVerdict, error)
}

// SensorDataHandler 采集数据与评估结果查询
type SensorDataHandler struct {
	samples repository.SensorDataRepository
	cache   VerdictReader // nil 表示未启用 Redis
	logger  *zap.Logger

	now func() time.Time
}

func NewSensorDataHandler(samples repository.SensorDataRepository, cache VerdictReader, logger *zap.Logger) *SensorDataHandler {
	return &SensorDataHandler{
		samples: samples,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

func clampLimit(v, def int) int {
	if v <= 0 {
		return def
	}
	if v > maxListLimit {
		return maxListLimit
	}
	return v
}

// ListSensorData GET /api/sensor_data?limit=
func (h *SensorDataHandler) ListSensorData(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(parseInt(r.URL.Query().Get("limit"), defaultListLimit), defaultListLimit)

	samples, err := h.samples.ListLatest(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sensor data", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sensor data")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

type latestResponse struct {
	*domain.SensorSample
	Verdict *domain.RiskVerdict `json:"verdict,omitempty"`
}

// Latest GET /api/latest 最新一条采集数据（附带该 worker 缓存中的最新评估结果）
func (h *SensorDataHandler) Latest(w http.ResponseWriter, r *http.Request) {
	sample, err := h.samples.Latest(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No sensor data found")
			return
		}
		h.logger.Error("Failed to load latest sensor data", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest sensor data")
		return
	}

	resp := latestResponse{SensorSample: sample}
	if h.cache != nil && sample.WorkerID != "" {
		v, err := h.cache.GetLatestVerdict(r.Context(), sample.WorkerID)
		if err == nil {
			resp.Verdict = v
		} else {
			h.logger.Debug("No cached verdict for latest sample", zap.String("worker_id", sample.WorkerID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Alerts GET /api/alerts?limit=&all=true
// 默认只返回 Unsafe 结果
func (h *SensorDataHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, []domain.RiskVerdict{})
		return
	}

	q := r.URL.Query()
	limit := clampLimit(parseInt(q.Get("limit"), defaultAlertsLimit), defaultAlertsLimit)
	unsafeOnly := q.Get("all") != "true"

	verdicts, err := h.cache.RecentVerdicts(r.Context(), int64(limit), unsafeOnly)
	if err != nil {
		h.logger.Error("Failed to read recent verdicts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read alerts")
		return
	}
	writeJSON(w, http.StatusOK, verdicts)
}

// ExportSensorData GET /api/sensor_data/export?limit= 导出 xlsx
func (h *SensorDataHandler) ExportSensorData(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(parseInt(r.URL.Query().Get("limit"), maxListLimit), maxListLimit)

	samples, err := h.samples.ListLatest(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sensor data for export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sensor data")
		return
	}

	data, err := GenerateSensorDataExport(samples)
	if err != nil {
		h.logger.Error("Failed to generate sensor data export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	filename := fmt.Sprintf("sensor_data_%s.xlsx", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
