package httpapi

import (
	"context"
	"errors"
	"net/http"

	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"

	"go.uber.org/zap"
)

// Processor 处理一条原始上报（service.IngestService）
type Processor interface {
	Process(ctx context.Context, raw map[string]any) (*domain.RiskVerdict, error)
}

// IngestHandler POST /submit_data
type IngestHandler struct {
	processor    Processor
	sensorToken  string
	maxBodyBytes int64
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewIngestHandler(processor Processor, sensorToken string, maxBodyBytes int64, m *metrics.Metrics, logger *zap.Logger) *IngestHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 << 10
	}
	return &IngestHandler{
		processor:    processor,
		sensorToken:  sensorToken,
		maxBodyBytes: maxBodyBytes,
		metrics:      m,
		logger:       logger,
	}
}

// SubmitData 设备通过 HTTP 上报一次采集数据
func (h *IngestHandler) SubmitData(w http.ResponseWriter, r *http.Request) {
	if !tokenEqual(r.Header.Get("X-SENSOR-TOKEN"), h.sensorToken) {
		h.metrics.IncRejected("unauthorized")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "Unauthorized"})
		return
	}

	var raw map[string]any
	if err := readBodyJSON(r, h.maxBodyBytes, &raw); err != nil {
		h.metrics.IncRejected("malformed")
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	verdict, err := h.processor.Process(r.Context(), raw)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Error("Failed to process sensor data", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.metrics.IncIngested("http")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"final_risk":       verdict.Final,
		"model_prediction": verdict.ModelLabel,
		"fuzzy_risk":       verdict.FuzzyLabel,
		"flags":            verdict.FlagStrings(),
		"message":          verdict.Alert,
	})
}
