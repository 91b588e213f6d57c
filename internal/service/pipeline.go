package service

import (
	"context"
	"errors"

	"smart-industry/internal/broadcast"
	"smart-industry/internal/domain"
	"smart-industry/internal/evaluator"
	"smart-industry/internal/metrics"
	"smart-industry/internal/transformer"

	"go.uber.org/zap"
)

// Publisher 实时推送（broadcast.Manager）
type Publisher interface {
	Publish(ctx context.Context, message any, targetRole string) (broadcast.PublishResult, error)
}

// VerdictCache 评估结果缓存（consumer.CacheManager）
type VerdictCache interface {
	UpdateLatestVerdict(ctx context.Context, v *domain.RiskVerdict) error
	AppendVerdict(ctx context.Context, v *domain.RiskVerdict) (string, error)
}

// Notifier 不安全结果通知（notifier.Dispatcher）
type Notifier interface {
	Notify(verdict *domain.RiskVerdict, profile *domain.WorkerProfile)
}

// RiskUpdate 推送给所有订阅者的评估结果
type RiskUpdate struct {
	WorkerID   string              `json:"user_id"`
	WorkerName string              `json:"user_name"`
	RiskLevel  string              `json:"risk_level"`
	ModelLabel string              `json:"model_label"`
	FuzzyRisk  string              `json:"fuzzy_risk"`
	Alert      string              `json:"alert"`
	Thresholds domain.ThresholdSet `json:"thresholds"`
	Flags      []string            `json:"flags"`
	SensorData map[string]any      `json:"sensor_data"`
	TargetRole *string             `json:"target_role"` // nil 表示所有角色
}

// NewRiskUpdate 由评估结果生成推送消息
func NewRiskUpdate(v *domain.RiskVerdict) RiskUpdate {
	var sensorData map[string]any
	if v.Sample != nil {
		sensorData = v.Sample.Raw
	}
	return RiskUpdate{
		WorkerID:   v.WorkerID,
		WorkerName: v.WorkerName,
		RiskLevel:  v.Final,
		ModelLabel: v.ModelLabel,
		FuzzyRisk:  v.FuzzyLabel,
		Alert:      v.Alert,
		Thresholds: v.Thresholds,
		Flags:      v.FlagStrings(),
		SensorData: sensorData,
	}
}

// IngestService 上报处理流水线：标准化 -> 解析 worker -> 评估 -> 推送 -> 缓存 -> 通知
type IngestService struct {
	transformer *transformer.Transformer
	evaluator   *evaluator.Evaluator
	publisher   Publisher
	cache       VerdictCache // 可为 nil（未启用 Redis）
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewIngestService 创建流水线
func NewIngestService(
	t *transformer.Transformer,
	e *evaluator.Evaluator,
	publisher Publisher,
	cache VerdictCache,
	n Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		transformer: t,
		evaluator:   e,
		publisher:   publisher,
		cache:       cache,
		notifier:    n,
		metrics:     m,
		logger:      logger,
	}
}

// Process 处理一条原始上报
// 校验、解析或分类失败时返回错误且不推送；推送、缓存、通知失败只记录日志
// 调用方取消 ctx 不会中断已开始的处理
func (s *IngestService) Process(ctx context.Context, raw map[string]any) (*domain.RiskVerdict, error) {
	ctx = context.WithoutCancel(ctx)

	reading, err := s.transformer.Ingest(ctx, raw)
	if err != nil {
		s.reject(err)
		return nil, err
	}

	verdict, err := s.evaluator.Evaluate(reading.Sample, reading.Profile)
	if err != nil {
		s.reject(err)
		return nil, err
	}

	s.publish(ctx, verdict)
	s.cacheVerdict(ctx, verdict)

	if verdict.Unsafe() && s.notifier != nil {
		s.notifier.Notify(verdict, reading.Profile)
	}

	return verdict, nil
}

func (s *IngestService) publish(ctx context.Context, v *domain.RiskVerdict) {
	res, err := s.publisher.Publish(ctx, NewRiskUpdate(v), "")
	if err != nil {
		s.logger.Error("Failed to broadcast risk update",
			zap.String("worker_id", v.WorkerID),
			zap.Error(err),
		)
		return
	}
	if res.Failed > 0 {
		s.logger.Debug("Risk update partially delivered",
			zap.String("worker_id", v.WorkerID),
			zap.Int("delivered", res.Delivered),
			zap.Int("failed", res.Failed),
		)
	}
}

func (s *IngestService) cacheVerdict(ctx context.Context, v *domain.RiskVerdict) {
	if s.cache == nil {
		return
	}
	if err := s.cache.UpdateLatestVerdict(ctx, v); err != nil {
		s.logger.Warn("Failed to cache latest verdict", zap.String("worker_id", v.WorkerID), zap.Error(err))
	}
	if _, err := s.cache.AppendVerdict(ctx, v); err != nil {
		s.logger.Warn("Failed to append verdict stream", zap.String("worker_id", v.WorkerID), zap.Error(err))
	}
}

func (s *IngestService) reject(err error) {
	reason := rejectReason(err)
	s.metrics.IncRejected(reason)
	s.logger.Warn("Sensor sample rejected",
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrResolution):
		return "resolution"
	case errors.Is(err, domain.ErrClassification):
		return "classification"
	default:
		return "internal"
	}
}
