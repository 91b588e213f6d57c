package evaluator

import (
	"fmt"
	"strings"
	"time"

	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Evaluator 风险评估器：阈值 + 分类器 + 规则打分融合
// 无共享可变状态，可被多个 pipeline 并发调用
type Evaluator struct {
	classifier Classifier
	thresholds ThresholdEngine
	metrics    *metrics.Metrics
	logger     *zap.Logger

	now func() time.Time
}

// NewEvaluator 创建评估器
func NewEvaluator(
	classifier Classifier,
	thresholds ThresholdEngine,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		classifier: classifier,
		thresholds: thresholds,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Thresholds 当前 worker 的阈值（每次评估重新计算）
func (e *Evaluator) Thresholds(profile *domain.WorkerProfile) domain.ThresholdSet {
	return e.thresholds.Thresholds(profile)
}

// Evaluate 计算阈值并分类
func (e *Evaluator) Evaluate(sample *domain.SensorSample, profile *domain.WorkerProfile) (*domain.RiskVerdict, error) {
	start := e.now()

	verdict, err := e.Classify(sample, e.Thresholds(profile), profile)
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveVerdict(verdict.Final, time.Since(start))
	e.logger.Debug("Sample evaluated",
		zap.String("worker_id", verdict.WorkerID),
		zap.String("risk_level", verdict.Final),
		zap.String("model_label", verdict.ModelLabel),
		zap.String("fuzzy_risk", verdict.FuzzyLabel),
		zap.Int("flag_count", len(verdict.Flags)),
	)
	return verdict, nil
}

// Classify 生成评估结果
// 分类器不可用或返回错误时返回 ErrClassification，不产生部分结果
func (e *Evaluator) Classify(sample *domain.SensorSample, thresholds domain.ThresholdSet, profile *domain.WorkerProfile) (*domain.RiskVerdict, error) {
	if sample == nil || profile == nil {
		return nil, fmt.Errorf("%w: sample and profile are required", domain.ErrClassification)
	}
	if e.classifier == nil {
		return nil, fmt.Errorf("%w: classifier unavailable", domain.ErrClassification)
	}

	flags := ExceedanceFlags(sample, thresholds)

	modelLabel, err := e.predict(sample.Features())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}

	score := FuzzyScore(sample.PM25, sample.CO, sample.VOC, profile.HealthCondition)
	fuzzyLabel := FuzzyRiskLevel(score)

	v := &domain.RiskVerdict{
		VerdictID:   uuid.NewString(),
		WorkerID:    profile.WorkerID,
		WorkerName:  profile.Name,
		ModelLabel:  modelLabel,
		FuzzyScore:  score,
		FuzzyLabel:  fuzzyLabel,
		Final:       FuseRisk(modelLabel, fuzzyLabel),
		Flags:       flags,
		Thresholds:  thresholds,
		Measures:    PersonalizedMeasures(profile, flags),
		Sample:      sample,
		EvaluatedAt: e.now(),
	}
	v.Alert = AlertMessage(v)
	return v, nil
}

func (e *Evaluator) predict(features []float64) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	label, err = e.classifier.Predict(features)
	if err != nil {
		return "", err
	}
	if !validLabels[label] {
		return "", fmt.Errorf("classifier returned unknown label %q", label)
	}
	return label, nil
}

// ExceedanceFlags 按 PM2.5、CO、VOC（、PM10）顺序检查是否超过阈值（严格大于）
func ExceedanceFlags(sample *domain.SensorSample, t domain.ThresholdSet) []domain.ExceedanceFlag {
	var flags []domain.ExceedanceFlag
	check := func(metric string, value, limit float64) {
		if value > limit {
			flags = append(flags, domain.ExceedanceFlag{Metric: metric, Value: value, Limit: limit})
		}
	}

	check(domain.FlagPM25, sample.PM25, t.PM25)
	check(domain.FlagCO, sample.CO, t.CO)
	check(domain.FlagVOC, sample.VOC, t.VOC)
	if t.PM10 != nil {
		check(domain.FlagPM10, sample.PM10, *t.PM10)
	}
	return flags
}

// FuseRisk OR 融合：分类器 High/Critical 或规则打分 High 即为 Unsafe
func FuseRisk(modelLabel, fuzzyLabel string) string {
	if modelLabel == domain.RiskHigh || modelLabel == domain.RiskCritical || fuzzyLabel == domain.RiskHigh {
		return domain.FinalUnsafe
	}
	return domain.FinalSafe
}

// AlertMessage 例："Alert for W1: Risk - Unsafe, Model: High, Fuzzy: Low, Issues: PM2.5 60 > 35"
func AlertMessage(v *domain.RiskVerdict) string {
	return fmt.Sprintf("Alert for %s: Risk - %s, Model: %s, Fuzzy: %s, Issues: %s",
		v.WorkerID, v.Final, v.ModelLabel, v.FuzzyLabel, strings.Join(v.FlagStrings(), ", "))
}
