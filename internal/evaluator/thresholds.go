package evaluator

import (
	"math"
	"strings"

	"smart-industry/internal/domain"

	"golang.org/x/text/cases"
)

// 基础阈值
const (
	BaseCOLimit   = 35.0
	BasePM25Limit = 35.0
	BaseVOCLimit  = 0.5

	tightCOLimit   = 25.0
	tightPM25Limit = 25.0
	tightVOCLimit  = 0.3

	respiratoryPM25Limit = 20.0
	respiratoryVOCLimit  = 0.3

	seniorAge = 60
)

// AdaptiveThresholds 根据 worker 档案计算个性化阈值（纯函数，无 I/O）
// 规则按固定顺序应用，只会收紧阈值
func AdaptiveThresholds(profile *domain.WorkerProfile) domain.ThresholdSet {
	t := domain.ThresholdSet{
		CO:   BaseCOLimit,
		PM25: BasePM25Limit,
		VOC:  BaseVOCLimit,
	}
	if profile == nil {
		return t
	}

	if profile.Age >= seniorAge {
		t.CO = tightCOLimit
	}

	// 呼吸系统疾病：直接覆盖（不是 min）
	if containsAny(profile.HealthCondition, "asthma", "respiratory") {
		t.PM25 = respiratoryPM25Limit
		t.VOC = respiratoryVOCLimit
	}

	if containsAny(profile.HealthCondition, "heart", "cardio") {
		t.CO = math.Min(t.CO, tightCOLimit)
		t.PM25 = math.Min(t.PM25, tightPM25Limit)
	}

	if containsAny(profile.WorkEnvironment, "welding", "chemical") {
		t.CO = math.Min(t.CO, tightCOLimit)
		t.VOC = math.Min(t.VOC, tightVOCLimit)
	}

	return t
}

// ThresholdEngine 在个性化阈值基础上附加可选的 PM10 阈值
type ThresholdEngine struct {
	PM10Limit float64 // <= 0 表示不启用
}

// Thresholds 计算 worker 的完整阈值集合
func (e ThresholdEngine) Thresholds(profile *domain.WorkerProfile) domain.ThresholdSet {
	t := AdaptiveThresholds(profile)
	if e.PM10Limit > 0 {
		limit := e.PM10Limit
		t.PM10 = &limit
	}
	return t
}

// containsAny 大小写不敏感的子串匹配（自由文本字段）
func containsAny(text string, needles ...string) bool {
	if text == "" {
		return false
	}
	fold := cases.Fold()
	haystack := fold.String(text)
	for _, n := range needles {
		if strings.Contains(haystack, fold.String(n)) {
			return true
		}
	}
	return false
}
