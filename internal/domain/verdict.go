package domain

import (
	"fmt"
	"strconv"
	"time"
)

// 分类器标签
const (
	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

// 最终安全状态
const (
	FinalSafe   = "Safe"
	FinalUnsafe = "Unsafe"
)

// 超限标志使用的指标显示名
const (
	FlagPM25 = "PM2.5"
	FlagCO   = "CO"
	FlagVOC  = "VOC"
	FlagPM10 = "PM10"
)

// ThresholdSet 单个 worker 的个性化阈值
// 每次评估时根据 WorkerProfile 重新计算，不持久化
type ThresholdSet struct {
	CO   float64  `json:"co"`
	PM25 float64  `json:"pm25"`
	VOC  float64  `json:"voc"`
	PM10 *float64 `json:"pm10,omitempty"` // 可选，未配置时不参与判断
}

// ExceedanceFlag 单个指标超过阈值的记录
type ExceedanceFlag struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
}

// String 格式："PM2.5 60 > 35"
func (f ExceedanceFlag) String() string {
	return fmt.Sprintf("%s %s > %s", f.Metric, formatNumber(f.Value), formatNumber(f.Limit))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RiskVerdict 一次评估的结果（只在一次评估-推送周期内存在）
type RiskVerdict struct {
	VerdictID   string           `json:"verdict_id"`
	WorkerID    string           `json:"user_id"`
	WorkerName  string           `json:"user_name"`
	ModelLabel  string           `json:"model_label"`
	FuzzyScore  int              `json:"fuzzy_score"`
	FuzzyLabel  string           `json:"fuzzy_risk"`
	Final       string           `json:"risk_level"`
	Flags       []ExceedanceFlag `json:"flags"`
	Thresholds  ThresholdSet     `json:"thresholds"`
	Measures    string           `json:"measures"`
	Alert       string           `json:"alert"`
	Sample      *SensorSample    `json:"-"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}

// Unsafe 是否需要发送通知
func (v *RiskVerdict) Unsafe() bool {
	return v.Final == FinalUnsafe
}

// FlagStrings 返回标志的文本形式
func (v *RiskVerdict) FlagStrings() []string {
	out := make([]string, 0, len(v.Flags))
	for _, f := range v.Flags {
		out = append(out, f.String())
	}
	return out
}

// HasFlag 是否存在指定指标的超限标志
func (v *RiskVerdict) HasFlag(metric string) bool {
	for _, f := range v.Flags {
		if f.Metric == metric {
			return true
		}
	}
	return false
}
