package evaluator

import (
	"strings"

	"smart-industry/internal/domain"
)

const (
	measureMask         = "Wear a protective mask immediately."
	measureEvacuate     = "Evacuate the area and notify your supervisor."
	measureVentilate    = "Move to a ventilated area immediately."
	measureSenior       = "Due to your age, leave the hazardous area immediately."
	measureFreshAir     = "Access fresh air immediately due to your asthma."
	measureStopWork     = "Stop work and seek medical attention if needed."
	measureStayCautious = "Stay cautious."
)

// PersonalizedMeasures 生成个性化处置建议，按固定顺序空格拼接
func PersonalizedMeasures(profile *domain.WorkerProfile, flags []domain.ExceedanceFlag) string {
	has := func(metric string) bool {
		for _, f := range flags {
			if f.Metric == metric {
				return true
			}
		}
		return false
	}

	var measures []string
	if has(domain.FlagPM25) {
		measures = append(measures, measureMask)
	}
	if has(domain.FlagCO) {
		measures = append(measures, measureEvacuate)
	}
	if has(domain.FlagVOC) {
		measures = append(measures, measureVentilate)
	}

	if profile != nil {
		if profile.Age >= seniorAge {
			measures = append(measures, measureSenior)
		}
		if containsAny(profile.HealthCondition, "asthma") {
			measures = append(measures, measureFreshAir)
		}
		if containsAny(profile.HealthCondition, "heart") {
			measures = append(measures, measureStopWork)
		}
	}

	if len(measures) == 0 {
		return measureStayCautious
	}
	return strings.Join(measures, " ")
}
