package evaluator

import "smart-industry/internal/domain"

// FuzzyScore 规则打分（0-8 分），与分类器相互独立
func FuzzyScore(pm25, co, voc float64, healthCondition string) int {
	score := 0

	switch {
	case pm25 > 35:
		score += 2
	case pm25 > 20:
		score++
	}

	switch {
	case co > 9:
		score += 2
	case co > 4:
		score++
	}

	switch {
	case voc > 0.6:
		score += 2
	case voc > 0.3:
		score++
	}

	// 精确匹配
	if healthCondition == "Asthma" {
		score += 2
	}

	return score
}

// FuzzyRiskLevel 分数映射为三级标签
func FuzzyRiskLevel(score int) string {
	switch {
	case score >= 6:
		return domain.RiskHigh
	case score >= 3:
		return domain.RiskModerate
	default:
		return domain.RiskLow
	}
}
