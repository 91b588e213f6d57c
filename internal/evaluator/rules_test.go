package evaluator

import (
	"testing"

	"smart-industry/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveThresholds_Defaults(t *testing.T) {
	got := AdaptiveThresholds(&domain.WorkerProfile{Age: 25, HealthCondition: "Healthy", WorkEnvironment: "Normal"})
	assert.Equal(t, domain.ThresholdSet{CO: 35, PM25: 35, VOC: 0.5}, got)

	assert.Equal(t, got, AdaptiveThresholds(&domain.WorkerProfile{}))
	assert.Equal(t, got, AdaptiveThresholds(nil))
}

func TestAdaptiveThresholds_SeniorAsthmaWelder(t *testing.T) {
	got := AdaptiveThresholds(&domain.WorkerProfile{
		Age:             65,
		HealthCondition: "Severe Asthma",
		WorkEnvironment: "Welding Bay",
	})
	assert.Equal(t, 25.0, got.CO)
	assert.Equal(t, 20.0, got.PM25)
	assert.Equal(t, 0.3, got.VOC)
}

func TestAdaptiveThresholds_Rules(t *testing.T) {
	cases := []struct {
		name    string
		profile domain.WorkerProfile
		want    domain.ThresholdSet
	}{
		{"age 60 boundary", domain.WorkerProfile{Age: 60}, domain.ThresholdSet{CO: 25, PM25: 35, VOC: 0.5}},
		{"age 59", domain.WorkerProfile{Age: 59}, domain.ThresholdSet{CO: 35, PM25: 35, VOC: 0.5}},
		{"respiratory", domain.WorkerProfile{HealthCondition: "chronic RESPIRATORY issues"}, domain.ThresholdSet{CO: 35, PM25: 20, VOC: 0.3}},
		{"heart", domain.WorkerProfile{HealthCondition: "Heart disease"}, domain.ThresholdSet{CO: 25, PM25: 25, VOC: 0.5}},
		{"cardio", domain.WorkerProfile{HealthCondition: "cardiovascular"}, domain.ThresholdSet{CO: 25, PM25: 25, VOC: 0.5}},
		// 呼吸系统规则先于心脏规则，min 不会放宽 20
		{"asthma and heart", domain.WorkerProfile{HealthCondition: "asthma, heart"}, domain.ThresholdSet{CO: 25, PM25: 20, VOC: 0.3}},
		{"chemical", domain.WorkerProfile{WorkEnvironment: "Chemical storage"}, domain.ThresholdSet{CO: 25, PM25: 35, VOC: 0.3}},
		{"unknown text", domain.WorkerProfile{HealthCondition: "diabetic", WorkEnvironment: "office"}, domain.ThresholdSet{CO: 35, PM25: 35, VOC: 0.5}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := c.profile
			assert.Equal(t, c.want, AdaptiveThresholds(&p))
		})
	}
}

func TestAdaptiveThresholds_NeverLoosens(t *testing.T) {
	healths := []string{"", "Healthy", "Asthma", "respiratory", "heart", "Cardio", "asthma heart"}
	envs := []string{"", "Normal", "welding", "Chemical", "welding chemical"}
	for _, age := range []int{0, 25, 59, 60, 80} {
		for _, h := range healths {
			for _, env := range envs {
				p := &domain.WorkerProfile{Age: age, HealthCondition: h, WorkEnvironment: env}
				got := AdaptiveThresholds(p)
				assert.LessOrEqual(t, got.CO, BaseCOLimit)
				assert.LessOrEqual(t, got.PM25, BasePM25Limit)
				assert.LessOrEqual(t, got.VOC, BaseVOCLimit)
				// 纯函数，重复计算结果一致
				assert.Equal(t, got, AdaptiveThresholds(p))
			}
		}
	}
}

func TestThresholdEngine_PM10(t *testing.T) {
	assert.Nil(t, ThresholdEngine{}.Thresholds(nil).PM10)

	got := ThresholdEngine{PM10Limit: 50}.Thresholds(nil)
	if assert.NotNil(t, got.PM10) {
		assert.Equal(t, 50.0, *got.PM10)
	}
}

func TestFuzzyScore_Boundaries(t *testing.T) {
	assert.Equal(t, 1, FuzzyScore(35.0, 0, 0, ""))
	assert.Equal(t, 2, FuzzyScore(35.01, 0, 0, ""))
	assert.Equal(t, 0, FuzzyScore(20, 0, 0, ""))
	assert.Equal(t, 1, FuzzyScore(0, 9, 0, ""))
	assert.Equal(t, 2, FuzzyScore(0, 9.5, 0, ""))
	assert.Equal(t, 0, FuzzyScore(0, 4, 0, ""))
	assert.Equal(t, 1, FuzzyScore(0, 0, 0.6, ""))
	assert.Equal(t, 2, FuzzyScore(0, 0, 0.61, ""))
	assert.Equal(t, 0, FuzzyScore(0, 0, 0.3, ""))
	assert.Equal(t, 8, FuzzyScore(100, 100, 100, "Asthma"))
}

func TestFuzzyScore_AsthmaExactMatch(t *testing.T) {
	assert.Equal(t, 2, FuzzyScore(0, 0, 0, "Asthma"))
	assert.Equal(t, 0, FuzzyScore(0, 0, 0, "asthma"))
	assert.Equal(t, 0, FuzzyScore(0, 0, 0, "Severe Asthma"))
}

func TestFuzzyRiskLevel(t *testing.T) {
	assert.Equal(t, domain.RiskLow, FuzzyRiskLevel(0))
	assert.Equal(t, domain.RiskLow, FuzzyRiskLevel(2))
	assert.Equal(t, domain.RiskModerate, FuzzyRiskLevel(3))
	assert.Equal(t, domain.RiskModerate, FuzzyRiskLevel(5))
	assert.Equal(t, domain.RiskHigh, FuzzyRiskLevel(6))
	assert.Equal(t, domain.RiskHigh, FuzzyRiskLevel(8))
}

func TestPersonalizedMeasures(t *testing.T) {
	all := []domain.ExceedanceFlag{
		{Metric: domain.FlagPM25, Value: 40, Limit: 20},
		{Metric: domain.FlagCO, Value: 30, Limit: 25},
		{Metric: domain.FlagVOC, Value: 1, Limit: 0.3},
	}
	p := &domain.WorkerProfile{Age: 62, HealthCondition: "Asthma and heart murmur"}

	assert.Equal(t,
		"Wear a protective mask immediately. Evacuate the area and notify your supervisor. "+
			"Move to a ventilated area immediately. Due to your age, leave the hazardous area immediately. "+
			"Access fresh air immediately due to your asthma. Stop work and seek medical attention if needed.",
		PersonalizedMeasures(p, all),
	)

	assert.Equal(t, "Stay cautious.", PersonalizedMeasures(&domain.WorkerProfile{Age: 30}, nil))
	assert.Equal(t, "Move to a ventilated area immediately.",
		PersonalizedMeasures(&domain.WorkerProfile{Age: 30}, all[2:]))
	// PM10 不对应任何处置建议
	assert.Equal(t, "Stay cautious.",
		PersonalizedMeasures(&domain.WorkerProfile{}, []domain.ExceedanceFlag{{Metric: domain.FlagPM10, Value: 90, Limit: 45}}))
}
