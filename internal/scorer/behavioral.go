package scorer

import (
	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// scoreBehavioral computes the behavioral sub-score from smoking, alcohol
// use, activity, sleep, stress, and resting heart rate.
func scoreBehavioral(m *model.MemberRecord, _ config.ScoringConfig) (float64, []model.RiskFactor, int, int) {
	var score float64
	var factors []model.RiskFactor

	add := func(name string, pts float64, sev model.Severity) {
		score += pts
		factors = append(factors, model.RiskFactor{
			Name:         name,
			Type:         model.FactorBehavioral,
			Contribution: pts,
			Severity:     sev,
			Action:       lookupAction(name),
		})
	}

	// Smoking is the single largest modifiable risk.
	if m.Behavioral.Smoker {
		add("smoking", 60, model.SeverityHigh)
	}

	switch m.Behavioral.AlcoholUse {
	case model.AlcoholHeavy:
		add("heavy alcohol use", 35, model.SeverityHigh)
	case model.AlcoholModerate:
		add("moderate alcohol use", 12, model.SeverityLow)
	}

	expected, present := 0, 0

	expected++
	if v := m.Behavioral.AvgDailySteps; v != nil {
		present++
		switch {
		case *v < 3500:
			add("physical inactivity", 40, model.SeverityHigh)
		case *v < 5500:
			add("low activity", 25, model.SeverityModerate)
		case *v < 7500:
			add("below activity target", 10, model.SeverityLow)
		}
	}

	expected++
	if v := m.Behavioral.AvgSleepHours; v != nil {
		present++
		switch {
		case *v < 6:
			add("sleep deprivation", 25, model.SeverityModerate)
		case *v > 9:
			add("excessive sleep", 12, model.SeverityLow)
		}
	}

	expected++
	if v := m.Behavioral.StressLevel; v != nil {
		present++
		if *v >= 8 {
			add("high reported stress", 20, model.SeverityModerate)
		}
	}

	expected++
	if v := m.Behavioral.ExerciseMinsPerWk; v != nil {
		present++
		if *v < 75 {
			add("below exercise minimum", 15, model.SeverityLow)
		}
	}

	expected++
	if v := m.Behavioral.AvgRestingHR; v != nil {
		present++
		switch {
		case *v > 80:
			add("elevated resting heart rate", 15, model.SeverityModerate)
		case *v > 70:
			add("raised resting heart rate", 8, model.SeverityLow)
		}
	}

	return capScore(score), factors, expected, present
}
