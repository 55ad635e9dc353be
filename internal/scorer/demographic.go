package scorer

import (
	"fmt"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// scoreDemographic computes the demographic sub-score from age, sex, and
// region. Age and sex are required snapshot fields, so this sub-score does
// not affect completeness.
func scoreDemographic(m *model.MemberRecord, cfg config.ScoringConfig) (float64, []model.RiskFactor) {
	var score float64
	var factors []model.RiskFactor

	// Age risk is non-linear: actuarial bands rather than a slope.
	var agePoints float64
	var ageSeverity model.Severity
	switch {
	case m.Age < 30:
		agePoints, ageSeverity = 10, model.SeverityLow
	case m.Age < 45:
		agePoints, ageSeverity = 20, model.SeverityLow
	case m.Age < 60:
		agePoints, ageSeverity = 40, model.SeverityModerate
	case m.Age < 75:
		agePoints, ageSeverity = 60, model.SeverityModerate
	default:
		agePoints, ageSeverity = 80, model.SeverityHigh
	}
	score += agePoints
	factors = append(factors, model.RiskFactor{
		Name:         fmt.Sprintf("age band: %d", m.Age),
		Type:         model.FactorDemographic,
		Contribution: agePoints,
		Severity:     ageSeverity,
		Action:       lookupAction("age band"),
	})

	// Sex-specific actuarial adjustments.
	if m.Sex == model.SexMale && m.Age > 50 {
		score += 10
		factors = append(factors, model.RiskFactor{
			Name:         "cardiovascular risk profile",
			Type:         model.FactorDemographic,
			Contribution: 10,
			Severity:     model.SeverityLow,
			Action:       lookupAction("cardiovascular risk profile"),
		})
	} else if m.Sex == model.SexFemale && m.Age > 40 {
		score += 6
		factors = append(factors, model.RiskFactor{
			Name:         "preventive screening profile",
			Type:         model.FactorDemographic,
			Contribution: 6,
			Severity:     model.SeverityLow,
			Action:       lookupAction("preventive screening profile"),
		})
	}

	// Optional per-region adjustment from config.
	if pts, ok := cfg.RegionPoints[m.Region]; ok && pts > 0 {
		score += pts
		factors = append(factors, model.RiskFactor{
			Name:         fmt.Sprintf("region: %s", m.Region),
			Type:         model.FactorDemographic,
			Contribution: pts,
			Severity:     model.SeverityLow,
			Action:       lookupAction("region"),
		})
	}

	return capScore(score), factors
}
