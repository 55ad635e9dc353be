package scorer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// scoreUtilization computes the utilization sub-score from trailing claims
// activity. Historical cost is the strongest predictor of future cost.
func scoreUtilization(m *model.MemberRecord, cfg config.ScoringConfig) (float64, []model.RiskFactor, int, int) {
	var score float64
	var factors []model.RiskFactor

	add := func(name, actionKey string, pts float64, sev model.Severity) {
		score += pts
		factors = append(factors, model.RiskFactor{
			Name:         name,
			Type:         model.FactorUtilization,
			Contribution: pts,
			Severity:     sev,
			Action:       lookupAction(actionKey),
		})
	}

	u := m.Utilization

	if u.EmergencyVisits > 0 {
		pts := float64(u.EmergencyVisits) * 20
		add(fmt.Sprintf("emergency department use: %d visits", u.EmergencyVisits), "emergency department use", pts, model.SeverityHigh)
	}

	if u.Admissions > 0 {
		pts := float64(u.Admissions) * 35
		add(fmt.Sprintf("hospital admissions: %d", u.Admissions), "hospital admissions", pts, model.SeverityHigh)
	}

	switch {
	case u.SpecialistVisits > 6:
		add("high specialist utilization", "high specialist utilization", 20, model.SeverityModerate)
	case u.SpecialistVisits > 3:
		add("elevated specialist utilization", "elevated specialist utilization", 10, model.SeverityLow)
	}

	// Primary care engagement is protective; both extremes are signals.
	switch {
	case u.PrimaryCareVisits == 0:
		add("no primary care engagement", "no primary care engagement", 12, model.SeverityModerate)
	case u.PrimaryCareVisits > 8:
		add("very high primary care use", "very high primary care use", 18, model.SeverityModerate)
	}

	if !m.Behavioral.HasPrimaryCareDoc {
		add("no primary care relationship", "no primary care relationship", 10, model.SeverityModerate)
	}

	// Historical cost relative to the configured baseline.
	expected, present := 1, 0
	if u.TotalClaimsCost.IsPositive() {
		present++
		baseline := decimal.NewFromFloat(cfg.ClaimsBaseline)
		ratio, _ := u.TotalClaimsCost.Div(baseline).Float64()
		switch {
		case ratio > 3:
			add("claims cost far above baseline", "claims cost above baseline", 45, model.SeverityHigh)
		case ratio > 2:
			add("claims cost well above baseline", "claims cost above baseline", 30, model.SeverityHigh)
		case ratio > 1.5:
			add("claims cost above baseline", "claims cost above baseline", 18, model.SeverityModerate)
		case ratio > 1:
			add("claims cost slightly above baseline", "claims cost above baseline", 8, model.SeverityLow)
		}
	}

	return capScore(score), factors, expected, present
}
