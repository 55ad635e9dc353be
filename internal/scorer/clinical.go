package scorer

import (
	"fmt"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// scoreClinical computes the clinical sub-score from active conditions,
// medication load, and vitals. Returns the capped sub-score, the rule
// contributions that fired, and the expected/present optional field counts
// for the completeness metric.
func scoreClinical(m *model.MemberRecord, cfg config.ScoringConfig) (float64, []model.RiskFactor, int, int) {
	var score float64
	var factors []model.RiskFactor

	// Chronic conditions: base points per tag, scaled by severity.
	for _, c := range m.Conditions {
		base, ok := cfg.ConditionPoints[c.Tag]
		if !ok {
			continue // unknown tags contribute nothing
		}
		mult, ok := cfg.SeverityMultipliers[string(c.Severity)]
		if !ok {
			mult = 1.0
		}
		pts := base * mult
		score += pts
		factors = append(factors, model.RiskFactor{
			Name:         fmt.Sprintf("chronic condition: %s", c.Tag),
			Type:         model.FactorClinical,
			Contribution: pts,
			Severity:     c.Severity,
			Action:       lookupAction("chronic condition"),
		})
	}

	// Polypharmacy.
	switch {
	case len(m.Medications) >= 5:
		score += 25
		factors = append(factors, model.RiskFactor{
			Name:         "polypharmacy",
			Type:         model.FactorClinical,
			Contribution: 25,
			Severity:     model.SeverityHigh,
			Action:       lookupAction("polypharmacy"),
		})
	case len(m.Medications) >= 3:
		score += 12
		factors = append(factors, model.RiskFactor{
			Name:         "multiple medications",
			Type:         model.FactorClinical,
			Contribution: 12,
			Severity:     model.SeverityModerate,
			Action:       lookupAction("multiple medications"),
		})
	}

	// Vitals. Each reading is an expected optional field.
	expected, present := 0, 0

	expected++
	if v := m.Vitals.BMI; v != nil {
		present++
		switch {
		case *v < 18.5:
			score += 12
			factors = append(factors, vitalsFactor("underweight", 12, model.SeverityModerate))
		case *v >= 30:
			score += 20
			factors = append(factors, vitalsFactor("obesity", 20, model.SeverityModerate))
		case *v >= 25:
			score += 10
			factors = append(factors, vitalsFactor("overweight", 10, model.SeverityLow))
		}
	}

	expected++
	if v := m.Vitals.SystolicBP; v != nil {
		present++
		switch {
		case *v >= 140:
			score += 25
			factors = append(factors, vitalsFactor("uncontrolled hypertension", 25, model.SeverityHigh))
		case *v >= 130:
			score += 15
			factors = append(factors, vitalsFactor("elevated blood pressure", 15, model.SeverityModerate))
		}
	}

	expected++
	if m.Vitals.DiastolicBP != nil {
		present++
	}

	expected++
	if v := m.Vitals.GlucoseLevel; v != nil {
		present++
		switch {
		case *v >= 126:
			score += 30
			factors = append(factors, vitalsFactor("diabetic-range glucose", 30, model.SeverityHigh))
		case *v >= 100:
			score += 15
			factors = append(factors, vitalsFactor("prediabetic glucose", 15, model.SeverityModerate))
		}
	}

	expected++
	if v := m.Vitals.CholesterolLDL; v != nil {
		present++
		if *v >= 160 {
			score += 20
			factors = append(factors, vitalsFactor("high LDL cholesterol", 20, model.SeverityModerate))
		}
	}

	// List fields count toward completeness once each.
	expected += 2
	if len(m.Conditions) > 0 {
		present++
	}
	if len(m.Medications) > 0 {
		present++
	}

	return capScore(score), factors, expected, present
}

func vitalsFactor(name string, pts float64, sev model.Severity) model.RiskFactor {
	return model.RiskFactor{
		Name:         name,
		Type:         model.FactorClinical,
		Contribution: pts,
		Severity:     sev,
		Action:       lookupAction(name),
	}
}
