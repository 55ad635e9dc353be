// Package scorer implements rule-based health risk scoring for members.
//
// Scoring is deterministic and auditable: identical input, config, and model
// version always produce an identical score. The Scorer interface is the
// substitution point for a learned model.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wellness-engine/internal/config"
)

// DefaultScoringConfig returns a config.ScoringConfig with the default rule
// tables. Weights sum to 1.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		ModelVersion: "1.0.0",

		DemographicWeight: 0.20,
		ClinicalWeight:    0.35,
		BehavioralWeight:  0.25,
		UtilizationWeight: 0.20,

		ModerateAt: 25,
		HighAt:     50,
		CriticalAt: 75,

		ConditionPoints: map[string]float64{
			"diabetes":                60,
			"hypertension":            45,
			"coronary_artery_disease": 75,
			"copd":                    65,
			"chronic_kidney_disease":  85,
			"cancer":                  95,
			"heart_failure":           80,
			"dementia":                90,
			"asthma":                  35,
			"depression":              40,
			"schizophrenia":           70,
		},
		SeverityMultipliers: map[string]float64{
			"low":      0.5,
			"moderate": 1.0,
			"high":     1.4,
		},

		ClaimsBaseline: 5800,
		TopFactors:     5,
	}
}

// WeightSum returns the sum of the four sub-score weights.
func WeightSum(c config.ScoringConfig) float64 {
	return c.DemographicWeight + c.ClinicalWeight + c.BehavioralWeight + c.UtilizationWeight
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
// Malformed thresholds or weights are rejected, never silently clamped.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"demographic_weight": c.DemographicWeight,
		"clinical_weight":    c.ClinicalWeight,
		"behavioral_weight":  c.BehavioralWeight,
		"utilization_weight": c.UtilizationWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if math.Abs(WeightSum(c)-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1, got %.3f", WeightSum(c)))
	}

	// Thresholds must be strictly ascending and exhaustive over [1,100].
	if !(c.ModerateAt < c.HighAt && c.HighAt < c.CriticalAt) {
		errs = append(errs, fmt.Sprintf("thresholds must be strictly ascending, got %.1f/%.1f/%.1f",
			c.ModerateAt, c.HighAt, c.CriticalAt))
	}
	if c.ModerateAt <= 1 || c.CriticalAt > 100 {
		errs = append(errs, "thresholds must lie within (1,100]")
	}

	for sev, m := range c.SeverityMultipliers {
		if m < 0 {
			errs = append(errs, fmt.Sprintf("severity multiplier %q must be >= 0", sev))
		}
	}

	if c.TopFactors <= 0 {
		errs = append(errs, "top_factors must be > 0")
	}
	if c.ClaimsBaseline <= 0 {
		errs = append(errs, "claims_baseline must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
