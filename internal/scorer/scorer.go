package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// Scorer computes a risk score for a member snapshot. The rule-based
// implementation below is the default; a learned model can be substituted
// behind this interface without touching any downstream component.
type Scorer interface {
	Score(member *model.MemberRecord, cfg config.ScoringConfig) (*model.RiskScore, error)
}

// RuleScorer is the deterministic rule-based Scorer.
type RuleScorer struct{}

// NewRuleScorer creates a RuleScorer.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

// Score computes the member's risk score. Missing optional fields never
// fail; they contribute nothing and lower the confidence level in
// proportion to the fraction of expected fields that were absent.
func (s *RuleScorer) Score(member *model.MemberRecord, cfg config.ScoringConfig) (*model.RiskScore, error) {
	if member == nil {
		return nil, eris.New("scorer: member record is nil")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	demo, demoFactors := scoreDemographic(member, cfg)
	clin, clinFactors, clinExp, clinPresent := scoreClinical(member, cfg)
	behav, behavFactors, behavExp, behavPresent := scoreBehavioral(member, cfg)
	util, utilFactors, utilExp, utilPresent := scoreUtilization(member, cfg)

	value := demo*cfg.DemographicWeight +
		clin*cfg.ClinicalWeight +
		behav*cfg.BehavioralWeight +
		util*cfg.UtilizationWeight
	value = clampScore(round2(value))

	category := categorize(value, cfg)

	completeness := completenessRatio(clinPresent+behavPresent+utilPresent, clinExp+behavExp+utilExp)
	confidence := confidenceLevel(member, completeness)

	all := make([]model.RiskFactor, 0, len(demoFactors)+len(clinFactors)+len(behavFactors)+len(utilFactors))
	all = append(all, clinFactors...)
	all = append(all, behavFactors...)
	all = append(all, demoFactors...)
	all = append(all, utilFactors...)
	top := rankFactors(all, cfg.TopFactors)

	hash, err := hashInput(member, cfg.ModelVersion)
	if err != nil {
		return nil, err
	}

	score := &model.RiskScore{
		MemberID:     member.MemberID,
		Value:        value,
		Category:     category,
		Confidence:   confidence,
		Completeness: completeness,
		SubScores: model.SubScores{
			Demographic: round2(demo),
			Clinical:    round2(clin),
			Behavioral:  round2(behav),
			Utilization: round2(util),
		},
		TopFactors:    top,
		Interventions: suggestInterventions(category, top),
		ModelVersion:  cfg.ModelVersion,
		InputHash:     hash,
		CalculatedAt:  time.Now().UTC(),
	}

	zap.L().Debug("scorer: member scored",
		zap.String("member_id", member.MemberID),
		zap.Float64("value", value),
		zap.String("category", string(category)),
		zap.Float64("confidence", confidence),
	)

	return score, nil
}

// categorize maps a score value to its category using the configured
// ascending thresholds. The thresholds are exhaustive over [1,100].
func categorize(value float64, cfg config.ScoringConfig) model.RiskCategory {
	switch {
	case value < cfg.ModerateAt:
		return model.RiskLow
	case value < cfg.HighAt:
		return model.RiskModerate
	case value < cfg.CriticalAt:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}

// rankFactors sorts contributions descending by points, breaking ties by
// the fixed type priority (clinical > behavioral > demographic >
// utilization), then by name for full determinism, and returns the top n.
func rankFactors(factors []model.RiskFactor, n int) []model.RiskFactor {
	sorted := make([]model.RiskFactor, len(factors))
	copy(sorted, factors)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Contribution != b.Contribution {
			return a.Contribution > b.Contribution
		}
		if a.Type.TiePriority() != b.Type.TiePriority() {
			return a.Type.TiePriority() < b.Type.TiePriority()
		}
		return a.Name < b.Name
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// completenessRatio returns present/expected, guarding the empty case.
func completenessRatio(present, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	return round2(float64(present) / float64(expected))
}

// confidenceLevel ties score confidence to data completeness, with small
// bonuses for the data sources that anchor the rules best. Capped at 0.95.
func confidenceLevel(m *model.MemberRecord, completeness float64) float64 {
	confidence := 0.5 + completeness*0.4
	if m.Utilization.TotalClaimsCost.IsPositive() {
		confidence += 0.1
	}
	if len(m.Conditions) > 0 {
		confidence += 0.1
	}
	if m.Behavioral.AvgDailySteps != nil {
		confidence += 0.05
	}
	return round2(math.Min(confidence, 0.95))
}

// hashInput produces a sha256 over the canonical JSON encoding of the
// snapshot plus the model version, for the audit trail.
func hashInput(m *model.MemberRecord, modelVersion string) (string, error) {
	payload := struct {
		Member       *model.MemberRecord `json:"member"`
		ModelVersion string              `json:"model_version"`
	}{m, modelVersion}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrap(err, "scorer: hash input")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func capScore(v float64) float64 {
	return math.Min(v, 100)
}

func clampScore(v float64) float64 {
	return math.Min(math.Max(v, 1), 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
