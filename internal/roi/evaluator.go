// Package roi evaluates the expected return on pairing a member with a
// prevention program. An eligibility failure is a result, not an error:
// the candidate comes back with ROI 0 and the reason, so callers can audit
// why a pairing was skipped.
package roi

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// CostCurve supplies the local slope of the cost-prediction curve, in
// dollars per risk point. Satisfied by costpred.Predictor.
type CostCurve interface {
	CostPerRiskPoint(scoreValue float64) decimal.Decimal
}

// Evaluator computes intervention candidates.
type Evaluator struct {
	curve CostCurve
	cfg   config.ROIConfig
}

// NewEvaluator creates an Evaluator over the given cost curve.
func NewEvaluator(curve CostCurve, cfg config.ROIConfig) (*Evaluator, error) {
	if curve == nil {
		return nil, eris.New("roi: cost curve is nil")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Evaluator{curve: curve, cfg: cfg}, nil
}

// DefaultROIConfig returns the default evaluation horizon and thresholds.
func DefaultROIConfig() config.ROIConfig {
	return config.ROIConfig{
		HorizonYears:  3,
		DiscountRate:  0.08,
		RetentionRate: 0.80,
		MinimumROI:    1.50,
	}
}

// ValidateConfig checks the ROI configuration.
func ValidateConfig(cfg config.ROIConfig) error {
	var errs []string
	if cfg.HorizonYears <= 0 {
		errs = append(errs, fmt.Sprintf("horizon_years must be > 0, got %d", cfg.HorizonYears))
	}
	if cfg.DiscountRate < 0 || cfg.DiscountRate >= 1 {
		errs = append(errs, fmt.Sprintf("discount_rate must lie in [0,1), got %v", cfg.DiscountRate))
	}
	if cfg.RetentionRate <= 0 || cfg.RetentionRate > 1 {
		errs = append(errs, fmt.Sprintf("retention_rate must lie in (0,1], got %v", cfg.RetentionRate))
	}
	if cfg.MinimumROI < 0 {
		errs = append(errs, fmt.Sprintf("minimum_roi must be >= 0, got %v", cfg.MinimumROI))
	}
	if len(errs) > 0 {
		return eris.Errorf("roi: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Evaluate pairs a member with a program and computes the expected ROI.
func (e *Evaluator) Evaluate(member *model.MemberRecord, score *model.RiskScore, program *model.InterventionProgram) (*model.InterventionCandidate, error) {
	if member == nil || score == nil || program == nil {
		return nil, eris.New("roi: member, score, and program are all required")
	}

	cand := &model.InterventionCandidate{
		MemberID:    member.MemberID,
		ProgramID:   program.ID,
		ProgramCost: program.CostPerParticipant,
	}

	if reason := eligibility(member, score, program); reason != "" {
		cand.IneligibleReason = reason
		return cand, nil
	}
	cand.Eligible = true

	// Expectation over the member choosing to complete the program.
	reduction := program.ExpectedReduction * program.CompletionRate
	cand.ExpectedReduction = reduction

	perPoint := e.curve.CostPerRiskPoint(score.Value)
	annual := perPoint.Mul(decimal.NewFromFloat(reduction)).Round(2)
	cand.AnnualSavings = annual
	cand.NPVGrossSavings = e.npv(annual)

	if !program.CostPerParticipant.IsPositive() {
		// Zero-cost programs need manual review, not an infinite ratio.
		cand.ROIUndefined = true
		return cand, nil
	}

	net := cand.NPVGrossSavings.Sub(program.CostPerParticipant)
	ratio, _ := net.Div(program.CostPerParticipant).Round(4).Float64()
	cand.ROI = ratio
	cand.Recommended = ratio >= e.cfg.MinimumROI
	cand.PaybackMonths = paybackMonths(program.CostPerParticipant, annual)

	return cand, nil
}

// EvaluatePrograms evaluates every program for one member and ranks the
// results: descending ROI, then descending absolute savings, then program
// ID for full determinism.
func (e *Evaluator) EvaluatePrograms(member *model.MemberRecord, score *model.RiskScore, programs []model.InterventionProgram) ([]model.InterventionCandidate, error) {
	out := make([]model.InterventionCandidate, 0, len(programs))
	for i := range programs {
		cand, err := e.Evaluate(member, score, &programs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *cand)
	}
	RankCandidates(out)
	return out, nil
}

// RankCandidates sorts in place: ROI descending, then absolute expected
// savings descending, then program ID ascending.
func RankCandidates(cands []model.InterventionCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.ROI != b.ROI {
			return a.ROI > b.ROI
		}
		if !a.NPVGrossSavings.Equal(b.NPVGrossSavings) {
			return a.NPVGrossSavings.GreaterThan(b.NPVGrossSavings)
		}
		return a.ProgramID < b.ProgramID
	})
}

// eligibility returns the failure reason, or "" when the pairing is valid.
func eligibility(member *model.MemberRecord, score *model.RiskScore, program *model.InterventionProgram) string {
	if !program.TargetsCategory(score.Category) {
		return fmt.Sprintf("risk category %q not targeted by program", score.Category)
	}
	if len(program.ConditionTags) > 0 {
		matched := false
		for _, tag := range program.ConditionTags {
			if member.HasConditionTag(tag) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("no active condition matches program tags %v", program.ConditionTags)
		}
	}
	return ""
}

// npv discounts the year-one savings over the horizon. Benefit decays with
// the retention rate: members churn, and the savings from a departed
// member accrue to someone else's book.
func (e *Evaluator) npv(annual decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for year := 1; year <= e.cfg.HorizonYears; year++ {
		retained := math.Pow(e.cfg.RetentionRate, float64(year-1))
		discounted := math.Pow(1+e.cfg.DiscountRate, float64(year))
		factor := decimal.NewFromFloat(retained / discounted)
		total = total.Add(annual.Mul(factor))
	}
	return total.Round(2)
}

// paybackMonths returns how many months of year-one savings recover the
// program cost, or 0 when savings are zero.
func paybackMonths(cost, annual decimal.Decimal) float64 {
	if !annual.IsPositive() {
		return 0
	}
	monthly := annual.Div(decimal.NewFromInt(12))
	months, _ := cost.Div(monthly).Round(1).Float64()
	return months
}
