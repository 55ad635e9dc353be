// Package finance computes realized savings, the operator/member profit
// split, and the pool-level aggregate with its reserve requirement.
package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// ErrInput marks rejected inputs: negative monetary figures or an operator
// rate outside (0,1).
var ErrInput = eris.New("finance: invalid input")

// DefaultSavingsConfig returns the default split rate and safety factor.
func DefaultSavingsConfig() config.SavingsConfig {
	return config.SavingsConfig{
		OperatorRate: 0.70,
		SafetyFactor: 1.35,
	}
}

// ValidateConfig checks the savings configuration.
func ValidateConfig(cfg config.SavingsConfig) error {
	var errs []string
	if cfg.OperatorRate <= 0 || cfg.OperatorRate >= 1 {
		errs = append(errs, fmt.Sprintf("operator_rate must lie in (0,1), got %v", cfg.OperatorRate))
	}
	if cfg.SafetyFactor < 1 {
		errs = append(errs, fmt.Sprintf("safety_factor must be >= 1, got %v", cfg.SafetyFactor))
	}
	if len(errs) > 0 {
		return eris.Errorf("finance: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ComputeSavings computes the period savings and the profit split for one
// member. Savings floor at zero when actual plus intervention cost exceeds
// the prediction. The member share is derived by subtraction so the two
// shares always sum to savings exactly; the operator share is rounded
// first and carries the remainder.
func ComputeSavings(period, memberID string, predicted, actual, interventionCost decimal.Decimal, cfg config.SavingsConfig) (*model.FinancialPeriodSummary, error) {
	if cfg.OperatorRate <= 0 || cfg.OperatorRate >= 1 {
		return nil, eris.Wrapf(ErrInput, "operator rate %v outside (0,1)", cfg.OperatorRate)
	}
	for name, v := range map[string]decimal.Decimal{
		"predicted":    predicted,
		"actual":       actual,
		"intervention": interventionCost,
	} {
		if v.IsNegative() {
			return nil, eris.Wrapf(ErrInput, "%s cost %s is negative", name, v)
		}
	}

	savings := predicted.Sub(actual).Sub(interventionCost)
	if savings.IsNegative() {
		savings = decimal.Zero
	}

	operator := savings.Mul(decimal.NewFromFloat(cfg.OperatorRate)).Round(2)
	member := savings.Sub(operator)

	return &model.FinancialPeriodSummary{
		Period:           period,
		Scope:            model.ScopeMember,
		MemberID:         memberID,
		PredictedCost:    predicted,
		ActualCost:       actual,
		InterventionCost: interventionCost,
		Savings:          savings,
		OperatorShare:    operator,
		MemberShare:      member,
		ComputedAt:       time.Now().UTC(),
	}, nil
}

// MemberPeriod is one member's financial inputs for a period, as gathered
// for pool aggregation. Predicted and Actual are nil when the figure is
// missing for the period.
type MemberPeriod struct {
	MemberID         string
	Category         model.RiskCategory
	Predicted        *decimal.Decimal
	Actual           *decimal.Decimal
	InterventionCost decimal.Decimal
}

// AggregatePool sums per-member summaries into the pool summary for a
// period. Members missing a predicted or actual figure are excluded and
// recorded, never zero-defaulted: a silent zero would understate the true
// reserve need. The reserve is reported alongside the savings figures, not
// subtracted from them.
func AggregatePool(period string, members []MemberPeriod, cfg config.SavingsConfig) (*model.PoolSummary, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	pool := &model.PoolSummary{
		Summary: model.FinancialPeriodSummary{
			Period: period,
			Scope:  model.ScopePool,
		},
	}

	var predictedSum, actualSum, interventionSum, savingsSum, operatorSum, memberSum decimal.Decimal
	for _, m := range members {
		if reason := missingReason(m); reason != "" {
			pool.Excluded = append(pool.Excluded, model.PoolExclusion{MemberID: m.MemberID, Reason: reason})
			continue
		}

		summary, err := ComputeSavings(period, m.MemberID, *m.Predicted, *m.Actual, m.InterventionCost, cfg)
		if err != nil {
			return nil, eris.Wrapf(err, "finance: aggregate member %s", m.MemberID)
		}

		predictedSum = predictedSum.Add(summary.PredictedCost)
		actualSum = actualSum.Add(summary.ActualCost)
		interventionSum = interventionSum.Add(summary.InterventionCost)
		savingsSum = savingsSum.Add(summary.Savings)
		operatorSum = operatorSum.Add(summary.OperatorShare)
		memberSum = memberSum.Add(summary.MemberShare)

		pool.MembersIncluded++
		countCategory(&pool.Distribution, m.Category)
	}

	pool.Summary.PredictedCost = predictedSum
	pool.Summary.ActualCost = actualSum
	pool.Summary.InterventionCost = interventionSum
	pool.Summary.Savings = savingsSum
	pool.Summary.OperatorShare = operatorSum
	pool.Summary.MemberShare = memberSum
	pool.Summary.ComputedAt = time.Now().UTC()

	if predictedSum.IsPositive() {
		pct, _ := savingsSum.Div(predictedSum).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		pool.SavingsPercent = pct
	}
	pool.Reserve = predictedSum.Mul(decimal.NewFromFloat(cfg.SafetyFactor)).Round(2)

	return pool, nil
}

func missingReason(m MemberPeriod) string {
	switch {
	case m.Predicted == nil && m.Actual == nil:
		return "missing predicted and actual cost"
	case m.Predicted == nil:
		return "missing predicted cost"
	case m.Actual == nil:
		return "missing actual cost"
	default:
		return ""
	}
}

func countCategory(d *model.RiskDistribution, c model.RiskCategory) {
	switch c {
	case model.RiskLow:
		d.Low++
	case model.RiskModerate:
		d.Moderate++
	case model.RiskHigh:
		d.High++
	case model.RiskCritical:
		d.Critical++
	}
}
