// Package portfolio selects the subset of intervention candidates that
// maximizes expected savings within a budget.
//
// Small instances get an exact knapsack dynamic program; large instances,
// and any run that exhausts its time budget, fall back to a greedy
// selection by savings density. Cancellation returns the greedy result
// rather than no result.
package portfolio

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// Result is the outcome of a selection run.
type Result struct {
	Selected []model.InterventionCandidate

	// Exact is true when the knapsack DP completed and the selection is
	// provably optimal; false means the greedy fallback produced it.
	Exact bool
	// FallbackReason explains a greedy result: instance size or timeout.
	FallbackReason string

	TotalCost    decimal.Decimal
	TotalSavings decimal.Decimal
}

// DefaultPortfolioConfig returns the default optimizer parameters.
func DefaultPortfolioConfig() config.PortfolioConfig {
	return config.PortfolioConfig{
		BudgetUnit:         1.0,
		MaxDPCells:         5_000_000,
		TimeBudgetSecs:     30,
		ResponseWindowDays: 30,
	}
}

// ValidateConfig checks the optimizer configuration.
func ValidateConfig(cfg config.PortfolioConfig) error {
	var errs []string
	if cfg.BudgetUnit <= 0 {
		errs = append(errs, "budget_unit must be > 0")
	}
	if cfg.MaxDPCells <= 0 {
		errs = append(errs, "max_dp_cells must be > 0")
	}
	if cfg.TimeBudgetSecs <= 0 {
		errs = append(errs, "time_budget_secs must be > 0")
	}
	if cfg.ResponseWindowDays <= 0 {
		errs = append(errs, "response_window_days must be > 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("portfolio: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// item is a selectable candidate with its cost in budget units.
type item struct {
	cand    model.InterventionCandidate
	units   int
	savings float64
}

// Select picks the candidate subset maximizing total expected savings
// without exceeding the budget. Candidates that are ineligible, carry an
// undefined ROI, or have a non-positive cost are never selected
// automatically. The budget is never exceeded, including by rounding:
// costs round up to the budget unit.
func Select(ctx context.Context, cands []model.InterventionCandidate, budget decimal.Decimal, cfg config.PortfolioConfig) (*Result, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if budget.IsNegative() {
		return nil, eris.Errorf("portfolio: budget %s is negative", budget)
	}

	if cfg.TimeBudgetSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeBudgetSecs)*time.Second)
		defer cancel()
	}

	unit := decimal.NewFromFloat(cfg.BudgetUnit)
	budgetUnits := int(budget.Div(unit).IntPart())

	items := selectable(cands, unit, budgetUnits)
	if len(items) == 0 {
		return &Result{Exact: true}, nil
	}

	cells := len(items) * (budgetUnits + 1)
	if cells > cfg.MaxDPCells {
		zap.L().Debug("portfolio: instance too large for exact solve",
			zap.Int("candidates", len(items)),
			zap.Int("budget_units", budgetUnits),
			zap.Int("cells", cells),
		)
		return greedy(items, budgetUnits, "instance exceeds DP cell limit"), nil
	}

	chosen, ok := knapsack(ctx, items, budgetUnits)
	if !ok {
		return greedy(items, budgetUnits, "time budget expired"), nil
	}
	return buildResult(chosen, true, ""), nil
}

// selectable filters to the candidates the optimizer may pick and converts
// costs to budget units, rounding up.
func selectable(cands []model.InterventionCandidate, unit decimal.Decimal, budgetUnits int) []item {
	var items []item
	for _, c := range cands {
		if !c.Eligible || c.ROIUndefined || !c.ProgramCost.IsPositive() {
			continue
		}
		units := int(c.ProgramCost.Div(unit).Ceil().IntPart())
		if units > budgetUnits {
			continue
		}
		savings, _ := c.NPVGrossSavings.Float64()
		if savings <= 0 {
			continue
		}
		items = append(items, item{cand: c, units: units, savings: savings})
	}
	return items
}

// knapsack is the exact 0/1 DP over budget units. Returns ok=false when
// the context expires mid-solve.
func knapsack(ctx context.Context, items []item, budgetUnits int) ([]item, bool) {
	n := len(items)

	// value[w] is the best savings achievable with capacity w; take[i][w]
	// records whether item i is in that solution.
	value := make([]float64, budgetUnits+1)
	take := make([][]bool, n)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}

		take[i] = make([]bool, budgetUnits+1)
		it := items[i]
		for w := budgetUnits; w >= it.units; w-- {
			with := value[w-it.units] + it.savings
			if with > value[w] {
				value[w] = with
				take[i][w] = true
			}
		}
	}

	// Walk the take table backwards to recover the chosen set.
	var chosen []item
	w := budgetUnits
	for i := n - 1; i >= 0; i-- {
		if take[i][w] {
			chosen = append(chosen, items[i])
			w -= items[i].units
		}
	}
	return chosen, true
}

// maxLocalPasses bounds the greedy improvement loop.
const maxLocalPasses = 4096

// greedy selects by savings density descending, never adding a candidate
// that would exceed the budget, then applies single-swap local improvement
// until no exchange of one selected for one unselected candidate raises
// total savings within budget.
func greedy(items []item, budgetUnits int, reason string) *Result {
	sorted := make([]item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		da := a.savings / float64(a.units)
		db := b.savings / float64(b.units)
		if da != db {
			return da > db
		}
		return a.cand.ProgramID < b.cand.ProgramID
	})

	in := make([]bool, len(sorted))
	used := 0

	fill := func() bool {
		added := false
		for i, it := range sorted {
			if !in[i] && used+it.units <= budgetUnits {
				in[i] = true
				used += it.units
				added = true
			}
		}
		return added
	}
	fill()

	for pass := 0; pass < maxLocalPasses; pass++ {
		bestGain := 0.0
		bestOut, bestIn := -1, -1
		for i := range sorted {
			if !in[i] {
				continue
			}
			for j := range sorted {
				if in[j] {
					continue
				}
				if used-sorted[i].units+sorted[j].units > budgetUnits {
					continue
				}
				if gain := sorted[j].savings - sorted[i].savings; gain > bestGain {
					bestGain = gain
					bestOut, bestIn = i, j
				}
			}
		}
		if bestOut < 0 {
			break
		}
		in[bestOut] = false
		in[bestIn] = true
		used += sorted[bestIn].units - sorted[bestOut].units
		fill()
	}

	var chosen []item
	for i, it := range sorted {
		if in[i] {
			chosen = append(chosen, it)
		}
	}
	return buildResult(chosen, false, reason)
}

func buildResult(chosen []item, exact bool, reason string) *Result {
	res := &Result{Exact: exact, FallbackReason: reason}
	for _, it := range chosen {
		res.Selected = append(res.Selected, it.cand)
		res.TotalCost = res.TotalCost.Add(it.cand.ProgramCost)
		res.TotalSavings = res.TotalSavings.Add(it.cand.NPVGrossSavings)
	}
	sort.SliceStable(res.Selected, func(i, j int) bool {
		a, b := res.Selected[i], res.Selected[j]
		if a.MemberID != b.MemberID {
			return a.MemberID < b.MemberID
		}
		return a.ProgramID < b.ProgramID
	})
	return res
}

// SwapImproves reports whether exchanging one selected candidate for one
// unselected candidate raises total savings while staying within budget.
// A sound greedy result admits no such swap.
func SwapImproves(res *Result, all []model.InterventionCandidate, budget decimal.Decimal) bool {
	inSel := make(map[string]bool, len(res.Selected))
	for _, c := range res.Selected {
		inSel[key(c)] = true
	}

	for _, in := range all {
		if inSel[key(in)] || !in.Eligible || in.ROIUndefined || !in.ProgramCost.IsPositive() {
			continue
		}
		for _, out := range res.Selected {
			cost := res.TotalCost.Sub(out.ProgramCost).Add(in.ProgramCost)
			if cost.GreaterThan(budget) {
				continue
			}
			if in.NPVGrossSavings.GreaterThan(out.NPVGrossSavings) {
				return true
			}
		}
	}
	return false
}

func key(c model.InterventionCandidate) string {
	return c.MemberID + "/" + c.ProgramID
}
