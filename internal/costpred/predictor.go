// Package costpred turns a risk score into a predicted annual cost with an
// uncertainty interval. Pricing is a step function over risk categories so
// the tiers stay stable and auditable; the interval narrows as score
// confidence rises.
package costpred

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// Predictor computes cost predictions from risk scores.
type Predictor struct {
	scoring config.ScoringConfig
	cost    config.CostConfig
}

// NewPredictor creates a Predictor, validating the cost configuration
// against the category order up front.
func NewPredictor(scoring config.ScoringConfig, cost config.CostConfig) (*Predictor, error) {
	if err := ValidateConfig(cost); err != nil {
		return nil, err
	}
	return &Predictor{scoring: scoring, cost: cost}, nil
}

// Predict returns the predicted annual cost for the scored member. The
// point estimate is baseCost scaled by the category multiplier; the bounds
// widen as confidence falls.
func (p *Predictor) Predict(score *model.RiskScore) (*model.CostPrediction, error) {
	if score == nil {
		return nil, eris.New("costpred: risk score is nil")
	}
	mult, ok := p.cost.Multipliers[string(score.Category)]
	if !ok {
		return nil, eris.Errorf("costpred: no multiplier for category %q", score.Category)
	}

	point := decimal.NewFromFloat(p.cost.BaseCost).
		Mul(decimal.NewFromFloat(mult)).
		Round(2)

	width := p.intervalWidth(score.Confidence)
	w := decimal.NewFromFloat(width)
	lower := point.Mul(decimal.NewFromInt(1).Sub(w)).Round(2)
	upper := point.Mul(decimal.NewFromInt(1).Add(w)).Round(2)
	if lower.IsNegative() {
		lower = decimal.Zero
	}

	return &model.CostPrediction{
		MemberID:   score.MemberID,
		Point:      point,
		Lower:      lower,
		Upper:      upper,
		ScoreValue: score.Value,
		ScoredAt:   score.CalculatedAt,
	}, nil
}

// intervalWidth interpolates linearly between the configured max width at
// zero confidence and the min width at full confidence.
func (p *Predictor) intervalWidth(confidence float64) float64 {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return p.cost.MaxIntervalWidth - (p.cost.MaxIntervalWidth-p.cost.MinIntervalWidth)*confidence
}

// CostPerRiskPoint returns the local slope of the cost curve at the given
// score value: how much predicted annual cost drops per point of risk
// reduction. The step pricing has no derivative inside a tier, so the
// slope is taken from the piecewise-linear interpolation through each
// tier's midpoint.
func (p *Predictor) CostPerRiskPoint(scoreValue float64) decimal.Decimal {
	mids, costs := p.midpointCurve()

	// Pick the segment containing the score; clamp to the outer segments.
	seg := len(mids) - 2
	for i := 0; i < len(mids)-1; i++ {
		if scoreValue < mids[i+1] {
			seg = i
			break
		}
	}

	rise := costs[seg+1].Sub(costs[seg])
	run := decimal.NewFromFloat(mids[seg+1] - mids[seg])
	return rise.Div(run).Round(2)
}

// midpointCurve returns the category midpoints and their point costs in
// ascending category order.
func (p *Predictor) midpointCurve() ([]float64, []decimal.Decimal) {
	bounds := []float64{1, p.scoring.ModerateAt, p.scoring.HighAt, p.scoring.CriticalAt, 100}
	cats := model.Categories()

	mids := make([]float64, len(cats))
	costs := make([]decimal.Decimal, len(cats))
	base := decimal.NewFromFloat(p.cost.BaseCost)
	for i, c := range cats {
		mids[i] = (bounds[i] + bounds[i+1]) / 2
		costs[i] = base.Mul(decimal.NewFromFloat(p.cost.Multipliers[string(c)]))
	}
	return mids, costs
}

// DefaultCostConfig returns the default pricing tiers and interval widths.
func DefaultCostConfig() config.CostConfig {
	return config.CostConfig{
		BaseCost: 5800,
		Multipliers: map[string]float64{
			string(model.RiskLow):      0.6,
			string(model.RiskModerate): 1.0,
			string(model.RiskHigh):     1.9,
			string(model.RiskCritical): 3.4,
		},
		MinIntervalWidth: 0.10,
		MaxIntervalWidth: 0.50,
	}
}

// ValidateConfig checks the cost configuration: positive base cost, a
// strictly ascending multiplier for every category, and sane interval
// widths.
func ValidateConfig(cfg config.CostConfig) error {
	var errs []string

	if cfg.BaseCost <= 0 {
		errs = append(errs, fmt.Sprintf("base_cost must be > 0, got %v", cfg.BaseCost))
	}

	prev := 0.0
	for _, c := range model.Categories() {
		mult, ok := cfg.Multipliers[string(c)]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing multiplier for category %q", c))
			continue
		}
		if mult <= prev {
			errs = append(errs, fmt.Sprintf("multiplier for %q (%v) must exceed the previous tier (%v)", c, mult, prev))
		}
		prev = mult
	}

	if cfg.MinIntervalWidth < 0 || cfg.MaxIntervalWidth < cfg.MinIntervalWidth || cfg.MaxIntervalWidth >= 1 {
		errs = append(errs, fmt.Sprintf("interval widths must satisfy 0 <= min <= max < 1, got min=%v max=%v",
			cfg.MinIntervalWidth, cfg.MaxIntervalWidth))
	}

	if len(errs) > 0 {
		return eris.Errorf("costpred: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
