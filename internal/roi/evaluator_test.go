package roi

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

// flatCurve returns a fixed dollars-per-risk-point slope.
type flatCurve struct {
	perPoint decimal.Decimal
}

func (c flatCurve) CostPerRiskPoint(float64) decimal.Decimal { return c.perPoint }

func member() *model.MemberRecord {
	return &model.MemberRecord{
		MemberID: "M1",
		Age:      58,
		Conditions: []model.Condition{
			{Tag: "diabetes", Severity: model.SeverityModerate},
		},
	}
}

func highScore() *model.RiskScore {
	return &model.RiskScore{MemberID: "M1", Value: 60.4, Category: model.RiskHigh}
}

// undiscountedConfig collapses the NPV to the year-one savings so ratio
// arithmetic in tests is exact.
func undiscountedConfig() config.ROIConfig {
	return config.ROIConfig{HorizonYears: 1, DiscountRate: 0, RetentionRate: 1, MinimumROI: 1.50}
}

func program(id string, cost string, reduction, completion float64) model.InterventionProgram {
	return model.InterventionProgram{
		ID:                 id,
		Name:               id,
		Type:               model.ProgramChronicDisease,
		TargetCategories:   []model.RiskCategory{model.RiskHigh, model.RiskCritical},
		CostPerParticipant: decimal.RequireFromString(cost),
		ExpectedReduction:  reduction,
		CompletionRate:     completion,
	}
}

func TestEvaluateRecommendationThreshold(t *testing.T) {
	e, err := NewEvaluator(flatCurve{decimal.NewFromInt(100)}, undiscountedConfig())
	require.NoError(t, err)

	// 16.25 points x 0.8 completion x $100/point = $1300 NPV on a $500
	// program: ROI 1.60, above the 1.50 threshold.
	win := program("P-A", "500", 16.25, 0.8)
	cand, err := e.Evaluate(member(), highScore(), &win)
	require.NoError(t, err)

	assert.True(t, cand.Eligible)
	assert.Equal(t, "1300", cand.NPVGrossSavings.String())
	assert.InDelta(t, 1.60, cand.ROI, 1e-9)
	assert.True(t, cand.Recommended)
	assert.InDelta(t, 4.6, cand.PaybackMonths, 1e-9)

	// $600 NPV on the same cost: ROI 0.20, retained but not recommended.
	miss := program("P-B", "500", 7.5, 0.8)
	cand, err = e.Evaluate(member(), highScore(), &miss)
	require.NoError(t, err)

	assert.True(t, cand.Eligible)
	assert.InDelta(t, 0.20, cand.ROI, 1e-9)
	assert.False(t, cand.Recommended)
}

func TestEvaluateEligibility(t *testing.T) {
	e, err := NewEvaluator(flatCurve{decimal.NewFromInt(100)}, undiscountedConfig())
	require.NoError(t, err)

	t.Run("category not targeted", func(t *testing.T) {
		p := program("P-A", "500", 10, 0.8)
		lowScore := &model.RiskScore{MemberID: "M1", Value: 10, Category: model.RiskLow}

		cand, err := e.Evaluate(member(), lowScore, &p)
		require.NoError(t, err)
		assert.False(t, cand.Eligible)
		assert.Contains(t, cand.IneligibleReason, "not targeted")
		assert.Zero(t, cand.ROI)
		assert.False(t, cand.Recommended)
	})

	t.Run("condition tags do not match", func(t *testing.T) {
		p := program("P-A", "500", 10, 0.8)
		p.ConditionTags = []string{"copd", "asthma"}

		cand, err := e.Evaluate(member(), highScore(), &p)
		require.NoError(t, err)
		assert.False(t, cand.Eligible)
		assert.Contains(t, cand.IneligibleReason, "no active condition")
	})

	t.Run("condition tag matches", func(t *testing.T) {
		p := program("P-A", "500", 10, 0.8)
		p.ConditionTags = []string{"diabetes"}

		cand, err := e.Evaluate(member(), highScore(), &p)
		require.NoError(t, err)
		assert.True(t, cand.Eligible)
	})
}

func TestEvaluateZeroCostProgram(t *testing.T) {
	e, err := NewEvaluator(flatCurve{decimal.NewFromInt(100)}, undiscountedConfig())
	require.NoError(t, err)

	p := program("P-FREE", "0", 10, 0.8)
	cand, err := e.Evaluate(member(), highScore(), &p)
	require.NoError(t, err)

	assert.True(t, cand.Eligible)
	assert.True(t, cand.ROIUndefined)
	assert.Zero(t, cand.ROI)
	assert.False(t, cand.Recommended)
}

func TestNPVDiscountsAndDecays(t *testing.T) {
	e, err := NewEvaluator(flatCurve{decimal.NewFromInt(100)}, DefaultROIConfig())
	require.NoError(t, err)

	// 12.5 points x 0.8 completion x $100/point = $1000 year-one savings.
	// Over 3 years at 8% discount with 80% retention the NPV is
	// 1000 x (1/1.08 + 0.8/1.08^2 + 0.64/1.08^3) = 2119.85.
	p := program("P-A", "500", 12.5, 0.8)
	cand, err := e.Evaluate(member(), highScore(), &p)
	require.NoError(t, err)

	npv, _ := cand.NPVGrossSavings.Float64()
	assert.InDelta(t, 2119.85, npv, 0.01)

	// Decay and discounting keep the NPV strictly below the undiscounted sum.
	undiscounted := cand.AnnualSavings.Mul(decimal.NewFromInt(3))
	assert.True(t, cand.NPVGrossSavings.LessThan(undiscounted))
}

func TestRankCandidates(t *testing.T) {
	cands := []model.InterventionCandidate{
		{ProgramID: "P-C", ROI: 0.8, NPVGrossSavings: decimal.NewFromInt(900)},
		{ProgramID: "P-B", ROI: 1.6, NPVGrossSavings: decimal.NewFromInt(1300)},
		{ProgramID: "P-D", ROI: 1.6, NPVGrossSavings: decimal.NewFromInt(2600)},
		{ProgramID: "P-A", ROI: 1.6, NPVGrossSavings: decimal.NewFromInt(1300)},
	}

	RankCandidates(cands)

	got := make([]string, len(cands))
	for i, c := range cands {
		got[i] = c.ProgramID
	}
	assert.Equal(t, []string{"P-D", "P-A", "P-B", "P-C"}, got)
}

func TestValidateROIConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.ROIConfig)
		wantErr bool
	}{
		{"defaults valid", func(c *config.ROIConfig) {}, false},
		{"zero horizon", func(c *config.ROIConfig) { c.HorizonYears = 0 }, true},
		{"negative discount", func(c *config.ROIConfig) { c.DiscountRate = -0.1 }, true},
		{"discount at one", func(c *config.ROIConfig) { c.DiscountRate = 1 }, true},
		{"zero retention", func(c *config.ROIConfig) { c.RetentionRate = 0 }, true},
		{"retention above one", func(c *config.ROIConfig) { c.RetentionRate = 1.1 }, true},
		{"negative minimum", func(c *config.ROIConfig) { c.MinimumROI = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultROIConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
