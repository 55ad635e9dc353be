package finance

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeSavingsReferenceScenario(t *testing.T) {
	sum, err := ComputeSavings("2026-Q1", "M1", dec("14200"), dec("9500"), dec("800"), DefaultSavingsConfig())
	require.NoError(t, err)

	assert.Equal(t, "3900", sum.Savings.String())
	assert.Equal(t, "2730", sum.OperatorShare.String())
	assert.Equal(t, "1170", sum.MemberShare.String())
	assert.Equal(t, model.ScopeMember, sum.Scope)
}

func TestComputeSavingsFloorsAtZero(t *testing.T) {
	sum, err := ComputeSavings("2026-Q1", "M1", dec("5000"), dec("6200"), dec("300"), DefaultSavingsConfig())
	require.NoError(t, err)

	assert.True(t, sum.Savings.IsZero())
	assert.True(t, sum.OperatorShare.IsZero())
	assert.True(t, sum.MemberShare.IsZero())
}

func TestComputeSavingsRejectsBadInput(t *testing.T) {
	cfg := DefaultSavingsConfig()

	tests := []struct {
		name                      string
		predicted, actual, interv string
		rate                      float64
	}{
		{"negative predicted", "-1", "0", "0", 0.70},
		{"negative actual", "100", "-5", "0", 0.70},
		{"negative intervention", "100", "50", "-0.01", 0.70},
		{"rate zero", "100", "50", "0", 0},
		{"rate one", "100", "50", "0", 1},
		{"rate above one", "100", "50", "0", 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.OperatorRate = tt.rate
			_, err := ComputeSavings("p", "m", dec(tt.predicted), dec(tt.actual), dec(tt.interv), c)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInput)
		})
	}
}

func TestSplitSumInvariantRandomized(t *testing.T) {
	cfg := DefaultSavingsConfig()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		predicted := decimal.NewFromFloat(rng.Float64() * 50000).Round(2)
		actual := decimal.NewFromFloat(rng.Float64() * 50000).Round(2)
		interv := decimal.NewFromFloat(rng.Float64() * 5000).Round(2)

		sum, err := ComputeSavings("p", "m", predicted, actual, interv, cfg)
		require.NoError(t, err)

		assert.True(t, sum.OperatorShare.Add(sum.MemberShare).Equal(sum.Savings),
			"predicted=%s actual=%s interv=%s", predicted, actual, interv)
		assert.False(t, sum.Savings.IsNegative())
	}
}

func TestAggregatePool(t *testing.T) {
	p1, a1 := dec("14200"), dec("9500")
	p2, a2 := dec("6000"), dec("6500")
	p3 := dec("8000")

	members := []MemberPeriod{
		{MemberID: "M1", Category: model.RiskHigh, Predicted: &p1, Actual: &a1, InterventionCost: dec("800")},
		{MemberID: "M2", Category: model.RiskModerate, Predicted: &p2, Actual: &a2},
		{MemberID: "M3", Category: model.RiskLow, Predicted: &p3},
		{MemberID: "M4", Category: model.RiskCritical},
	}

	pool, err := AggregatePool("2026-Q1", members, DefaultSavingsConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, pool.MembersIncluded)
	require.Len(t, pool.Excluded, 2)
	assert.Equal(t, "M3", pool.Excluded[0].MemberID)
	assert.Equal(t, "missing actual cost", pool.Excluded[0].Reason)
	assert.Equal(t, "M4", pool.Excluded[1].MemberID)
	assert.Equal(t, "missing predicted and actual cost", pool.Excluded[1].Reason)

	// M1 saves 3900; M2 overruns and floors at zero.
	assert.Equal(t, "20200", pool.Summary.PredictedCost.String())
	assert.Equal(t, "16000", pool.Summary.ActualCost.String())
	assert.Equal(t, "3900", pool.Summary.Savings.String())
	assert.True(t, pool.Summary.OperatorShare.Add(pool.Summary.MemberShare).Equal(pool.Summary.Savings))

	// Reserve scales the predicted sum, not the savings.
	assert.Equal(t, "27270", pool.Reserve.String())
	assert.InDelta(t, 19.31, pool.SavingsPercent, 0.001)

	assert.Equal(t, model.RiskDistribution{Moderate: 1, High: 1}, pool.Distribution)
}

func TestAggregatePoolEmpty(t *testing.T) {
	pool, err := AggregatePool("2026-Q1", nil, DefaultSavingsConfig())
	require.NoError(t, err)

	assert.Equal(t, 0, pool.MembersIncluded)
	assert.True(t, pool.Reserve.IsZero())
	assert.Zero(t, pool.SavingsPercent)
}

func TestValidateSavingsConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SavingsConfig
		wantErr bool
	}{
		{"defaults", DefaultSavingsConfig(), false},
		{"rate too low", config.SavingsConfig{OperatorRate: 0, SafetyFactor: 1.35}, true},
		{"rate too high", config.SavingsConfig{OperatorRate: 1, SafetyFactor: 1.35}, true},
		{"safety below one", config.SavingsConfig{OperatorRate: 0.7, SafetyFactor: 0.9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
