package portfolio

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wellness-engine/internal/model"
)

func cand(memberID, programID string, cost, savings int64) model.InterventionCandidate {
	return model.InterventionCandidate{
		MemberID:        memberID,
		ProgramID:       programID,
		Eligible:        true,
		ProgramCost:     decimal.NewFromInt(cost),
		NPVGrossSavings: decimal.NewFromInt(savings),
	}
}

func TestSelectExactOptimal(t *testing.T) {
	// The greedy density order would grab A first and strand the budget;
	// the exact solve must prefer B+C.
	cands := []model.InterventionCandidate{
		cand("M1", "P-A", 800, 2000),
		cand("M2", "P-B", 500, 1300),
		cand("M3", "P-C", 500, 1200),
	}

	res, err := Select(context.Background(), cands, decimal.NewFromInt(1000), DefaultPortfolioConfig())
	require.NoError(t, err)

	assert.True(t, res.Exact)
	require.Len(t, res.Selected, 2)
	assert.Equal(t, "P-B", res.Selected[0].ProgramID)
	assert.Equal(t, "P-C", res.Selected[1].ProgramID)
	assert.Equal(t, "1000", res.TotalCost.String())
	assert.Equal(t, "2500", res.TotalSavings.String())
}

func TestSelectSkipsUnselectableCandidates(t *testing.T) {
	ineligible := cand("M1", "P-A", 100, 900)
	ineligible.Eligible = false
	undefined := cand("M2", "P-B", 100, 900)
	undefined.ROIUndefined = true
	free := cand("M3", "P-C", 0, 900)
	tooBig := cand("M4", "P-D", 5000, 9000)
	ok := cand("M5", "P-E", 100, 500)

	cands := []model.InterventionCandidate{ineligible, undefined, free, tooBig, ok}
	res, err := Select(context.Background(), cands, decimal.NewFromInt(1000), DefaultPortfolioConfig())
	require.NoError(t, err)

	require.Len(t, res.Selected, 1)
	assert.Equal(t, "P-E", res.Selected[0].ProgramID)
}

func TestSelectBudgetNeverExceeded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := DefaultPortfolioConfig()

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(12)
		cands := make([]model.InterventionCandidate, n)
		for i := range cands {
			cands[i] = cand(
				fmt.Sprintf("M%d", i),
				fmt.Sprintf("P-%d", i),
				int64(50+rng.Intn(950)),
				int64(rng.Intn(3000)),
			)
		}
		budget := decimal.NewFromInt(int64(rng.Intn(3000)))

		res, err := Select(context.Background(), cands, budget, cfg)
		require.NoError(t, err)
		assert.True(t, res.TotalCost.LessThanOrEqual(budget),
			"trial %d: cost %s over budget %s", trial, res.TotalCost, budget)
	}
}

func TestSelectGreedyFallbackIsSwapOptimal(t *testing.T) {
	cfg := DefaultPortfolioConfig()
	cfg.MaxDPCells = 1 // force the greedy path

	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(10)
		cands := make([]model.InterventionCandidate, n)
		for i := range cands {
			cands[i] = cand(
				fmt.Sprintf("M%d", i),
				fmt.Sprintf("P-%d", i),
				int64(50+rng.Intn(950)),
				int64(1+rng.Intn(3000)),
			)
		}
		budget := decimal.NewFromInt(int64(500 + rng.Intn(2500)))

		res, err := Select(context.Background(), cands, budget, cfg)
		require.NoError(t, err)

		assert.False(t, res.Exact)
		assert.Equal(t, "instance exceeds DP cell limit", res.FallbackReason)
		assert.True(t, res.TotalCost.LessThanOrEqual(budget))
		assert.False(t, SwapImproves(res, cands, budget),
			"trial %d: an improving swap exists", trial)
	}
}

func TestSelectCancelledContextReturnsGreedyResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands := []model.InterventionCandidate{
		cand("M1", "P-A", 800, 2000),
		cand("M2", "P-B", 500, 1300),
		cand("M3", "P-C", 500, 1200),
	}

	res, err := Select(ctx, cands, decimal.NewFromInt(1000), DefaultPortfolioConfig())
	require.NoError(t, err)

	assert.False(t, res.Exact)
	assert.Equal(t, "time budget expired", res.FallbackReason)
	assert.True(t, res.TotalCost.LessThanOrEqual(decimal.NewFromInt(1000)))
	assert.NotEmpty(t, res.Selected)
}

func TestSelectEmptyInput(t *testing.T) {
	res, err := Select(context.Background(), nil, decimal.NewFromInt(1000), DefaultPortfolioConfig())
	require.NoError(t, err)

	assert.True(t, res.Exact)
	assert.Empty(t, res.Selected)
	assert.True(t, res.TotalCost.IsZero())
}

func TestSelectNegativeBudget(t *testing.T) {
	_, err := Select(context.Background(), nil, decimal.NewFromInt(-1), DefaultPortfolioConfig())
	assert.Error(t, err)
}

func TestRecommendationLifecycle(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	recs := NewRecommendations([]model.InterventionCandidate{
		cand("M1", "P-A", 500, 1300),
		cand("M2", "P-B", 400, 900),
	}, now)

	require.Len(t, recs, 2)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
	assert.Equal(t, model.StatePending, recs[0].State)

	rec := &recs[0]
	for _, next := range []model.RecommendationState{
		model.StatePresented, model.StateAccepted, model.StateEnrolled, model.StateCompleted,
	} {
		require.NoError(t, Transition(rec, next, now))
	}
	assert.True(t, rec.State.Terminal())

	// Completed admits nothing further.
	err := Transition(rec, model.StateDropped, now)
	assert.Error(t, err)

	// Skipping presented is illegal.
	other := &recs[1]
	err = Transition(other, model.StateEnrolled, now)
	assert.Error(t, err)
	assert.Equal(t, model.StatePending, other.State)
}

func TestExpireIfStale(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	recs := NewRecommendations([]model.InterventionCandidate{
		cand("M1", "P-A", 500, 1300),
	}, created)
	rec := &recs[0]

	assert.False(t, ExpireIfStale(rec, created.AddDate(0, 0, 29), 30))
	assert.Equal(t, model.StatePending, rec.State)

	assert.True(t, ExpireIfStale(rec, created.AddDate(0, 0, 30), 30))
	assert.Equal(t, model.StateExpired, rec.State)

	// Post-response states never expire.
	enrolled := &model.InterventionRecommendation{State: model.StateEnrolled, CreatedAt: created}
	assert.False(t, ExpireIfStale(enrolled, created.AddDate(0, 0, 90), 30))
}
