package population

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/costpred"
	"github.com/sells-group/wellness-engine/internal/finance"
	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/monitoring"
	"github.com/sells-group/wellness-engine/internal/resilience"
	"github.com/sells-group/wellness-engine/internal/scorer"
	"github.com/sells-group/wellness-engine/internal/store"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		Scoring:     scorer.DefaultScoringConfig(),
		Cost:        costpred.DefaultCostConfig(),
		Savings:     finance.DefaultSavingsConfig(),
		Concurrency: 4,
	}
}

func newTestRunner(t *testing.T, sink store.Store, stats *monitoring.RunStats) *Runner {
	t.Helper()
	cfg := testEngineConfig()
	pred, err := costpred.NewPredictor(cfg.Scoring, cfg.Cost)
	require.NoError(t, err)

	r := NewRunner(scorer.NewRuleScorer(), pred, sink, stats, cfg)
	r.retry = resilience.RetryConfig{MaxAttempts: 1}
	return r
}

func newRunnerStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func steps(n int) *int { return &n }

func testMember(id string, age int, smoker bool) *model.MemberRecord {
	return &model.MemberRecord{
		MemberID: id,
		Age:      age,
		Sex:      model.SexFemale,
		Behavioral: model.Behavioral{
			AvgDailySteps:     steps(6000),
			Smoker:            smoker,
			HasPrimaryCareDoc: true,
		},
		Utilization: model.Utilization{
			TotalClaimsCost:   decimal.NewFromInt(2000),
			PrimaryCareVisits: 2,
		},
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestRunComputesAndPersists(t *testing.T) {
	st := newRunnerStore(t)
	stats := &monitoring.RunStats{}
	r := newTestRunner(t, st, stats)
	ctx := context.Background()

	inputs := []MemberInput{
		{Member: testMember("M1", 30, false), Actual: dec("1800")},
		{Member: testMember("M2", 62, true), Actual: dec("9500"), InterventionCost: decimal.NewFromInt(400)},
	}

	run, err := r.Run(ctx, "2026-Q1", inputs)
	require.NoError(t, err)
	require.NotNil(t, run.Pool)

	assert.Empty(t, run.Warnings)
	assert.Equal(t, 2, run.Pool.MembersIncluded)
	assert.Empty(t, run.Pool.Excluded)
	assert.Equal(t, 2, stats.Scored())
	assert.Zero(t, stats.WriteFailures())

	for _, res := range run.Results {
		require.NoError(t, res.Err)
		require.NotNil(t, res.Score)
		require.NotNil(t, res.Prediction)
		assert.True(t, res.Prediction.Point.IsPositive())
	}

	score, err := st.LatestScore(ctx, "M1")
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, run.Results[0].Score.Value, score.Value)
}

func TestRunMemberFailureDoesNotAbort(t *testing.T) {
	stats := &monitoring.RunStats{}
	r := newTestRunner(t, nil, stats)

	inputs := []MemberInput{
		{Member: nil, Actual: dec("100")}, // scoring fails
		{Member: testMember("M2", 45, false), Actual: dec("4000")},
	}

	run, err := r.Run(context.Background(), "2026-Q1", inputs)
	require.NoError(t, err)

	require.Error(t, run.Results[0].Err)
	require.NoError(t, run.Results[1].Err)

	assert.Equal(t, 1, run.Pool.MembersIncluded)
	require.Len(t, run.Pool.Excluded, 1)
	assert.Equal(t, 1, stats.ScoreFailures())
	assert.Equal(t, 1, stats.Excluded())
}

func TestRunMissingActualExcludesFromPool(t *testing.T) {
	r := newTestRunner(t, nil, nil)

	run, err := r.Run(context.Background(), "2026-Q1", []MemberInput{
		{Member: testMember("M1", 30, false)}, // no actual cost yet
	})
	require.NoError(t, err)

	assert.Zero(t, run.Pool.MembersIncluded)
	require.Len(t, run.Pool.Excluded, 1)
	assert.Equal(t, "M1", run.Pool.Excluded[0].MemberID)
	assert.Contains(t, run.Pool.Excluded[0].Reason, "actual")
}

func TestRunRequiresPeriod(t *testing.T) {
	r := newTestRunner(t, nil, nil)

	_, err := r.Run(context.Background(), "", nil)
	require.Error(t, err)
}

func TestRunLargePopulationParallel(t *testing.T) {
	r := newTestRunner(t, nil, nil)

	inputs := make([]MemberInput, 200)
	for i := range inputs {
		inputs[i] = MemberInput{
			Member: testMember(fmt.Sprintf("M%03d", i), 25+i%50, i%3 == 0),
			Actual: dec("3000"),
		}
	}

	run, err := r.Run(context.Background(), "2026-Q2", inputs)
	require.NoError(t, err)
	assert.Equal(t, 200, run.Pool.MembersIncluded)
}

// failingSink passes through to SQLite except for score writes, which
// always fail with a permanent error.
type failingSink struct {
	store.Store
}

func (f *failingSink) SaveScore(ctx context.Context, score *model.RiskScore) error {
	return eris.New("disk full")
}

func TestRunWriteFailureDeadLetters(t *testing.T) {
	st := newRunnerStore(t)
	stats := &monitoring.RunStats{}
	r := newTestRunner(t, &failingSink{Store: st}, stats)
	ctx := context.Background()

	run, err := r.Run(ctx, "2026-Q1", []MemberInput{
		{Member: testMember("M1", 30, false), Actual: dec("1800")},
	})
	require.NoError(t, err)

	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "disk full")
	assert.Equal(t, 1, stats.WriteFailures())

	entries, err := st.ListDLQ(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, resilience.DLQScore, entries[0].Kind)
	assert.Equal(t, "M1", entries[0].MemberID)
	assert.Contains(t, string(entries[0].Payload), `"member_id":"M1"`)
}
