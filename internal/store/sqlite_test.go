package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/resilience"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testScore(memberID string, value float64, category model.RiskCategory, at time.Time) *model.RiskScore {
	return &model.RiskScore{
		MemberID:     memberID,
		Value:        value,
		Category:     category,
		Confidence:   0.71,
		ModelVersion: "1.0.0",
		InputHash:    "deadbeef",
		CalculatedAt: at,
	}
}

func TestSQLite_SaveAndLatestScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveScore(ctx, testScore("M1", 40, model.RiskModerate, base)))
	require.NoError(t, st.SaveScore(ctx, testScore("M1", 60.4, model.RiskHigh, base.Add(24*time.Hour))))

	score, err := st.LatestScore(ctx, "M1")
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 60.4, score.Value)
	assert.Equal(t, model.RiskHigh, score.Category)
}

func TestSQLite_LatestScore_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	score, err := st.LatestScore(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, score)
}

func TestSQLite_SavePrediction(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SavePrediction(context.Background(), &model.CostPrediction{
		MemberID:   "M1",
		Point:      decimal.NewFromInt(11020),
		Lower:      decimal.RequireFromString("8639.68"),
		Upper:      decimal.RequireFromString("13400.32"),
		ScoreValue: 60.4,
		ScoredAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestSQLite_SaveSummaries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	member := &model.FinancialPeriodSummary{
		Period:        "2026-Q1",
		Scope:         model.ScopeMember,
		MemberID:      "M1",
		PredictedCost: decimal.NewFromInt(14200),
		ActualCost:    decimal.NewFromInt(9500),
		Savings:       decimal.NewFromInt(3900),
		OperatorShare: decimal.NewFromInt(2730),
		MemberShare:   decimal.NewFromInt(1170),
		ComputedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.SaveMemberSummary(ctx, member))

	pool := &model.PoolSummary{
		Summary: model.FinancialPeriodSummary{
			Period:     "2026-Q1",
			Scope:      model.ScopePool,
			ComputedAt: time.Now().UTC(),
		},
		MembersIncluded: 2,
		Reserve:         decimal.NewFromInt(27270),
	}
	require.NoError(t, st.SavePoolSummary(ctx, pool))
}

func TestSQLite_RecommendationsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	recs := []model.InterventionRecommendation{
		{ID: "rec-1", State: model.StatePending, CreatedAt: now, UpdatedAt: now,
			Candidate: model.InterventionCandidate{MemberID: "M1", ProgramID: "P-A", Eligible: true,
				NPVGrossSavings: decimal.NewFromInt(1300), ProgramCost: decimal.NewFromInt(500), ROI: 1.6}},
		{ID: "rec-2", State: model.StatePending, CreatedAt: now.Add(time.Minute), UpdatedAt: now.Add(time.Minute),
			Candidate: model.InterventionCandidate{MemberID: "M2", ProgramID: "P-B", Eligible: true}},
	}
	require.NoError(t, st.SaveRecommendations(ctx, recs))

	got, err := st.ListRecommendations(ctx, RecommendationFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rec-2", got[0].ID) // newest first
	assert.Equal(t, "rec-1", got[1].ID)
	assert.True(t, got[1].Candidate.NPVGrossSavings.Equal(decimal.NewFromInt(1300)))

	byMember, err := st.ListRecommendations(ctx, RecommendationFilter{MemberID: "M1"})
	require.NoError(t, err)
	require.Len(t, byMember, 1)
	assert.Equal(t, "rec-1", byMember[0].ID)

	require.NoError(t, st.UpdateRecommendationState(ctx, "rec-1", model.StatePresented))

	presented, err := st.ListRecommendations(ctx, RecommendationFilter{State: model.StatePresented})
	require.NoError(t, err)
	require.Len(t, presented, 1)
	assert.Equal(t, "rec-1", presented[0].ID)
	assert.Equal(t, model.StatePresented, presented[0].State)
}

func TestSQLite_GetRecommendation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]model.InterventionRecommendation, 0, 120)
	for i := 0; i < 120; i++ {
		recs = append(recs, model.InterventionRecommendation{
			ID:        fmt.Sprintf("rec-%03d", i),
			State:     model.StatePending,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			UpdatedAt: now.Add(time.Duration(i) * time.Minute),
			Candidate: model.InterventionCandidate{MemberID: "M1", ProgramID: "P-A", Eligible: true},
		})
	}
	require.NoError(t, st.SaveRecommendations(ctx, recs))

	// The oldest entry sits beyond the default list window of 100 rows but
	// must still resolve by ID.
	got, err := st.GetRecommendation(ctx, "rec-000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rec-000", got.ID)
	assert.Equal(t, model.StatePending, got.State)

	missing, err := st.GetRecommendation(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_UpdateRecommendationState_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRecommendationState(context.Background(), "missing", model.StateDeclined)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_DLQ(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	depth, err := st.DLQDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	entry := &resilience.DLQEntry{
		Kind:         resilience.DLQScore,
		MemberID:     "M1",
		Payload:      []byte(`{"member_id":"M1","value":60.4}`),
		Error:        "database is locked",
		ErrorType:    "transient",
		RetryCount:   1,
		MaxRetries:   3,
		NextRetryAt:  now.Add(time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	require.NoError(t, st.EnqueueDLQ(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	depth, err = st.DLQDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	entries, err := st.ListDLQ(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, resilience.DLQScore, entries[0].Kind)
	assert.Equal(t, "M1", entries[0].MemberID)
	assert.JSONEq(t, `{"member_id":"M1","value":60.4}`, string(entries[0].Payload))
	assert.True(t, entries[0].CanRetry())
}

func TestSQLite_CategoryCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveScore(ctx, testScore("M1", 20, model.RiskLow, base)))
	require.NoError(t, st.SaveScore(ctx, testScore("M2", 60, model.RiskHigh, base)))
	// M1 re-scored into moderate; only the latest score counts.
	require.NoError(t, st.SaveScore(ctx, testScore("M1", 30, model.RiskModerate, base.Add(time.Hour))))

	dist, err := st.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RiskDistribution{Moderate: 1, High: 1}, dist)
}
