package monitoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(t.TempDir() + "/metrics.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestCollect(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []*model.RiskScore{
		{MemberID: "M1", Value: 10, Category: model.RiskLow, ModelVersion: "1.0.0", InputHash: "a", CalculatedAt: at},
		{MemberID: "M2", Value: 60, Category: model.RiskHigh, ModelVersion: "1.0.0", InputHash: "b", CalculatedAt: at},
		{MemberID: "M3", Value: 80, Category: model.RiskCritical, ModelVersion: "1.0.0", InputHash: "c", CalculatedAt: at},
	} {
		require.NoError(t, st.SaveScore(ctx, s))
	}

	stats := &RunStats{}
	stats.MarkScored()
	stats.MarkScored()
	stats.MarkScored()
	stats.MarkExcluded()
	stats.MarkWriteFailure()

	snap, err := NewCollector(st, stats).Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.RiskDistribution{Low: 1, High: 1, Critical: 1}, snap.Distribution)
	assert.Equal(t, 3, snap.RunScored)
	assert.Equal(t, 1, snap.RunExcluded)
	assert.Equal(t, 1, snap.RunWriteFailures)
	assert.Zero(t, snap.DLQDepth)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollectWithoutRunStats(t *testing.T) {
	st := newTestStore(t)

	snap, err := NewCollector(st, nil).Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.RunScored)
}

func TestRunStatsConcurrentUpdates(t *testing.T) {
	stats := &RunStats{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.MarkScored()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, stats.Scored())
}
