// Package monitoring gathers point-in-time health metrics: the risk
// distribution across the scored population, dead-letter depth, and
// counters from the most recent population run.
package monitoring

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/store"
)

// RunStats counts the outcomes of a population run. Safe for concurrent
// update from the run's workers.
type RunStats struct {
	scored        atomic.Int64
	scoreFailures atomic.Int64
	excluded      atomic.Int64
	writeFailures atomic.Int64
}

// MarkScored records one successfully scored member.
func (s *RunStats) MarkScored() { s.scored.Add(1) }

// MarkScoreFailure records a member whose computation failed.
func (s *RunStats) MarkScoreFailure() { s.scoreFailures.Add(1) }

// MarkExcluded records a member excluded from the pool aggregate.
func (s *RunStats) MarkExcluded() { s.excluded.Add(1) }

// MarkWriteFailure records a sink write that went to the dead-letter queue.
func (s *RunStats) MarkWriteFailure() { s.writeFailures.Add(1) }

// Scored returns the scored-member count.
func (s *RunStats) Scored() int { return int(s.scored.Load()) }

// ScoreFailures returns the failed-computation count.
func (s *RunStats) ScoreFailures() int { return int(s.scoreFailures.Load()) }

// Excluded returns the excluded-member count.
func (s *RunStats) Excluded() int { return int(s.excluded.Load()) }

// WriteFailures returns the dead-lettered write count.
func (s *RunStats) WriteFailures() int { return int(s.writeFailures.Load()) }

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Latest-score risk distribution across the population.
	Distribution model.RiskDistribution `json:"distribution"`

	// Last population run, when one has been recorded.
	RunScored        int `json:"run_scored"`
	RunScoreFailures int `json:"run_score_failures"`
	RunExcluded      int `json:"run_excluded"`
	RunWriteFailures int `json:"run_write_failures"`

	DLQDepth int `json:"dlq_depth"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store and the latest run stats.
type Collector struct {
	store store.Store
	stats *RunStats
}

// NewCollector creates a metrics collector. stats may be nil when no
// population run has happened in this process.
func NewCollector(st store.Store, stats *RunStats) *Collector {
	return &Collector{store: st, stats: stats}
}

// Collect gathers a snapshot of system metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}

	dist, err := c.store.CategoryCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: category counts")
	}
	snap.Distribution = dist

	depth, err := c.store.DLQDepth(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: dlq depth")
	}
	snap.DLQDepth = depth

	if c.stats != nil {
		snap.RunScored = c.stats.Scored()
		snap.RunScoreFailures = c.stats.ScoreFailures()
		snap.RunExcluded = c.stats.Excluded()
		snap.RunWriteFailures = c.stats.WriteFailures()
	}

	return snap, nil
}
