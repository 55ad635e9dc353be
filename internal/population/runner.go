// Package population orchestrates period runs over a member population.
// Member-level computations are independent and run in parallel; the pool
// aggregate is reduced only after every member has either completed or
// been recorded as excluded. Sink writes are retried and dead-lettered on
// failure so computed results are never discarded.
package population

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/costpred"
	"github.com/sells-group/wellness-engine/internal/finance"
	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/monitoring"
	"github.com/sells-group/wellness-engine/internal/resilience"
	"github.com/sells-group/wellness-engine/internal/store"
)

// MemberInput is one member's inputs for a period run. Actual is the
// realized period cost when the claims feed has it.
type MemberInput struct {
	Member           *model.MemberRecord
	Actual           *decimal.Decimal
	InterventionCost decimal.Decimal
}

// MemberResult is one member's computed outputs.
type MemberResult struct {
	MemberID   string
	Score      *model.RiskScore
	Prediction *model.CostPrediction
	Err        error
}

// RunResult is the outcome of a period run.
type RunResult struct {
	Period   string
	Results  []MemberResult
	Pool     *model.PoolSummary
	Warnings []string
}

// Runner executes period runs.
type Runner struct {
	scorer    Scorer
	predictor *costpred.Predictor
	sink      store.Store // nil means compute only
	stats     *monitoring.RunStats
	cfg       config.EngineConfig
	retry     resilience.RetryConfig
}

// Scorer matches scorer.Scorer; declared here so the runner depends on
// the behavior, not the package.
type Scorer interface {
	Score(member *model.MemberRecord, cfg config.ScoringConfig) (*model.RiskScore, error)
}

// NewRunner creates a Runner. sink may be nil for compute-only runs.
func NewRunner(sc Scorer, pred *costpred.Predictor, sink store.Store, stats *monitoring.RunStats, cfg config.EngineConfig) *Runner {
	return &Runner{
		scorer:    sc,
		predictor: pred,
		sink:      sink,
		stats:     stats,
		cfg:       cfg,
		retry:     resilience.DefaultRetryConfig(),
	}
}

// Run scores and prices every member in parallel, reduces the pool
// aggregate, and persists the results. A member-level failure excludes
// that member; it never aborts the run.
func (r *Runner) Run(ctx context.Context, period string, inputs []MemberInput) (*RunResult, error) {
	if period == "" {
		return nil, eris.New("population: period is required")
	}

	concurrency := r.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	zap.L().Info("population: starting period run",
		zap.String("period", period),
		zap.Int("members", len(inputs)),
		zap.Int("concurrency", concurrency),
	)

	results := make([]MemberResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range inputs {
		g.Go(func() error {
			results[i] = r.computeMember(gctx, inputs[i])
			return nil
		})
	}
	// Barrier: the pool reduction must not start until every member has
	// completed or failed.
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "population: member computations")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "population: run cancelled")
	}

	run := &RunResult{Period: period, Results: results}

	periods := make([]finance.MemberPeriod, 0, len(inputs))
	for i := range results {
		res := &results[i]
		mp := finance.MemberPeriod{
			MemberID:         res.MemberID,
			Actual:           inputs[i].Actual,
			InterventionCost: inputs[i].InterventionCost,
		}
		if res.Err == nil {
			mp.Category = res.Score.Category
			point := res.Prediction.Point
			mp.Predicted = &point
		}
		periods = append(periods, mp)
	}

	pool, err := finance.AggregatePool(period, periods, r.cfg.Savings)
	if err != nil {
		return nil, err
	}
	run.Pool = pool
	if r.stats != nil {
		for range pool.Excluded {
			r.stats.MarkExcluded()
		}
	}

	if r.sink != nil {
		run.Warnings = r.persist(ctx, run)
	}

	zap.L().Info("population: period run complete",
		zap.String("period", period),
		zap.Int("included", pool.MembersIncluded),
		zap.Int("excluded", len(pool.Excluded)),
		zap.Int("warnings", len(run.Warnings)),
	)
	return run, nil
}

func (r *Runner) computeMember(ctx context.Context, in MemberInput) MemberResult {
	res := MemberResult{}
	if in.Member != nil {
		res.MemberID = in.Member.MemberID
	}
	if err := ctx.Err(); err != nil {
		res.Err = eris.Wrap(err, "population: cancelled")
		return res
	}

	score, err := r.scorer.Score(in.Member, r.cfg.Scoring)
	if err != nil {
		if r.stats != nil {
			r.stats.MarkScoreFailure()
		}
		res.Err = eris.Wrapf(err, "population: score member %s", res.MemberID)
		return res
	}
	res.Score = score

	pred, err := r.predictor.Predict(score)
	if err != nil {
		if r.stats != nil {
			r.stats.MarkScoreFailure()
		}
		res.Err = eris.Wrapf(err, "population: predict member %s", res.MemberID)
		return res
	}
	res.Prediction = pred

	if r.stats != nil {
		r.stats.MarkScored()
	}
	return res
}

// persist writes run outputs through the sink. Failures become warnings
// and dead-letter entries, never lost results.
func (r *Runner) persist(ctx context.Context, run *RunResult) []string {
	var mu sync.Mutex
	var warnings []string

	warn := func(kind resilience.DLQKind, memberID string, payload any, err error) {
		if r.stats != nil {
			r.stats.MarkWriteFailure()
		}
		msg := fmt.Sprintf("%s write failed for %s: %v", kind, memberID, err)
		zap.L().Warn("population: sink write failed, dead-lettering",
			zap.String("kind", string(kind)),
			zap.String("member_id", memberID),
			zap.Error(err),
		)
		r.deadLetter(ctx, kind, memberID, payload, err)

		mu.Lock()
		warnings = append(warnings, msg)
		mu.Unlock()
	}

	for i := range run.Results {
		res := &run.Results[i]
		if res.Err != nil {
			continue
		}
		if err := resilience.Do(ctx, r.retry, func(ctx context.Context) error {
			return r.sink.SaveScore(ctx, res.Score)
		}); err != nil {
			warn(resilience.DLQScore, res.MemberID, res.Score, err)
		}
		if err := resilience.Do(ctx, r.retry, func(ctx context.Context) error {
			return r.sink.SavePrediction(ctx, res.Prediction)
		}); err != nil {
			warn(resilience.DLQPrediction, res.MemberID, res.Prediction, err)
		}
	}

	if err := resilience.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.sink.SavePoolSummary(ctx, run.Pool)
	}); err != nil {
		warn(resilience.DLQSummary, "", run.Pool, err)
	}

	sort.Strings(warnings)
	return warnings
}

// deadLetter preserves a failed write for replay. A DLQ write that itself
// fails is logged; at that point the store is down and the run result
// still carries the data in memory.
func (r *Runner) deadLetter(ctx context.Context, kind resilience.DLQKind, memberID string, payload any, cause error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("population: marshal dlq payload", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	entry := &resilience.DLQEntry{
		Kind:         kind,
		MemberID:     memberID,
		Payload:      raw,
		Error:        cause.Error(),
		ErrorType:    resilience.ClassifyError(cause),
		MaxRetries:   r.retry.MaxAttempts,
		NextRetryAt:  now.Add(time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := r.sink.EnqueueDLQ(ctx, entry); err != nil {
		zap.L().Error("population: dead-letter enqueue failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
