// Package store persists engine outputs. The engine core never touches it
// directly; population runs write through this sink and failed writes land
// in the dead-letter queue rather than discarding results.
package store

import (
	"context"

	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/resilience"
)

// RecommendationFilter specifies criteria for listing recommendations.
type RecommendationFilter struct {
	MemberID string                    `json:"member_id,omitempty"`
	State    model.RecommendationState `json:"state,omitempty"`
	Limit    int                       `json:"limit,omitempty"`
	Offset   int                       `json:"offset,omitempty"`
}

// Store defines the persistence interface for engine outputs.
type Store interface {
	// Scores and predictions
	SaveScore(ctx context.Context, score *model.RiskScore) error
	LatestScore(ctx context.Context, memberID string) (*model.RiskScore, error)
	SavePrediction(ctx context.Context, pred *model.CostPrediction) error

	// Financial summaries
	SaveMemberSummary(ctx context.Context, summary *model.FinancialPeriodSummary) error
	SavePoolSummary(ctx context.Context, pool *model.PoolSummary) error

	// Recommendations
	SaveRecommendations(ctx context.Context, recs []model.InterventionRecommendation) error
	UpdateRecommendationState(ctx context.Context, id string, state model.RecommendationState) error
	ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.InterventionRecommendation, error)
	GetRecommendation(ctx context.Context, id string) (*model.InterventionRecommendation, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry *resilience.DLQEntry) error
	ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error)
	DLQDepth(ctx context.Context) (int, error)

	// Monitoring reads
	CategoryCounts(ctx context.Context) (model.RiskDistribution, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
