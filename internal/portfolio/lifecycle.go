package portfolio

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/wellness-engine/internal/model"
)

// NewRecommendations wraps selected candidates as pending recommendations.
func NewRecommendations(selected []model.InterventionCandidate, now time.Time) []model.InterventionRecommendation {
	recs := make([]model.InterventionRecommendation, 0, len(selected))
	for _, c := range selected {
		recs = append(recs, model.InterventionRecommendation{
			ID:        uuid.NewString(),
			Candidate: c,
			State:     model.StatePending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return recs
}

// Transition moves a recommendation to the next lifecycle state. Illegal
// transitions are rejected; the recommendation is left unchanged.
func Transition(rec *model.InterventionRecommendation, next model.RecommendationState, now time.Time) error {
	if rec == nil {
		return eris.New("portfolio: recommendation is nil")
	}
	if !rec.State.CanTransition(next) {
		return eris.Errorf("portfolio: illegal transition %s -> %s for recommendation %s",
			rec.State, next, rec.ID)
	}
	rec.State = next
	rec.UpdatedAt = now
	return nil
}

// ExpireIfStale expires a recommendation still awaiting a response after
// the configured window. Returns true when the state changed.
func ExpireIfStale(rec *model.InterventionRecommendation, now time.Time, windowDays int) bool {
	if rec == nil {
		return false
	}
	if rec.State != model.StatePending && rec.State != model.StatePresented {
		return false
	}
	deadline := rec.CreatedAt.AddDate(0, 0, windowDays)
	if now.Before(deadline) {
		return false
	}
	rec.State = model.StateExpired
	rec.UpdatedAt = now
	return true
}
