package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskCategory is one of four ordinal risk buckets derived from the score.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskModerate RiskCategory = "moderate"
	RiskHigh     RiskCategory = "high"
	RiskCritical RiskCategory = "critical"
)

// Rank returns the ordinal position of the category (low=0 .. critical=3).
// Unknown categories rank below low.
func (c RiskCategory) Rank() int {
	switch c {
	case RiskLow:
		return 0
	case RiskModerate:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// Categories lists all risk categories in ascending order.
func Categories() []RiskCategory {
	return []RiskCategory{RiskLow, RiskModerate, RiskHigh, RiskCritical}
}

// FactorType classifies a risk factor by the sub-score it belongs to.
type FactorType string

const (
	FactorClinical    FactorType = "clinical"
	FactorBehavioral  FactorType = "behavioral"
	FactorDemographic FactorType = "demographic"
	FactorUtilization FactorType = "utilization"
)

// TiePriority orders factor types for ranking ties: clinical factors win
// over behavioral, then demographic, then utilization.
func (t FactorType) TiePriority() int {
	switch t {
	case FactorClinical:
		return 0
	case FactorBehavioral:
		return 1
	case FactorDemographic:
		return 2
	case FactorUtilization:
		return 3
	}
	return 4
}

// RiskFactor is one rule contribution that fired during scoring.
type RiskFactor struct {
	Name         string     `json:"name"`
	Type         FactorType `json:"type"`
	Contribution float64    `json:"contribution"` // points added to the sub-score
	Severity     Severity   `json:"severity"`
	Action       string     `json:"action"` // recommended follow-up
}

// SubScores holds the four component scores before weighting.
type SubScores struct {
	Demographic float64 `json:"demographic"`
	Clinical    float64 `json:"clinical"`
	Behavioral  float64 `json:"behavioral"`
	Utilization float64 `json:"utilization"`
}

// RiskScore is the immutable output of one scoring invocation. A new record
// is produced on every call; score history is append-only.
type RiskScore struct {
	MemberID     string       `json:"member_id"`
	Value        float64      `json:"value"` // 1-100
	Category     RiskCategory `json:"category"`
	Confidence   float64      `json:"confidence"`   // 0-1
	Completeness float64      `json:"completeness"` // fraction of expected fields present
	SubScores    SubScores    `json:"sub_scores"`
	TopFactors   []RiskFactor `json:"top_factors"`

	Interventions []string `json:"interventions,omitempty"` // suggested follow-up programs

	ModelVersion string    `json:"model_version"`
	InputHash    string    `json:"input_hash"` // sha256 of the input snapshot
	CalculatedAt time.Time `json:"calculated_at"`
}

// CostPrediction is the predicted annual cost derived from a RiskScore.
// Tied back to the score via member identity and the score timestamp.
type CostPrediction struct {
	MemberID   string          `json:"member_id"`
	Point      decimal.Decimal `json:"point"`
	Lower      decimal.Decimal `json:"lower"`
	Upper      decimal.Decimal `json:"upper"`
	ScoreValue float64         `json:"score_value"`
	ScoredAt   time.Time       `json:"scored_at"`
}
