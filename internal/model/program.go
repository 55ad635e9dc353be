package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProgramType categorizes a prevention program.
type ProgramType string

const (
	ProgramPreventiveScreening ProgramType = "preventive_screening"
	ProgramChronicDisease      ProgramType = "chronic_disease_management"
	ProgramBehavioralCoaching  ProgramType = "behavioral_coaching"
	ProgramMentalHealth        ProgramType = "mental_health"
	ProgramNutrition           ProgramType = "nutrition_counseling"
	ProgramFitness             ProgramType = "fitness_program"
	ProgramSmokingCessation    ProgramType = "smoking_cessation"
	ProgramMedicationAdherence ProgramType = "medication_adherence"
	ProgramCareCoordination    ProgramType = "care_coordination"
)

// InterventionProgram is an immutable catalog entry supplied by the external
// program catalog.
type InterventionProgram struct {
	ID                 string          `json:"id" yaml:"id"`
	Name               string          `json:"name" yaml:"name"`
	Type               ProgramType     `json:"type" yaml:"type"`
	TargetCategories   []RiskCategory  `json:"target_categories" yaml:"target_categories"`
	ConditionTags      []string        `json:"condition_tags,omitempty" yaml:"condition_tags,omitempty"`
	CostPerParticipant decimal.Decimal `json:"cost_per_participant" yaml:"cost_per_participant"`
	ExpectedReduction  float64         `json:"expected_reduction" yaml:"expected_reduction"` // risk points
	DurationDays       int             `json:"duration_days" yaml:"duration_days"`
	CompletionRate     float64         `json:"completion_rate" yaml:"completion_rate"` // historical, 0-1
}

// TargetsCategory reports whether the program targets the given risk category.
func (p *InterventionProgram) TargetsCategory(c RiskCategory) bool {
	for _, t := range p.TargetCategories {
		if t == c {
			return true
		}
	}
	return false
}

// InterventionCandidate is a (member, program) pairing produced by the ROI
// evaluator.
type InterventionCandidate struct {
	MemberID  string `json:"member_id"`
	ProgramID string `json:"program_id"`

	Eligible         bool   `json:"eligible"`
	IneligibleReason string `json:"ineligible_reason,omitempty"`

	ExpectedReduction float64         `json:"expected_reduction"` // completion-weighted risk points
	AnnualSavings     decimal.Decimal `json:"annual_savings"`     // gross, year one
	NPVGrossSavings   decimal.Decimal `json:"npv_gross_savings"`  // over the horizon
	ProgramCost       decimal.Decimal `json:"program_cost"`

	ROI           float64 `json:"roi"`                     // (NPV - cost) / cost
	ROIUndefined  bool    `json:"roi_undefined,omitempty"` // zero-cost program, manual review
	Recommended   bool    `json:"recommended"`             // ROI >= configured minimum
	PaybackMonths float64 `json:"payback_months,omitempty"`
}

// RecommendationState is the lifecycle state of a selected recommendation.
type RecommendationState string

const (
	StatePending   RecommendationState = "pending"
	StatePresented RecommendationState = "presented"
	StateAccepted  RecommendationState = "accepted"
	StateDeclined  RecommendationState = "declined"
	StateExpired   RecommendationState = "expired"
	StateEnrolled  RecommendationState = "enrolled"
	StateCompleted RecommendationState = "completed"
	StateDropped   RecommendationState = "dropped"
	StateFailed    RecommendationState = "failed"
)

// allowedTransitions encodes the recommendation lifecycle:
// pending -> presented -> {accepted -> enrolled -> {completed|dropped|failed}}
// | declined | expired. Expiry applies while awaiting a response.
var allowedTransitions = map[RecommendationState][]RecommendationState{
	StatePending:   {StatePresented, StateExpired},
	StatePresented: {StateAccepted, StateDeclined, StateExpired},
	StateAccepted:  {StateEnrolled},
	StateEnrolled:  {StateCompleted, StateDropped, StateFailed},
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s RecommendationState) CanTransition(next RecommendationState) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s RecommendationState) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// InterventionRecommendation is a candidate selected by the portfolio
// optimizer, carrying its lifecycle state. Transitions after "presented" are
// externally triggered events this engine records but does not originate.
type InterventionRecommendation struct {
	ID        string                `json:"id"`
	Candidate InterventionCandidate `json:"candidate"`
	State     RecommendationState   `json:"state"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}
