package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SummaryScope distinguishes per-member summaries from pool aggregates.
type SummaryScope string

const (
	ScopeMember SummaryScope = "member"
	ScopePool   SummaryScope = "pool"
)

// FinancialPeriodSummary holds the savings split for one period and scope.
// Invariant: OperatorShare + MemberShare == Savings exactly; any rounding
// remainder sits on the operator side.
type FinancialPeriodSummary struct {
	Period   string       `json:"period"` // e.g. "2026-Q2"
	Scope    SummaryScope `json:"scope"`
	MemberID string       `json:"member_id,omitempty"` // empty for pool scope

	PredictedCost    decimal.Decimal `json:"predicted_cost"`
	ActualCost       decimal.Decimal `json:"actual_cost"`
	InterventionCost decimal.Decimal `json:"intervention_cost"`

	Savings       decimal.Decimal `json:"savings"`
	OperatorShare decimal.Decimal `json:"operator_share"`
	MemberShare   decimal.Decimal `json:"member_share"`

	ComputedAt time.Time `json:"computed_at"`
}

// PoolExclusion records a member left out of a pool aggregate because a
// predicted or actual figure was missing for the period. Exclusions are
// reported rather than zero-defaulted so reserve need is not understated.
type PoolExclusion struct {
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}

// RiskDistribution counts members per risk category in a pool.
type RiskDistribution struct {
	Low      int `json:"low"`
	Moderate int `json:"moderate"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// PoolSummary is the pool-scope aggregate for one period, with the reserve
// requirement reported alongside (never subtracted from) the savings figures.
type PoolSummary struct {
	Summary FinancialPeriodSummary `json:"summary"`

	MembersIncluded int             `json:"members_included"`
	Excluded        []PoolExclusion `json:"excluded,omitempty"`

	SavingsPercent float64          `json:"savings_percent"` // savings / predicted, as a percentage
	Distribution   RiskDistribution `json:"distribution"`

	// Reserve is a solvency signal: pool predicted cost sum x safety factor.
	Reserve decimal.Decimal `json:"reserve"`
}
