// Package model defines the domain types shared by the scoring, cost
// prediction, savings, ROI, and portfolio components.
package model

import (
	"github.com/shopspring/decimal"
)

// Sex is the member's recorded sex.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
	SexOther  Sex = "O"
)

// Severity grades an active condition.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// AlcoholUse buckets self-reported alcohol consumption.
type AlcoholUse string

const (
	AlcoholNone     AlcoholUse = "none"
	AlcoholModerate AlcoholUse = "moderate"
	AlcoholHeavy    AlcoholUse = "heavy"
)

// Condition is an active diagnosis on a member's problem list.
type Condition struct {
	Tag      string   `json:"tag" yaml:"tag"` // e.g. "diabetes", "hypertension"
	Severity Severity `json:"severity" yaml:"severity"`
}

// Vitals holds the latest biometric readings. All fields are optional;
// a nil pointer means the reading was never taken.
type Vitals struct {
	BMI            *float64 `json:"bmi,omitempty" yaml:"bmi,omitempty"`
	SystolicBP     *int     `json:"systolic_bp,omitempty" yaml:"systolic_bp,omitempty"`
	DiastolicBP    *int     `json:"diastolic_bp,omitempty" yaml:"diastolic_bp,omitempty"`
	GlucoseLevel   *int     `json:"glucose_level,omitempty" yaml:"glucose_level,omitempty"` // mg/dL
	CholesterolLDL *int     `json:"cholesterol_ldl,omitempty" yaml:"cholesterol_ldl,omitempty"`
}

// Behavioral holds wearable and self-reported lifestyle data
// (30-day trailing averages where applicable).
type Behavioral struct {
	AvgDailySteps     *int       `json:"avg_daily_steps,omitempty" yaml:"avg_daily_steps,omitempty"`
	AvgSleepHours     *float64   `json:"avg_sleep_hours,omitempty" yaml:"avg_sleep_hours,omitempty"`
	AvgRestingHR      *int       `json:"avg_resting_hr,omitempty" yaml:"avg_resting_hr,omitempty"`
	ExerciseMinsPerWk *int       `json:"exercise_mins_per_wk,omitempty" yaml:"exercise_mins_per_wk,omitempty"`
	Smoker            bool       `json:"smoker" yaml:"smoker"`
	AlcoholUse        AlcoholUse `json:"alcohol_use,omitempty" yaml:"alcohol_use,omitempty"`
	StressLevel       *int       `json:"stress_level,omitempty" yaml:"stress_level,omitempty"` // 1-10 self-reported
	HasPrimaryCareDoc bool       `json:"has_primary_care_doc" yaml:"has_primary_care_doc"`
}

// Utilization summarizes claims activity over the trailing 12 months.
type Utilization struct {
	TotalClaimsCost     decimal.Decimal `json:"total_claims_cost" yaml:"total_claims_cost"`
	EmergencyVisits     int             `json:"emergency_visits" yaml:"emergency_visits"`
	Admissions          int             `json:"admissions" yaml:"admissions"`
	PrimaryCareVisits   int             `json:"primary_care_visits" yaml:"primary_care_visits"`
	SpecialistVisits    int             `json:"specialist_visits" yaml:"specialist_visits"`
	PrescriptionsFilled int             `json:"prescriptions_filled" yaml:"prescriptions_filled"`
}

// MemberRecord is a read-only snapshot of one member, assembled by the
// external member store and behavioral ingestion. The engine never mutates it.
type MemberRecord struct {
	MemberID string `json:"member_id" yaml:"member_id"`
	Age      int    `json:"age" yaml:"age"`
	Sex      Sex    `json:"sex" yaml:"sex"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`

	Conditions  []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Medications []string    `json:"medications,omitempty" yaml:"medications,omitempty"`
	Vitals      Vitals      `json:"vitals" yaml:"vitals"`
	Behavioral  Behavioral  `json:"behavioral" yaml:"behavioral"`
	Utilization Utilization `json:"utilization" yaml:"utilization"`
}

// HasConditionTag reports whether the member has an active condition with
// the given tag.
func (m *MemberRecord) HasConditionTag(tag string) bool {
	for _, c := range m.Conditions {
		if c.Tag == tag {
			return true
		}
	}
	return false
}
