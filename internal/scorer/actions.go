package scorer

import "github.com/sells-group/wellness-engine/internal/model"

// recommendedActions maps a factor's action key to its follow-up guidance.
// Keys are stable identifiers; factor display names may carry extra detail.
var recommendedActions = map[string]string{
	"age band":                        "Ensure age-appropriate preventive screenings are current",
	"cardiovascular risk profile":     "Discuss cardiovascular screening at next wellness visit",
	"preventive screening profile":    "Confirm recommended screenings are scheduled",
	"region":                          "Review regional care access options with member",
	"chronic condition":               "Ensure regular monitoring and medication adherence",
	"polypharmacy":                    "Medication therapy management consultation",
	"multiple medications":            "Review medication list at next visit",
	"underweight":                     "Nutritionist consultation",
	"obesity":                         "Nutritionist consultation and weight management program",
	"overweight":                      "Encourage activity and dietary counseling",
	"uncontrolled hypertension":       "Immediate physician follow-up and medication review",
	"elevated blood pressure":         "Schedule blood pressure recheck within 30 days",
	"diabetic-range glucose":          "Physician follow-up for diabetes evaluation",
	"prediabetic glucose":             "Enroll in diabetes prevention program",
	"high LDL cholesterol":            "Lipid management review with physician",
	"smoking":                         "Enroll in smoking cessation program",
	"heavy alcohol use":               "Offer substance use counseling resources",
	"moderate alcohol use":            "Discuss alcohol intake at next wellness visit",
	"physical inactivity":             "Gradual increase in daily activity; consider fitness coaching",
	"low activity":                    "Set incremental step goals with activity tracking",
	"below activity target":           "Encourage reaching the daily step target",
	"sleep deprivation":               "Sleep hygiene counseling; screen for sleep disorders",
	"excessive sleep":                 "Screen for underlying conditions affecting sleep",
	"high reported stress":            "Offer mental health screening and counseling resources",
	"below exercise minimum":          "Recommend 150 minutes of weekly moderate exercise",
	"elevated resting heart rate":     "Cardiovascular fitness assessment",
	"raised resting heart rate":       "Encourage regular aerobic exercise",
	"emergency department use":        "Case management to address underlying drivers",
	"hospital admissions":             "Post-discharge follow-up within 48 hours",
	"high specialist utilization":     "Care coordination review across specialists",
	"elevated specialist utilization": "Confirm specialist care plan with primary physician",
	"no primary care engagement":      "Schedule annual wellness visit",
	"very high primary care use":      "Case review for unresolved health issues",
	"no primary care relationship":    "Help member establish care with a primary physician",
	"claims cost above baseline":      "Case management to address cost drivers",
}

// lookupAction returns the recommended action for an action key, or an
// empty string when no guidance is catalogued.
func lookupAction(key string) string {
	return recommendedActions[key]
}

// suggestInterventions derives a short, prioritized follow-up list from the
// risk category and the ranked factors.
func suggestInterventions(category model.RiskCategory, top []model.RiskFactor) []string {
	var out []string

	switch category {
	case model.RiskCritical:
		out = append(out,
			"Assign dedicated care manager immediately",
			"Schedule comprehensive care coordination visit within 7 days",
		)
	case model.RiskHigh:
		out = append(out, "Enroll in chronic disease management program")
	}

	// Address the top modifiable factors.
	seen := map[string]bool{}
	for i, f := range top {
		if i >= 3 {
			break
		}
		if f.Action == "" || seen[f.Action] {
			continue
		}
		seen[f.Action] = true
		out = append(out, f.Action)
	}

	out = append(out, "Ensure up-to-date on age-appropriate preventive screenings")

	if len(out) > 8 {
		out = out[:8]
	}
	return out
}
