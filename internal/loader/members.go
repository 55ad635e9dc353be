package loader

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/wellness-engine/internal/model"
)

// LoadMembers reads member snapshots from a JSON, YAML, CSV, or XLSX file.
// JSON and YAML carry the full nested record; tabular formats use the flat
// column layout of the claims extract (conditions as "tag:severity" pairs
// joined by semicolons).
func LoadMembers(ctx context.Context, path string) ([]model.MemberRecord, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var members []model.MemberRecord
	switch format {
	case FormatJSON, FormatYAML:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "loader: read members file")
		}
		if format == FormatJSON {
			err = json.Unmarshal(raw, &members)
		} else {
			err = yaml.Unmarshal(raw, &members)
		}
		if err != nil {
			return nil, eris.Wrap(err, "loader: decode members")
		}
	default:
		t, err := readTable(ctx, path, format)
		if err != nil {
			return nil, err
		}
		if err := t.requireColumns("member_id", "age"); err != nil {
			return nil, err
		}
		members = make([]model.MemberRecord, 0, len(t.rows))
		for i := range t.rows {
			m, err := memberFromRow(t, i)
			if err != nil {
				return nil, eris.Wrapf(err, "loader: members row %d", i+2)
			}
			members = append(members, *m)
		}
	}

	for i := range members {
		if err := validateMember(&members[i]); err != nil {
			return nil, eris.Wrapf(err, "loader: member %d", i)
		}
	}
	return members, nil
}

func validateMember(m *model.MemberRecord) error {
	if m.MemberID == "" {
		return eris.New("member_id is required")
	}
	if m.Age <= 0 || m.Age > 120 {
		return eris.Errorf("age %d out of range for %s", m.Age, m.MemberID)
	}
	return nil
}

func memberFromRow(t *table, i int) (*model.MemberRecord, error) {
	age, err := intCol(t, i, "age")
	if err != nil {
		return nil, err
	}

	m := &model.MemberRecord{
		MemberID: t.col(i, "member_id"),
		Age:      age,
		Sex:      model.Sex(t.col(i, "sex")),
		Region:   t.col(i, "region"),
	}

	for _, pair := range splitList(t.col(i, "conditions")) {
		tag, severity, _ := strings.Cut(pair, ":")
		if severity == "" {
			severity = string(model.SeverityModerate)
		}
		m.Conditions = append(m.Conditions, model.Condition{
			Tag:      tag,
			Severity: model.Severity(severity),
		})
	}
	m.Medications = splitList(t.col(i, "medications"))

	if m.Vitals.BMI, err = floatPtrCol(t, i, "bmi"); err != nil {
		return nil, err
	}
	if m.Vitals.SystolicBP, err = intPtrCol(t, i, "systolic_bp"); err != nil {
		return nil, err
	}
	if m.Vitals.DiastolicBP, err = intPtrCol(t, i, "diastolic_bp"); err != nil {
		return nil, err
	}
	if m.Vitals.GlucoseLevel, err = intPtrCol(t, i, "glucose_level"); err != nil {
		return nil, err
	}
	if m.Vitals.CholesterolLDL, err = intPtrCol(t, i, "cholesterol_ldl"); err != nil {
		return nil, err
	}

	if m.Behavioral.AvgDailySteps, err = intPtrCol(t, i, "avg_daily_steps"); err != nil {
		return nil, err
	}
	if m.Behavioral.AvgSleepHours, err = floatPtrCol(t, i, "avg_sleep_hours"); err != nil {
		return nil, err
	}
	if m.Behavioral.AvgRestingHR, err = intPtrCol(t, i, "avg_resting_hr"); err != nil {
		return nil, err
	}
	if m.Behavioral.ExerciseMinsPerWk, err = intPtrCol(t, i, "exercise_mins_per_wk"); err != nil {
		return nil, err
	}
	if m.Behavioral.StressLevel, err = intPtrCol(t, i, "stress_level"); err != nil {
		return nil, err
	}
	m.Behavioral.Smoker = boolCol(t, i, "smoker")
	m.Behavioral.HasPrimaryCareDoc = boolCol(t, i, "has_primary_care_doc")
	m.Behavioral.AlcoholUse = model.AlcoholUse(t.col(i, "alcohol_use"))

	if raw := t.col(i, "total_claims_cost"); raw != "" {
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "parse total_claims_cost %q", raw)
		}
		m.Utilization.TotalClaimsCost = cost
	}
	if m.Utilization.EmergencyVisits, err = intColDefault(t, i, "emergency_visits"); err != nil {
		return nil, err
	}
	if m.Utilization.Admissions, err = intColDefault(t, i, "admissions"); err != nil {
		return nil, err
	}
	if m.Utilization.PrimaryCareVisits, err = intColDefault(t, i, "primary_care_visits"); err != nil {
		return nil, err
	}
	if m.Utilization.SpecialistVisits, err = intColDefault(t, i, "specialist_visits"); err != nil {
		return nil, err
	}
	if m.Utilization.PrescriptionsFilled, err = intColDefault(t, i, "prescriptions_filled"); err != nil {
		return nil, err
	}

	return m, nil
}

// splitList splits a semicolon-joined cell, dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intCol(t *table, i int, name string) (int, error) {
	raw := t.col(i, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %s %q", name, raw)
	}
	return v, nil
}

func intColDefault(t *table, i int, name string) (int, error) {
	if t.col(i, name) == "" {
		return 0, nil
	}
	return intCol(t, i, name)
}

func intPtrCol(t *table, i int, name string) (*int, error) {
	raw := t.col(i, name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %s %q", name, raw)
	}
	return &v, nil
}

func floatPtrCol(t *table, i int, name string) (*float64, error) {
	raw := t.col(i, name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %s %q", name, raw)
	}
	return &v, nil
}

func floatCol(t *table, i int, name string) (float64, error) {
	raw := t.col(i, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %s %q", name, raw)
	}
	return v, nil
}

func boolCol(t *table, i int, name string) bool {
	switch strings.ToLower(t.col(i, name)) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}
