package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/wellness-engine/internal/model"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"members.json", FormatJSON, false},
		{"members.yaml", FormatYAML, false},
		{"members.yml", FormatYAML, false},
		{"extract.CSV", FormatCSV, false},
		{"extract.xlsx", FormatXLSX, false},
		{"extract.parquet", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestLoadMembersJSON(t *testing.T) {
	path := writeTestFile(t, "members.json", `[
		{
			"member_id": "M1", "age": 58, "sex": "M",
			"conditions": [{"tag": "diabetes", "severity": "moderate"}],
			"behavioral": {"smoker": true, "avg_daily_steps": 3000},
			"utilization": {"total_claims_cost": "8200", "emergency_visits": 1}
		},
		{"member_id": "M2", "age": 31, "sex": "F"}
	]`)

	members, err := LoadMembers(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, members, 2)

	m := members[0]
	assert.Equal(t, "M1", m.MemberID)
	assert.Equal(t, 58, m.Age)
	assert.True(t, m.HasConditionTag("diabetes"))
	assert.True(t, m.Behavioral.Smoker)
	require.NotNil(t, m.Behavioral.AvgDailySteps)
	assert.Equal(t, 3000, *m.Behavioral.AvgDailySteps)
	assert.True(t, m.Utilization.TotalClaimsCost.Equal(decimal.NewFromInt(8200)))
}

func TestLoadMembersYAML(t *testing.T) {
	path := writeTestFile(t, "members.yaml", `
- member_id: M1
  age: 44
  sex: F
  conditions:
    - tag: hypertension
      severity: low
  behavioral:
    has_primary_care_doc: true
`)

	members, err := LoadMembers(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].HasConditionTag("hypertension"))
	assert.True(t, members[0].Behavioral.HasPrimaryCareDoc)
}

func TestLoadMembersCSV(t *testing.T) {
	path := writeTestFile(t, "members.csv",
		"member_id,age,sex,conditions,smoker,avg_daily_steps,total_claims_cost,has_primary_care_doc\n"+
			"M1,58,M,diabetes:moderate;hypertension,true,3000,8200,false\n"+
			"M2,31,F,,false,,450,yes\n")

	members, err := LoadMembers(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, members, 2)

	m := members[0]
	require.Len(t, m.Conditions, 2)
	assert.Equal(t, model.SeverityModerate, m.Conditions[0].Severity)
	// bare tag defaults to moderate severity
	assert.Equal(t, "hypertension", m.Conditions[1].Tag)
	assert.Equal(t, model.SeverityModerate, m.Conditions[1].Severity)
	assert.True(t, m.Behavioral.Smoker)

	assert.Nil(t, members[1].Behavioral.AvgDailySteps)
	assert.True(t, members[1].Behavioral.HasPrimaryCareDoc)
}

func TestLoadMembersXLSX(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"member_id", "age", "sex", "smoker", "total_claims_cost"},
		{"M1", "58", "M", "true", "8200"},
		{"M2", "31", "F", "false", "450"},
	})

	members, err := LoadMembers(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "M2", members[1].MemberID)
	assert.Equal(t, 31, members[1].Age)
}

func TestLoadMembersRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"missing member_id column", "age,sex\n58,M\n"},
		{"bad age", "member_id,age\nM1,old\n"},
		{"age out of range", "member_id,age\nM1,300\n"},
		{"empty member_id", "member_id,age\n,58\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestFile(t, "bad.csv", tt.csv)
			_, err := LoadMembers(context.Background(), path)
			assert.Error(t, err)
		})
	}
}

func TestLoadProgramsJSON(t *testing.T) {
	path := writeTestFile(t, "programs.json", `[
		{
			"id": "P-A", "name": "Diabetes Management", "type": "chronic_disease_management",
			"target_categories": ["high", "critical"], "condition_tags": ["diabetes"],
			"cost_per_participant": "500", "expected_reduction": 16.25,
			"duration_days": 180, "completion_rate": 0.8
		}
	]`)

	programs, err := LoadPrograms(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, programs, 1)

	p := programs[0]
	assert.Equal(t, model.ProgramChronicDisease, p.Type)
	assert.True(t, p.TargetsCategory(model.RiskHigh))
	assert.False(t, p.TargetsCategory(model.RiskLow))
	assert.True(t, p.CostPerParticipant.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 0.8, p.CompletionRate)
}

func TestLoadProgramsCSV(t *testing.T) {
	path := writeTestFile(t, "programs.csv",
		"id,name,type,target_categories,condition_tags,cost_per_participant,expected_reduction,duration_days,completion_rate\n"+
			"P-A,Smoking Cessation,smoking_cessation,moderate;high,smoking,300,10,90,0.65\n")

	programs, err := LoadPrograms(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, []model.RiskCategory{model.RiskModerate, model.RiskHigh}, programs[0].TargetCategories)
	assert.Equal(t, []string{"smoking"}, programs[0].ConditionTags)
	assert.Equal(t, 90, programs[0].DurationDays)
}

func TestLoadProgramsRejectsDuplicateIDs(t *testing.T) {
	path := writeTestFile(t, "programs.json",
		`[{"id":"P-A","name":"a","cost_per_participant":"1","completion_rate":0.5},
		  {"id":"P-A","name":"b","cost_per_participant":"1","completion_rate":0.5}]`)

	_, err := LoadPrograms(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate program id")
}

func TestLoadProgramsRejectsBadCompletionRate(t *testing.T) {
	path := writeTestFile(t, "programs.json",
		`[{"id":"P-A","name":"a","cost_per_participant":"1","completion_rate":1.5}]`)

	_, err := LoadPrograms(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadActualsCSV(t *testing.T) {
	path := writeTestFile(t, "actuals.csv",
		"member_id,actual_cost,intervention_cost\n"+
			"M1,9500,800\n"+
			"M2,1200,\n")

	actuals, err := LoadActuals(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, actuals, 2)
	assert.True(t, actuals["M1"].Actual.Equal(decimal.NewFromInt(9500)))
	assert.True(t, actuals["M1"].InterventionCost.Equal(decimal.NewFromInt(800)))
	assert.True(t, actuals["M2"].InterventionCost.IsZero())
}

func TestLoadActualsRejectsDuplicates(t *testing.T) {
	path := writeTestFile(t, "actuals.csv",
		"member_id,actual_cost\nM1,100\nM1,200\n")

	_, err := LoadActuals(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestInputsJoin(t *testing.T) {
	members := []model.MemberRecord{
		{MemberID: "M1", Age: 40},
		{MemberID: "M2", Age: 50},
	}
	actuals := map[string]ActualCost{
		"M1": {MemberID: "M1", Actual: decimal.NewFromInt(9500), InterventionCost: decimal.NewFromInt(800)},
	}

	joined := Inputs(members, actuals)
	require.Len(t, joined, 2)

	require.NotNil(t, joined[0].Actual)
	assert.True(t, joined[0].Actual.Equal(decimal.NewFromInt(9500)))
	assert.True(t, joined[0].InterventionCost.Equal(decimal.NewFromInt(800)))

	// no actuals entry yet; stays nil for downstream exclusion
	assert.Nil(t, joined[1].Actual)
}
