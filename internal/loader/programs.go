package loader

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/wellness-engine/internal/model"
)

// LoadPrograms reads an intervention program catalog from a JSON, YAML,
// CSV, or XLSX file. Tabular catalogs join target_categories and
// condition_tags with semicolons.
func LoadPrograms(ctx context.Context, path string) ([]model.InterventionProgram, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var programs []model.InterventionProgram
	switch format {
	case FormatJSON, FormatYAML:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "loader: read programs file")
		}
		if format == FormatJSON {
			err = json.Unmarshal(raw, &programs)
		} else {
			err = yaml.Unmarshal(raw, &programs)
		}
		if err != nil {
			return nil, eris.Wrap(err, "loader: decode programs")
		}
	default:
		t, err := readTable(ctx, path, format)
		if err != nil {
			return nil, err
		}
		if err := t.requireColumns("id", "name", "cost_per_participant", "expected_reduction"); err != nil {
			return nil, err
		}
		programs = make([]model.InterventionProgram, 0, len(t.rows))
		for i := range t.rows {
			p, err := programFromRow(t, i)
			if err != nil {
				return nil, eris.Wrapf(err, "loader: programs row %d", i+2)
			}
			programs = append(programs, *p)
		}
	}

	seen := make(map[string]bool, len(programs))
	for i := range programs {
		if err := validateProgram(&programs[i]); err != nil {
			return nil, eris.Wrapf(err, "loader: program %d", i)
		}
		if seen[programs[i].ID] {
			return nil, eris.Errorf("loader: duplicate program id %q", programs[i].ID)
		}
		seen[programs[i].ID] = true
	}
	return programs, nil
}

func validateProgram(p *model.InterventionProgram) error {
	if p.ID == "" {
		return eris.New("id is required")
	}
	if p.CostPerParticipant.IsNegative() {
		return eris.Errorf("negative cost for %s", p.ID)
	}
	if p.CompletionRate < 0 || p.CompletionRate > 1 {
		return eris.Errorf("completion_rate %v out of [0,1] for %s", p.CompletionRate, p.ID)
	}
	return nil
}

func programFromRow(t *table, i int) (*model.InterventionProgram, error) {
	cost, err := decimal.NewFromString(t.col(i, "cost_per_participant"))
	if err != nil {
		return nil, eris.Wrap(err, "parse cost_per_participant")
	}
	reduction, err := floatCol(t, i, "expected_reduction")
	if err != nil {
		return nil, err
	}
	completion, err := floatCol(t, i, "completion_rate")
	if err != nil {
		return nil, err
	}
	duration, err := intColDefault(t, i, "duration_days")
	if err != nil {
		return nil, err
	}

	p := &model.InterventionProgram{
		ID:                 t.col(i, "id"),
		Name:               t.col(i, "name"),
		Type:               model.ProgramType(t.col(i, "type")),
		ConditionTags:      splitList(t.col(i, "condition_tags")),
		CostPerParticipant: cost,
		ExpectedReduction:  reduction,
		DurationDays:       duration,
		CompletionRate:     completion,
	}
	for _, c := range splitList(t.col(i, "target_categories")) {
		p.TargetCategories = append(p.TargetCategories, model.RiskCategory(c))
	}
	return p, nil
}
