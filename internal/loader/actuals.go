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

// ActualCost is one member's realized costs for a period, from the claims
// settlement feed.
type ActualCost struct {
	MemberID         string          `json:"member_id" yaml:"member_id"`
	Actual           decimal.Decimal `json:"actual_cost" yaml:"actual_cost"`
	InterventionCost decimal.Decimal `json:"intervention_cost" yaml:"intervention_cost"`
}

// LoadActuals reads a period's actual-cost feed keyed by member ID from a
// JSON, YAML, CSV, or XLSX file.
func LoadActuals(ctx context.Context, path string) (map[string]ActualCost, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var actuals []ActualCost
	switch format {
	case FormatJSON, FormatYAML:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "loader: read actuals file")
		}
		if format == FormatJSON {
			err = json.Unmarshal(raw, &actuals)
		} else {
			err = yaml.Unmarshal(raw, &actuals)
		}
		if err != nil {
			return nil, eris.Wrap(err, "loader: decode actuals")
		}
	default:
		t, err := readTable(ctx, path, format)
		if err != nil {
			return nil, err
		}
		if err := t.requireColumns("member_id", "actual_cost"); err != nil {
			return nil, err
		}
		actuals = make([]ActualCost, 0, len(t.rows))
		for i := range t.rows {
			a, err := actualFromRow(t, i)
			if err != nil {
				return nil, eris.Wrapf(err, "loader: actuals row %d", i+2)
			}
			actuals = append(actuals, *a)
		}
	}

	out := make(map[string]ActualCost, len(actuals))
	for i := range actuals {
		a := actuals[i]
		if a.MemberID == "" {
			return nil, eris.Errorf("loader: actuals entry %d has no member_id", i)
		}
		if a.Actual.IsNegative() || a.InterventionCost.IsNegative() {
			return nil, eris.Errorf("loader: negative cost for member %s", a.MemberID)
		}
		if _, dup := out[a.MemberID]; dup {
			return nil, eris.Errorf("loader: duplicate actuals for member %s", a.MemberID)
		}
		out[a.MemberID] = a
	}
	return out, nil
}

// Inputs joins member snapshots with the actuals feed. Members without an
// actuals entry keep a nil actual cost and are excluded from the pool
// aggregate downstream.
func Inputs(members []model.MemberRecord, actuals map[string]ActualCost) []MemberJoin {
	joined := make([]MemberJoin, len(members))
	for i := range members {
		joined[i].Member = &members[i]
		if a, ok := actuals[members[i].MemberID]; ok {
			actual := a.Actual
			joined[i].Actual = &actual
			joined[i].InterventionCost = a.InterventionCost
		}
	}
	return joined
}

// MemberJoin is a member snapshot paired with its actuals, ready to feed a
// population run.
type MemberJoin struct {
	Member           *model.MemberRecord
	Actual           *decimal.Decimal
	InterventionCost decimal.Decimal
}

func actualFromRow(t *table, i int) (*ActualCost, error) {
	actual, err := decimal.NewFromString(t.col(i, "actual_cost"))
	if err != nil {
		return nil, eris.Wrap(err, "parse actual_cost")
	}
	a := &ActualCost{
		MemberID: t.col(i, "member_id"),
		Actual:   actual,
	}
	if raw := t.col(i, "intervention_cost"); raw != "" {
		if a.InterventionCost, err = decimal.NewFromString(raw); err != nil {
			return nil, eris.Wrap(err, "parse intervention_cost")
		}
	}
	return a, nil
}
