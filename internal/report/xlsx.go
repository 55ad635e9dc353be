// Package report renders period run results into XLSX workbooks for the
// finance and care teams.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/wellness-engine/internal/model"
)

// PeriodReport is everything one workbook covers: the pool aggregate, the
// per-member splits, and the recommendations standing at the end of the
// period.
type PeriodReport struct {
	Pool            *model.PoolSummary
	Members         []model.FinancialPeriodSummary
	Recommendations []model.InterventionRecommendation
}

// WriteWorkbook writes a period report as an XLSX workbook. The summary
// sheet is always present; member and recommendation sheets appear only
// when they have rows.
func WriteWorkbook(path string, rep *PeriodReport) error {
	if rep == nil || rep.Pool == nil {
		return eris.New("report: pool summary is required")
	}

	f := xlsx.NewFile()
	if err := addSummarySheet(f, rep.Pool); err != nil {
		return err
	}
	if len(rep.Members) > 0 {
		if err := addMemberSheet(f, rep.Members); err != nil {
			return err
		}
	}
	if len(rep.Recommendations) > 0 {
		if err := addRecommendationSheet(f, rep.Recommendations); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save workbook")
	}
	return nil
}

func addSummarySheet(f *xlsx.File, pool *model.PoolSummary) error {
	sheet, err := f.AddSheet("Pool Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	s := pool.Summary
	kv := [][2]string{
		{"Period", s.Period},
		{"Members Included", strconv.Itoa(pool.MembersIncluded)},
		{"Members Excluded", strconv.Itoa(len(pool.Excluded))},
		{"Predicted Cost", s.PredictedCost.StringFixed(2)},
		{"Actual Cost", s.ActualCost.StringFixed(2)},
		{"Intervention Cost", s.InterventionCost.StringFixed(2)},
		{"Savings", s.Savings.StringFixed(2)},
		{"Savings %", strconv.FormatFloat(pool.SavingsPercent, 'f', 2, 64)},
		{"Operator Share", s.OperatorShare.StringFixed(2)},
		{"Member Share", s.MemberShare.StringFixed(2)},
		{"Reserve", pool.Reserve.StringFixed(2)},
		{"Risk: Low", strconv.Itoa(pool.Distribution.Low)},
		{"Risk: Moderate", strconv.Itoa(pool.Distribution.Moderate)},
		{"Risk: High", strconv.Itoa(pool.Distribution.High)},
		{"Risk: Critical", strconv.Itoa(pool.Distribution.Critical)},
	}
	for _, pair := range kv {
		row := sheet.AddRow()
		row.AddCell().SetString(pair[0])
		row.AddCell().SetString(pair[1])
	}

	if len(pool.Excluded) > 0 {
		ex, err := f.AddSheet("Exclusions")
		if err != nil {
			return eris.Wrap(err, "report: add exclusions sheet")
		}
		addHeader(ex, "Member ID", "Reason")
		for _, e := range pool.Excluded {
			row := ex.AddRow()
			row.AddCell().SetString(e.MemberID)
			row.AddCell().SetString(e.Reason)
		}
	}
	return nil
}

func addMemberSheet(f *xlsx.File, members []model.FinancialPeriodSummary) error {
	sheet, err := f.AddSheet("Member Summaries")
	if err != nil {
		return eris.Wrap(err, "report: add member sheet")
	}
	addHeader(sheet, "Member ID", "Predicted", "Actual", "Intervention",
		"Savings", "Operator Share", "Member Share")
	for _, m := range members {
		row := sheet.AddRow()
		row.AddCell().SetString(m.MemberID)
		row.AddCell().SetString(m.PredictedCost.StringFixed(2))
		row.AddCell().SetString(m.ActualCost.StringFixed(2))
		row.AddCell().SetString(m.InterventionCost.StringFixed(2))
		row.AddCell().SetString(m.Savings.StringFixed(2))
		row.AddCell().SetString(m.OperatorShare.StringFixed(2))
		row.AddCell().SetString(m.MemberShare.StringFixed(2))
	}
	return nil
}

func addRecommendationSheet(f *xlsx.File, recs []model.InterventionRecommendation) error {
	sheet, err := f.AddSheet("Recommendations")
	if err != nil {
		return eris.Wrap(err, "report: add recommendations sheet")
	}
	addHeader(sheet, "ID", "Member ID", "Program ID", "State",
		"Program Cost", "NPV Savings", "ROI")
	for _, r := range recs {
		c := r.Candidate
		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(c.MemberID)
		row.AddCell().SetString(c.ProgramID)
		row.AddCell().SetString(string(r.State))
		row.AddCell().SetString(c.ProgramCost.StringFixed(2))
		row.AddCell().SetString(c.NPVGrossSavings.StringFixed(2))
		if c.ROIUndefined {
			row.AddCell().SetString("n/a")
		} else {
			row.AddCell().SetString(strconv.FormatFloat(c.ROI, 'f', 4, 64))
		}
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, name := range names {
		row.AddCell().SetString(name)
	}
}
