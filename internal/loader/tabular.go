package loader

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// table is a parsed tabular file: a header row plus data rows, all fields
// trimmed.
type table struct {
	header []string
	rows   [][]string
}

// col returns the value of the named column in row i, or "" when the
// column is absent or the row is short.
func (t *table) col(i int, name string) string {
	for j, h := range t.header {
		if strings.EqualFold(h, name) {
			if j < len(t.rows[i]) {
				return t.rows[i][j]
			}
			return ""
		}
	}
	return ""
}

func (t *table) requireColumns(names ...string) error {
	var missing []string
	for _, name := range names {
		found := false
		for _, h := range t.header {
			if strings.EqualFold(h, name) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("loader: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// readCSV parses a CSV stream into a table. The first row is the header.
func readCSV(ctx context.Context, r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	t := &table{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "loader: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "loader: read csv row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}

		if t.header == nil {
			t.header = record
			continue
		}
		t.rows = append(t.rows, record)
	}
	if t.header == nil {
		return nil, eris.New("loader: csv file is empty")
	}
	return t, nil
}

func readCSVFile(ctx context.Context, path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open csv file")
	}
	defer f.Close() //nolint:errcheck

	return readCSV(ctx, f)
}

// readXLSX parses the first sheet of an XLSX file into a table. The first
// row is the header.
func readXLSX(path string) (*table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open xlsx file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("loader: xlsx file has no sheets")
	}

	t := &table{}
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}

		if t.header == nil {
			t.header = cells
			continue
		}
		// tealeg emits fully empty trailing rows for some writers; skip them.
		empty := true
		for _, c := range cells {
			if c != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		t.rows = append(t.rows, cells)
	}
	if t.header == nil {
		return nil, eris.New("loader: xlsx sheet is empty")
	}
	return t, nil
}

func readTable(ctx context.Context, path string, format Format) (*table, error) {
	switch format {
	case FormatCSV:
		return readCSVFile(ctx, path)
	case FormatXLSX:
		return readXLSX(path)
	default:
		return nil, eris.Errorf("loader: format %q is not tabular", format)
	}
}
