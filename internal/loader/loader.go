// Package loader reads member snapshots, program catalogs, and actual-cost
// feeds from JSON, YAML, CSV, and XLSX files. Format is picked by file
// extension; tabular formats share one header-mapped row parser.
package loader

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format identifies a supported input file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("loader: unsupported file extension %q", filepath.Ext(path))
	}
}
