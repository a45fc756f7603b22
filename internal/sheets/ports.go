// Package sheets defines the tabular ports used for import and export.
// Adapters live in the csv, google and memory subpackages.
package sheets

import "context"

// Ports for tabular adapters.
type (
	// RecordReader yields loosely keyed records: one map per data row, keyed
	// by the raw header text.
	RecordReader interface {
		ReadRecords(ctx context.Context) ([]map[string]string, error)
	}

	// RowWriter replaces the adapter's default target with header and rows.
	RowWriter interface {
		WriteRows(ctx context.Context, header []string, rows [][]string) (ref string, err error)
	}

	// SheetWriter replaces a named target (a tab, a file) with header and
	// rows, creating it when missing.
	SheetWriter interface {
		WriteSheet(ctx context.Context, sheet string, header []string, rows [][]string) (ref string, err error)
	}
)

// Records converts a header row plus data rows into keyed records. Blank
// headers are dropped, short rows are padded with empty cells and rows with
// no content are skipped.
func Records(header []string, rows [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(header))
		empty := true
		for i, h := range header {
			if h == "" {
				continue
			}
			v := ""
			if i < len(row) {
				v = row[i]
			}
			if v != "" {
				empty = false
			}
			rec[h] = v
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}
