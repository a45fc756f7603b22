// Package csv reads and writes ledger tables as CSV files. Both ',' and ';'
// delimited input is accepted; spreadsheet programs in the ledger locale
// emit the latter.
package csv

import (
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	ports "satinalma/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.RecordReader = (*Reader)(nil)
	_ ports.RowWriter    = (*FileWriter)(nil)
	_ ports.SheetWriter  = (*FileWriter)(nil)
)

const bom = "\ufeff"

// maxInput bounds how much CSV text a Reader accepts.
const maxInput = 32 << 20

// Reader reads records from CSV text.
type Reader struct {
	src io.Reader
}

// NewReader wraps src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// ReadRecords parses the whole input. The first row is the header.
func (r *Reader) ReadRecords(ctx context.Context) ([]map[string]string, error) {
	data, err := io.ReadAll(io.LimitReader(r.src, maxInput+1))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(data) > maxInput {
		return nil, fmt.Errorf("read csv: input larger than %d bytes", maxInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes CSV text into keyed records.
func Parse(data []byte) ([]map[string]string, error) {
	data = bytes.TrimPrefix(data, []byte(bom))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	cr := stdcsv.NewReader(bytes.NewReader(data))
	cr.Comma = SniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}
	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		header[i] = strings.TrimSpace(h)
	}
	rows := make([][]string, 0, len(all)-1)
	for _, row := range all[1:] {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		rows = append(rows, row)
	}
	return ports.Records(header, rows), nil
}

// SniffDelimiter picks ';' when the header line holds more semicolons than
// commas, ',' otherwise.
func SniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// Encode writes header and rows as comma separated CSV.
func Encode(w io.Writer, header []string, rows [][]string) error {
	cw := stdcsv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// FileWriter writes tables as files under a directory.
type FileWriter struct {
	dir    string
	prefix string
	now    func() time.Time
}

// NewFileWriter writes into dir. Files from WriteRows are named
// <prefix>-<timestamp>.csv.
func NewFileWriter(dir, prefix string) *FileWriter {
	if prefix == "" {
		prefix = "ledger"
	}
	return &FileWriter{dir: dir, prefix: prefix, now: time.Now}
}

// WriteRows writes a new timestamped file and returns its path.
func (w *FileWriter) WriteRows(ctx context.Context, header []string, rows [][]string) (string, error) {
	name := fmt.Sprintf("%s-%s.csv", w.prefix, w.now().UTC().Format("20060102-150405.000"))
	return w.writeFile(ctx, name, header, rows)
}

// WriteSheet replaces <dir>/<sheet>.csv.
func (w *FileWriter) WriteSheet(ctx context.Context, sheet string, header []string, rows [][]string) (string, error) {
	return w.writeFile(ctx, safeName(sheet)+".csv", header, rows)
}

func (w *FileWriter) writeFile(ctx context.Context, name string, header []string, rows [][]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, header, rows); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename csv: %w", err)
	}
	return path, nil
}

// safeName keeps letters, digits, '-' and '_' of s.
func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "sheet"
	}
	return b.String()
}
