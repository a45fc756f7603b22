// Package memory provides in-process record readers and row writers, used by
// the memory export backend and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "satinalma/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.RecordReader = (*Store)(nil)
	_ ports.RowWriter    = (*Store)(nil)
	_ ports.SheetWriter  = (*Store)(nil)
)

const defaultSheet = "default"

// Table is one written target.
type Table struct {
	Header []string
	Rows   [][]string
}

type Store struct {
	mu      sync.Mutex
	records []map[string]string
	tables  map[string]Table
	writes  int
	// Err, when set, is returned by every read and write.
	Err error
}

// New returns a store that yields records on ReadRecords.
func New(records ...map[string]string) *Store {
	return &Store{records: records, tables: make(map[string]Table)}
}

// ReadRecords returns a copy of the seeded records.
func (s *Store) ReadRecords(_ context.Context) ([]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]map[string]string, 0, len(s.records))
	for _, r := range s.records {
		cp := make(map[string]string, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out, nil
}

// WriteRows replaces the default table.
func (s *Store) WriteRows(ctx context.Context, header []string, rows [][]string) (string, error) {
	return s.WriteSheet(ctx, defaultSheet, header, rows)
}

// WriteSheet replaces the named table and returns a synthetic reference.
func (s *Store) WriteSheet(_ context.Context, sheet string, header []string, rows [][]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	s.tables[sheet] = Table{Header: append([]string(nil), header...), Rows: cp}
	s.writes++
	return fmt.Sprintf("mem:%s:%d", sheet, s.writes), nil
}

// Table returns the last content written to sheet.
func (s *Store) Table(sheet string) (Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[sheet]
	return t, ok
}

// Default returns the table written by WriteRows.
func (s *Store) Default() (Table, bool) {
	return s.Table(defaultSheet)
}

// Writes counts successful writes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
