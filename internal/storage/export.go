package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	ports "satinalma/internal/sheets"
)

var _ ports.RowWriter = (*ExportDB)(nil)

// ExportDB records every export run in a SQLite file.
type ExportDB struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewExportDB writes export runs to the database at path.
func NewExportDB(path string) *ExportDB {
	return &ExportDB{path: path, now: time.Now}
}

// WriteRows stores one export run and returns "sqlite:<path>#<run id>".
func (e *ExportDB) WriteRows(ctx context.Context, header []string, rows [][]string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	db, err := open(ctx, e.path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO exports (created_at, header_json) VALUES (?, ?)`,
		e.now().UTC().Format(time.RFC3339), string(headerJSON))
	if err != nil {
		return "", fmt.Errorf("insert export: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("export id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO export_rows (export_id, position, values_json) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare rows: %w", err)
	}
	defer stmt.Close()
	for i, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(b)); err != nil {
			return "", fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return fmt.Sprintf("sqlite:%s#%d", e.path, id), nil
}

// ReadExport loads one run written by WriteRows.
func (e *ExportDB) ReadExport(ctx context.Context, id int64) (header []string, rows [][]string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	db, err := open(ctx, e.path)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	var headerJSON string
	if err := db.QueryRowContext(ctx, `SELECT header_json FROM exports WHERE id = ?`, id).Scan(&headerJSON); err != nil {
		return nil, nil, fmt.Errorf("read export %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(headerJSON), &header); err != nil {
		return nil, nil, fmt.Errorf("decode header: %w", err)
	}

	q, err := db.QueryContext(ctx, `SELECT values_json FROM export_rows WHERE export_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query rows: %w", err)
	}
	defer q.Close()
	for q.Next() {
		var raw string
		if err := q.Scan(&raw); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		var r []string
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, nil, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, r)
	}
	return header, rows, q.Err()
}
