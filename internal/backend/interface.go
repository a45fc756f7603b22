package backend

import (
	"context"

	ports "satinalma/internal/sheets"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result holds the export writers for one backend. Fallback is nil when the
// primary writer already is the local CSV writer.
type Result struct {
	Name     BackendType
	Primary  ports.RowWriter
	Fallback ports.RowWriter
	Cleanup  CleanupFunc
}

// Factory creates export writers based on configuration.
type Factory interface {
	CreateExport(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// ExportDir holds CSV exports, the CSV fallback and exports.db.
	ExportDir string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType names an export destination.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	CSVBackend    BackendType = "csv"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, CSVBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
