package backend

import (
	"context"
	"fmt"
	"path/filepath"

	"satinalma/internal/log"
	"satinalma/internal/sheets/csv"
	gsheet "satinalma/internal/sheets/google"
	"satinalma/internal/sheets/memory"
	"satinalma/internal/storage"
)

const exportPrefix = "ledger"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateExport implements Factory.CreateExport. Every backend except csv
// gets a CSV writer under ExportDir as fallback, when ExportDir is set.
func (f *DefaultFactory) CreateExport(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res = &Result{Primary: memory.New()}
	case CSVBackend:
		res = &Result{Primary: csv.NewFileWriter(config.ExportDir, exportPrefix)}
	case SQLiteBackend:
		res = f.createSQLiteBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	res.Name = config.Type
	if res.Cleanup == nil {
		res.Cleanup = func() error { return nil }
	}
	if config.Type != CSVBackend && config.ExportDir != "" {
		res.Fallback = csv.NewFileWriter(config.ExportDir, exportPrefix)
	}

	f.logger.InfoContext(ctx, "Initialized export backend",
		log.FieldBackend, config.Type.String(),
		"fallback", res.Fallback != nil)
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) *Result {
	path := filepath.Join(config.ExportDir, "exports.db")
	f.logger.Debug("Export runs recorded in SQLite", "db_path", path)
	return &Result{Primary: storage.NewExportDB(path)}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := NewSheetsClient(ctx, config, f.logger)
	if err != nil {
		return nil, err
	}
	return &Result{Primary: cli}, nil
}

// NewSheetsClient opens the Google Sheets client described by config. The
// worker uses it directly as its mirror target.
func NewSheetsClient(ctx context.Context, config Config, logger *log.Logger) (*gsheet.Client, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}
