// Package services coordinates the ledger store with its side channels:
// change events, imports, exports and snapshot files.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"satinalma/internal/amqp"
	"satinalma/internal/core"
	"satinalma/internal/importer"
	"satinalma/internal/ledger"
	"satinalma/internal/log"
	ports "satinalma/internal/sheets"
	"satinalma/internal/storage"
)

// ErrNoExportWriter is returned by Export when no writer is configured.
var ErrNoExportWriter = errors.New("no export writer configured")

// EventPublisher receives an event after every committed mutation.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

type (
	// LedgerService wraps a ledger.Store. Mutations go through the store
	// unchanged; the service only adds events and logging around them.
	LedgerService struct {
		store    *ledger.Store
		events   EventPublisher
		importer *importer.Importer
		primary  ports.RowWriter
		fallback ports.RowWriter
		logger   *log.Logger
	}

	// Option customizes a LedgerService.
	Option func(*LedgerService)

	// ExportResult says where an export landed.
	ExportResult struct {
		Ref      string `json:"ref"`
		Rows     int    `json:"rows"`
		Fallback bool   `json:"fallback"`
	}
)

// WithEvents publishes change events to p.
func WithEvents(p EventPublisher) Option {
	return func(s *LedgerService) { s.events = p }
}

// WithImporter replaces the default importer.
func WithImporter(im *importer.Importer) Option {
	return func(s *LedgerService) { s.importer = im }
}

// WithExportWriters sets the export target and the writer used when it
// fails. fallback may be nil.
func WithExportWriters(primary, fallback ports.RowWriter) Option {
	return func(s *LedgerService) {
		s.primary = primary
		s.fallback = fallback
	}
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func NewLedgerService(store *ledger.Store, opts ...Option) *LedgerService {
	s := &LedgerService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	if s.importer == nil {
		s.importer = importer.New(importer.WithLogger(s.logger))
	}
	return s
}

// Store exposes the wrapped store for reads.
func (s *LedgerService) Store() *ledger.Store { return s.store }

// Importer exposes the importer, e.g. to register its header cache.
func (s *LedgerService) Importer() *importer.Importer { return s.importer }

func (s *LedgerService) CreateInvoice(ctx context.Context, header core.InvoiceHeader, lines []core.LineFields) (string, error) {
	id, err := s.store.CreateInvoice(header, lines)
	if err != nil {
		return "", err
	}
	s.committed(ctx, log.OpCreateInvoice, amqp.EventInvoiceCreated, id, "")
	return id, nil
}

func (s *LedgerService) UpdateInvoiceHeader(ctx context.Context, id string, patch core.InvoiceHeader) (bool, error) {
	ok, err := s.store.UpdateInvoiceHeader(id, patch)
	if err != nil || !ok {
		return ok, err
	}
	s.committed(ctx, log.OpUpdateHeader, amqp.EventInvoiceUpdated, id, "")
	return true, nil
}

// PatchInvoiceHeader merges a partial header into the current invoice in a
// single store operation.
func (s *LedgerService) PatchInvoiceHeader(ctx context.Context, id string, merge func(core.Invoice) core.InvoiceHeader) (bool, error) {
	ok, err := s.store.PatchInvoiceHeader(id, merge)
	if err != nil || !ok {
		return ok, err
	}
	s.committed(ctx, log.OpUpdateHeader, amqp.EventInvoiceUpdated, id, "")
	return true, nil
}

func (s *LedgerService) CreateLine(ctx context.Context, invoiceID string, fields core.LineFields) (string, error) {
	id, err := s.store.CreateLine(invoiceID, fields)
	if err != nil {
		return "", err
	}
	s.committed(ctx, log.OpCreateLine, amqp.EventLineCreated, invoiceID, id)
	return id, nil
}

func (s *LedgerService) UpdateLine(ctx context.Context, lineID string, fields core.LineFields) (bool, error) {
	ok, err := s.store.UpdateLine(lineID, fields)
	if err != nil || !ok {
		return ok, err
	}
	if l, found := s.store.Line(lineID); found {
		s.committed(ctx, log.OpUpdateLine, amqp.EventLineUpdated, l.InvoiceID, lineID)
	}
	return true, nil
}

// PatchLine merges a partial line into the current line in a single store
// operation and returns the stored result.
func (s *LedgerService) PatchLine(ctx context.Context, lineID string, merge func(core.Line) core.LineFields) (core.Line, bool, error) {
	l, ok, err := s.store.PatchLine(lineID, merge)
	if err != nil || !ok {
		return l, ok, err
	}
	s.committed(ctx, log.OpUpdateLine, amqp.EventLineUpdated, l.InvoiceID, lineID)
	return l, true, nil
}

func (s *LedgerService) DeleteLine(ctx context.Context, lineID string) bool {
	l, found := s.store.Line(lineID)
	if !found || !s.store.DeleteLine(lineID) {
		return false
	}
	s.committed(ctx, log.OpDeleteLine, amqp.EventLineDeleted, l.InvoiceID, lineID)
	return true
}

func (s *LedgerService) RenameSupplier(ctx context.Context, oldName, newName string) (int, error) {
	n, err := s.store.RenameSupplierEverywhere(oldName, newName)
	if err != nil || n == 0 {
		return n, err
	}
	s.committed(ctx, log.OpRenameSupplier, amqp.EventSupplierRenamed, "", "")
	return n, nil
}

func (s *LedgerService) RenameItem(ctx context.Context, oldName, newName string) (int, error) {
	n, err := s.store.RenameItemEverywhere(oldName, newName)
	if err != nil || n == 0 {
		return n, err
	}
	s.committed(ctx, log.OpRenameItem, amqp.EventItemRenamed, "", "")
	return n, nil
}

func (s *LedgerService) AllocateDiscount(ctx context.Context, invoiceID string, amount decimal.Decimal) (core.Allocation, bool, error) {
	alloc, ok, err := s.store.AllocateInvoiceDiscount(invoiceID, amount)
	if err != nil || !ok {
		return alloc, ok, err
	}
	s.committed(ctx, log.OpAllocate, amqp.EventDiscountAllocated, invoiceID, "")
	return alloc, true, nil
}

// Import reads every record from src and commits them as one batch. Nothing
// is committed when reading, building or validating fails.
func (s *LedgerService) Import(ctx context.Context, src ports.RecordReader) (importer.Report, []string, error) {
	records, err := src.ReadRecords(ctx)
	if err != nil {
		return importer.Report{}, nil, fmt.Errorf("read records: %w", err)
	}
	batch, report, err := s.importer.Build(records)
	if err != nil {
		return report, nil, err
	}
	if len(batch.Invoices) == 0 {
		s.loggerFor(ctx).InfoContext(ctx, "Import found nothing to commit",
			log.FieldRows, report.Rows, log.FieldSkipped, report.Skipped)
		return report, nil, nil
	}
	ids, err := s.store.Commit(batch)
	if err != nil {
		return report, nil, err
	}
	s.loggerFor(ctx).InfoContext(ctx, "Import committed",
		log.FieldRows, report.Rows,
		log.FieldSkipped, report.Skipped,
		log.FieldInvoices, report.Invoices,
		log.FieldLines, report.Lines)
	s.committed(ctx, log.OpImport, amqp.EventBatchImported, "", "")
	return report, ids, nil
}

// Rows returns the filtered, sorted row view of the current ledger.
func (s *LedgerService) Rows(f ledger.Filter, key ledger.SortKey, desc bool) []ledger.Row {
	rows := f.Apply(ledger.Rows(s.store.Snapshot()))
	if key != "" {
		ledger.SortRows(rows, key, desc)
	}
	return rows
}

// Export writes the filtered rows to the primary writer, and to the
// fallback writer when the primary fails.
func (s *LedgerService) Export(ctx context.Context, f ledger.Filter) (ExportResult, error) {
	if s.primary == nil && s.fallback == nil {
		return ExportResult{}, ErrNoExportWriter
	}
	rows := ledger.ExportRecords(s.Rows(f, ledger.SortDate, false))
	header := ledger.Header()
	logger := s.loggerFor(ctx).WithComponent(log.ComponentExport).With(log.FieldOperation, log.OpExport)

	if s.primary != nil {
		ref, err := s.primary.WriteRows(ctx, header, rows)
		if err == nil {
			logger.InfoContext(ctx, "Export written", log.FieldRef, ref, log.FieldRows, len(rows))
			return ExportResult{Ref: ref, Rows: len(rows)}, nil
		}
		if s.fallback == nil {
			return ExportResult{}, fmt.Errorf("export: %w", err)
		}
		logger.WarnContext(ctx, "Primary export failed, using fallback", log.FieldError, err)
	}

	ref, err := s.fallback.WriteRows(ctx, header, rows)
	if err != nil {
		return ExportResult{}, fmt.Errorf("fallback export: %w", err)
	}
	logger.InfoContext(ctx, "Export written to fallback", log.FieldRef, ref, log.FieldRows, len(rows))
	return ExportResult{Ref: ref, Rows: len(rows), Fallback: true}, nil
}

// SaveSnapshot writes the current ledger to a SQLite file.
func (s *LedgerService) SaveSnapshot(ctx context.Context, path string) error {
	snap := s.store.Snapshot()
	if err := storage.SaveSnapshot(ctx, path, snap); err != nil {
		return err
	}
	s.logger.WithComponent(log.ComponentStorage).InfoContext(ctx, "Snapshot saved",
		"path", path, log.FieldVersion, snap.Version)
	return nil
}

// LoadSnapshot replaces the ledger with the content of a SQLite file.
func (s *LedgerService) LoadSnapshot(ctx context.Context, path string) error {
	snap, err := storage.LoadSnapshot(ctx, path)
	if err != nil {
		return err
	}
	if err := s.store.Restore(snap); err != nil {
		return err
	}
	s.logger.WithComponent(log.ComponentStorage).InfoContext(ctx, "Snapshot restored",
		"path", path,
		log.FieldOperation, log.OpRestore,
		log.FieldInvoices, len(snap.Invoices),
		log.FieldLines, len(snap.Lines))
	return nil
}

// committed logs a mutation and publishes its event. Publishing failures
// are logged only; the mutation already happened.
func (s *LedgerService) committed(ctx context.Context, op, eventType, invoiceID, lineID string) {
	snap := s.store.Snapshot()
	version := snap.Version
	logger := s.loggerFor(ctx)
	logger.InfoContext(ctx, "Ledger updated",
		log.NewFields().WithOperation(op).WithInvoice(invoiceID, lineID).WithVersion(version).ToSlice()...)

	if s.events == nil {
		return
	}
	ev := newEvent(eventType, invoiceID, snap)
	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		fields := log.NewFields().WithInvoice(invoiceID, "").WithError(err)
		fields[log.FieldEventType] = eventType
		logger.WarnContext(ctx, "Failed to publish ledger event", fields.ToSlice()...)
	}
}

// loggerFor prefers the request logger, which carries the request id.
func (s *LedgerService) loggerFor(ctx context.Context) *log.Logger {
	return log.FromContextOr(ctx, s.logger).WithComponent(log.ComponentLedger)
}

// newEvent builds an event from one snapshot so that its version and rows
// describe the same ledger state.
func newEvent(eventType, invoiceID string, snap ledger.Snapshot) *amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(eventType, invoiceID, snap.Version)
	ev.Header = ledger.Header()

	rows := ledger.Rows(snap)
	if invoiceID != "" {
		for _, inv := range snap.Invoices {
			if inv.ID == invoiceID {
				ev.InvoiceNo = inv.Number
				break
			}
		}
		kept := rows[:0]
		for _, r := range rows {
			if r.InvoiceID == invoiceID {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	ev.Rows = ledger.ExportRecords(rows)
	return ev
}
