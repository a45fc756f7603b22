// Package worker mirrors ledger events into spreadsheet tabs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"satinalma/internal/amqp"
	"satinalma/internal/ledger"
	"satinalma/internal/log"
	ports "satinalma/internal/sheets"
)

const defaultLedgerSheet = "Ledger"

// MirrorWorker writes the rows carried by each event to a sheet: one tab
// per invoice, and the ledger tab for events covering the whole ledger.
type MirrorWorker struct {
	sheets      ports.SheetWriter
	ledgerSheet string
	logger      *log.Logger
}

func NewMirrorWorker(sheets ports.SheetWriter, ledgerSheet string, logger *log.Logger) *MirrorWorker {
	if ledgerSheet == "" {
		ledgerSheet = defaultLedgerSheet
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		sheets:      sheets,
		ledgerSheet: ledgerSheet,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent replaces the event's target sheet with its rows. An error
// leaves the message for redelivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev == nil {
		return errors.New("nil ledger event")
	}
	header := ev.Header
	if len(header) == 0 {
		header = ledger.Header()
	}

	sheet := w.SheetFor(ev)
	ref, err := w.sheets.WriteSheet(ctx, sheet, header, ev.Rows)
	if err != nil {
		return fmt.Errorf("mirror %s to %s: %w", ev.Type, sheet, err)
	}

	w.logger.InfoContext(ctx, "Mirrored ledger event",
		log.FieldEventType, ev.Type,
		log.FieldInvoiceID, ev.InvoiceID,
		log.FieldVersion, ev.Version,
		log.FieldRows, len(ev.Rows),
		log.FieldRef, ref)
	return nil
}

// SheetFor names the tab an event is written to. Invoice numbers are not
// unique, so invoice tabs carry the number followed by a short id prefix,
// or the whole id when the number is blank.
func (w *MirrorWorker) SheetFor(ev *amqp.LedgerEvent) string {
	if ev.InvoiceID == "" {
		return w.ledgerSheet
	}
	number := strings.TrimSpace(ev.InvoiceNo)
	if number == "" {
		return "inv " + ev.InvoiceID
	}
	return "inv " + number + " " + shortID(ev.InvoiceID)
}

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
