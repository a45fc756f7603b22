package ledger

import (
	"fmt"

	"satinalma/internal/core"
)

type (
	// Batch is a set of invoices inserted together by Commit.
	Batch struct {
		Invoices []BatchInvoice
	}

	// BatchInvoice is one invoice of a batch with its lines.
	BatchInvoice struct {
		Header core.InvoiceHeader
		Lines  []core.LineFields
	}
)

// Len returns the number of invoices and lines in the batch.
func (b Batch) Len() (invoices, lines int) {
	for _, inv := range b.Invoices {
		invoices++
		lines += len(inv.Lines)
	}
	return invoices, lines
}

// Commit validates the whole batch, then inserts every invoice and line in
// one step. On any error nothing is inserted. Unknown units fall back to the
// default unit. It returns the new invoice ids in batch order.
func (s *Store) Commit(b Batch) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ids      = make([]string, 0, len(b.Invoices))
		invoices = make([]core.Invoice, 0, len(b.Invoices))
		lines    []core.Line
	)
	for i, bi := range b.Invoices {
		inv, newLines, err := s.buildInvoice(bi.Header, bi.Lines, true)
		if err != nil {
			return nil, fmt.Errorf("invoice %d: %w", i+1, err)
		}
		ids = append(ids, inv.ID)
		invoices = append(invoices, inv)
		lines = append(lines, newLines...)
	}
	if len(invoices) == 0 {
		return ids, nil
	}

	s.invoices = append(s.invoices, invoices...)
	s.lines = append(s.lines, lines...)
	s.version++
	return ids, nil
}
