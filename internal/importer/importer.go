// Package importer turns loosely keyed tabular records into a ledger batch.
// Headers are matched through a synonym table, rows missing a supplier, a
// date or an item are skipped, and the remaining rows are grouped into
// invoices.
package importer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"satinalma/internal/cache"
	"satinalma/internal/core"
	"satinalma/internal/ledger"
	"satinalma/internal/log"
)

// ErrTooManyRows is returned when a source holds more rows than allowed.
var ErrTooManyRows = errors.New("too many rows to import")

const defaultHeaderCacheSize = 256

// headerMatch is a cached MatchHeader result.
type headerMatch struct {
	field Field
	ok    bool
}

type (
	// Importer builds ledger batches from records. It is safe for concurrent
	// use.
	Importer struct {
		headers *cache.LRUCache[headerMatch]
		maxRows int
		logger  *log.Logger
	}

	// Option customizes an Importer.
	Option func(*Importer)

	// Report summarizes one import.
	Report struct {
		Rows     int `json:"rows"`
		Skipped  int `json:"skipped"`
		Invoices int `json:"invoices"`
		Lines    int `json:"lines"`
	}
)

// WithMaxRows rejects sources with more than n rows. Zero means no limit.
func WithMaxRows(n int) Option {
	return func(im *Importer) { im.maxRows = n }
}

// WithHeaderCacheSize sizes the header lookup cache.
func WithHeaderCacheSize(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.headers = cache.NewLRUCache[headerMatch](n, 0)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// New returns an Importer.
func New(opts ...Option) *Importer {
	im := &Importer{
		headers: cache.NewLRUCache[headerMatch](defaultHeaderCacheSize, 0),
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(im)
	}
	im.logger = im.logger.WithComponent(log.ComponentImport)
	return im
}

// HeaderCache exposes the lookup cache for registration with a cleanup
// manager.
func (im *Importer) HeaderCache() cache.Cleaner {
	return im.headers
}

// HeaderCacheStats reports header lookup hits and misses.
func (im *Importer) HeaderCacheStats() cache.Stats {
	return im.headers.Stats()
}

func (im *Importer) match(header string) (Field, bool) {
	m := im.headers.GetOrCompute(header, func() headerMatch {
		f, ok := MatchHeader(header)
		return headerMatch{field: f, ok: ok}
	})
	return m.field, m.ok
}

// row is one record mapped onto ledger fields.
type row map[Field]string

// mapRecord resolves every header of rec. When two headers map to the same
// field, the first non-empty value in header order wins.
func (im *Importer) mapRecord(rec map[string]string) row {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make(row, len(keys))
	for _, k := range keys {
		f, ok := im.match(k)
		if !ok {
			continue
		}
		v := strings.TrimSpace(rec[k])
		if v == "" {
			continue
		}
		if _, set := out[f]; !set {
			out[f] = v
		}
	}
	return out
}

type group struct {
	header core.InvoiceHeader
	lines  []core.LineFields
}

// Build maps records to a batch. It fails only on ErrTooManyRows; rows
// that cannot form a line are skipped and counted.
func (im *Importer) Build(records []map[string]string) (ledger.Batch, Report, error) {
	rep := Report{Rows: len(records)}
	if im.maxRows > 0 && len(records) > im.maxRows {
		return ledger.Batch{}, rep, fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(records), im.maxRows)
	}

	var (
		order  []string
		groups = make(map[string]*group)
	)
	for i, rec := range records {
		r := im.mapRecord(rec)
		if r[FieldSupplier] == "" || r[FieldDate] == "" || r[FieldItem] == "" {
			rep.Skipped++
			continue
		}

		date := core.NormalizeDate(r[FieldDate])
		key := groupKey(r[FieldSupplier], r[FieldInvoiceNo], date, i)
		g, ok := groups[key]
		if !ok {
			g = &group{header: core.InvoiceHeader{
				Number:          r[FieldInvoiceNo],
				IssueDate:       date,
				Supplier:        r[FieldSupplier],
				WithholdingRate: core.ParseNumber(r[FieldWithholding]),
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.lines = append(g.lines, lineFrom(r))
	}

	batch := ledger.Batch{Invoices: make([]ledger.BatchInvoice, 0, len(order))}
	for _, key := range order {
		g := groups[key]
		batch.Invoices = append(batch.Invoices, ledger.BatchInvoice{Header: g.header, Lines: g.lines})
	}
	rep.Invoices, rep.Lines = batch.Len()

	im.logger.Debug("Import batch built",
		log.FieldRows, rep.Rows, log.FieldSkipped, rep.Skipped,
		log.FieldInvoices, rep.Invoices, log.FieldLines, rep.Lines)
	return batch, rep, nil
}

// groupKey joins rows sharing supplier, invoice number and date. Without an
// invoice number every row becomes its own invoice.
func groupKey(supplier, invoiceNo, date string, index int) string {
	if invoiceNo != "" {
		return strings.Join([]string{"n", supplier, invoiceNo, date}, "\x00")
	}
	return strings.Join([]string{"r", supplier, date, fmt.Sprint(index)}, "\x00")
}

// lineFrom builds the line of a mapped row. A manual net or VAT-inclusive
// unit price back-fills the discount rate when it disagrees with the
// computed value at two decimal places.
func lineFrom(r row) core.LineFields {
	p := core.Pricing{
		Quantity:     core.ParseNumber(r[FieldQuantity]),
		UnitPrice:    core.ParseNumber(r[FieldUnitPrice]),
		DiscountRate: core.ParseNumber(r[FieldDiscountRate]),
		VATRate:      core.ParseNumber(r[FieldVATRate]),
	}.Normalize()

	computed := core.ComputeLine(p)
	switch {
	case r[FieldUnitNet] != "":
		if v := core.ParseNumber(r[FieldUnitNet]); !sameCents(v, computed.UnitNet) {
			p = core.DeriveFromUnitNet(p, v)
		}
	case r[FieldUnitVatIncl] != "":
		if v := core.ParseNumber(r[FieldUnitVatIncl]); !sameCents(v, computed.UnitVatIncl) {
			p = core.DeriveFromUnitVatIncl(p, v)
		}
	}

	unit := r[FieldUnit]
	if _, ok := core.ParseUnit(unit); !ok {
		unit = string(core.DefaultUnit)
	}
	return core.LineFields{Item: r[FieldItem], Unit: unit, Pricing: p}
}

func sameCents(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}
