// Package ledger owns the in-memory invoice and line collections. Every
// mutation goes through a Store method that runs to completion under the
// store lock, so readers never observe a partial update.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"satinalma/internal/core"
)

// ErrInvalidSnapshot is returned by Restore for snapshots that break
// referential integrity.
var ErrInvalidSnapshot = errors.New("invalid ledger snapshot")

type (
	// Store is the in-memory ledger. The zero value is not usable; call New.
	Store struct {
		mu       sync.Mutex
		invoices []core.Invoice
		lines    []core.Line
		version  uint64
		newID    func() string
	}

	// Snapshot is a deep copy of the ledger at one version.
	Snapshot struct {
		Version  uint64         `json:"version"`
		Invoices []core.Invoice `json:"invoices"`
		Lines    []core.Line    `json:"lines"`
	}

	// Option customizes a Store.
	Option func(*Store)
)

// WithIDGenerator replaces the uuid generator used for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns an empty ledger.
func New(opts ...Option) *Store {
	s := &Store{newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceholderNumber is the invoice number given to invoices created without
// one.
func PlaceholderNumber(id string) string {
	compact := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "INV-" + compact
}

// CreateInvoice validates the header and lines, then inserts them together.
// Blank lines are dropped. A positive discount amount is allocated over the
// new lines before insertion.
func (s *Store) CreateInvoice(header core.InvoiceHeader, lines []core.LineFields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, newLines, err := s.buildInvoice(header, lines, false)
	if err != nil {
		return "", err
	}
	s.invoices = append(s.invoices, inv)
	s.lines = append(s.lines, newLines...)
	s.version++
	return inv.ID, nil
}

// buildInvoice validates and assembles an invoice without touching the
// collections. When lenientUnits is set, unknown units fall back to the
// default unit instead of failing.
func (s *Store) buildInvoice(header core.InvoiceHeader, fields []core.LineFields, lenientUnits bool) (core.Invoice, []core.Line, error) {
	h := header.Normalize()
	if err := h.Validate(); err != nil {
		return core.Invoice{}, nil, err
	}

	id := s.newID()
	var lines []core.Line
	for _, f := range fields {
		if f.IsBlank() {
			continue
		}
		f = f.Normalize()
		if lenientUnits {
			if _, ok := core.ParseUnit(f.Unit); !ok {
				f.Unit = string(core.DefaultUnit)
			}
		}
		unit, err := f.Validate()
		if err != nil {
			return core.Invoice{}, nil, err
		}
		lines = append(lines, core.Line{
			ID:        s.newID(),
			InvoiceID: id,
			Item:      f.Item,
			Unit:      unit,
			Pricing:   f.Pricing,
		})
	}
	if len(lines) == 0 {
		return core.Invoice{}, nil, core.Invalid("lines", core.ErrNoItems)
	}

	if h.DiscountAmount.IsPositive() {
		alloc, err := core.AllocateDiscount(lines, h.DiscountAmount, nil)
		if err != nil {
			return core.Invoice{}, nil, err
		}
		lines = alloc.Lines
	}

	return newInvoice(id, h), lines, nil
}

func newInvoice(id string, h core.InvoiceHeader) core.Invoice {
	number := h.Number
	if number == "" {
		number = PlaceholderNumber(id)
	}
	return core.Invoice{
		ID:              id,
		Number:          number,
		IssueDate:       h.IssueDate,
		Supplier:        h.Supplier,
		WithholdingRate: h.WithholdingRate,
		DiscountAmount:  h.DiscountAmount,
	}
}

// UpdateInvoiceHeader replaces the header of invoice id. It reports false
// when no such invoice exists. Lines are left alone; use
// AllocateInvoiceDiscount to spread a new discount.
func (s *Store) UpdateInvoiceHeader(id string, patch core.InvoiceHeader) (bool, error) {
	h := patch.Normalize()
	if err := h.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.invoiceIndex(id)
	if i < 0 {
		return false, nil
	}
	s.invoices[i] = newInvoice(id, h)
	s.version++
	return true, nil
}

// PatchInvoiceHeader reads invoice id, builds its new header with merge and
// stores it, all under one lock. merge sees the current invoice and must not
// call back into the store. It reports false when the invoice does not exist.
func (s *Store) PatchInvoiceHeader(id string, merge func(core.Invoice) core.InvoiceHeader) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.invoiceIndex(id)
	if i < 0 {
		return false, nil
	}
	h := merge(s.invoices[i]).Normalize()
	if err := h.Validate(); err != nil {
		return false, err
	}
	s.invoices[i] = newInvoice(id, h)
	s.version++
	return true, nil
}

// CreateLine appends a line to an existing invoice.
func (s *Store) CreateLine(invoiceID string, fields core.LineFields) (string, error) {
	f := fields.Normalize()
	unit, err := f.Validate()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invoiceIndex(invoiceID) < 0 {
		return "", core.Invalid("invoice_id", core.ErrUnknownInvoice)
	}
	l := core.Line{ID: s.newID(), InvoiceID: invoiceID, Item: f.Item, Unit: unit, Pricing: f.Pricing}
	s.lines = append(s.lines, l)
	s.version++
	return l.ID, nil
}

// UpdateLine replaces the editable fields of a line. It reports false when
// the line does not exist.
func (s *Store) UpdateLine(lineID string, fields core.LineFields) (bool, error) {
	f := fields.Normalize()
	unit, err := f.Validate()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.lineIndex(lineID)
	if i < 0 {
		return false, nil
	}
	s.lines[i].Item = f.Item
	s.lines[i].Unit = unit
	s.lines[i].Pricing = f.Pricing
	s.version++
	return true, nil
}

// PatchLine is the line counterpart of PatchInvoiceHeader. It returns the
// stored line after the update.
func (s *Store) PatchLine(lineID string, merge func(core.Line) core.LineFields) (core.Line, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.lineIndex(lineID)
	if i < 0 {
		return core.Line{}, false, nil
	}
	f := merge(s.lines[i]).Normalize()
	unit, err := f.Validate()
	if err != nil {
		return core.Line{}, false, err
	}
	s.lines[i].Item = f.Item
	s.lines[i].Unit = unit
	s.lines[i].Pricing = f.Pricing
	s.version++
	return s.lines[i], true, nil
}

// DeleteLine removes a line. The owning invoice stays even when this was its
// last line.
func (s *Store) DeleteLine(lineID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.lineIndex(lineID)
	if i < 0 {
		return false
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.version++
	return true
}

// RenameSupplierEverywhere sets the supplier of every invoice whose supplier
// equals oldName exactly. It returns the number of invoices changed.
func (s *Store) RenameSupplierEverywhere(oldName, newName string) (int, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return 0, core.Invalid("supplier_name", core.ErrEmptySupplier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.invoices {
		if s.invoices[i].Supplier == oldName {
			s.invoices[i].Supplier = newName
			n++
		}
	}
	if n > 0 {
		s.version++
	}
	return n, nil
}

// RenameItemEverywhere sets the item of every line whose item equals oldName
// exactly. It returns the number of lines changed.
func (s *Store) RenameItemEverywhere(oldName, newName string) (int, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return 0, core.Invalid("item", core.ErrEmptyItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.lines {
		if s.lines[i].Item == oldName {
			s.lines[i].Item = newName
			n++
		}
	}
	if n > 0 {
		s.version++
	}
	return n, nil
}

// AllocateInvoiceDiscount stores amount as the invoice's lump discount and
// spreads it over the invoice's lines. It reports false when the invoice
// does not exist. A failed allocation changes nothing.
func (s *Store) AllocateInvoiceDiscount(invoiceID string, amount decimal.Decimal) (core.Allocation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.invoiceIndex(invoiceID)
	if i < 0 {
		return core.Allocation{}, false, nil
	}
	amount = core.NonNegative(amount)

	owned := func(l core.Line) bool { return l.InvoiceID == invoiceID }
	alloc, err := core.AllocateDiscount(s.lines, amount, owned)
	if err != nil {
		return core.Allocation{}, true, err
	}
	s.lines = alloc.Lines
	s.invoices[i].DiscountAmount = amount
	s.version++

	var mine []core.Line
	for _, l := range alloc.Lines {
		if owned(l) {
			mine = append(mine, l)
		}
	}
	alloc.Lines = mine
	return alloc, true, nil
}

// Invoice returns the invoice with the given id.
func (s *Store) Invoice(id string) (core.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.invoiceIndex(id)
	if i < 0 {
		return core.Invoice{}, false
	}
	return s.invoices[i], true
}

// Invoices returns every invoice in creation order.
func (s *Store) Invoices() []core.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Invoice(nil), s.invoices...)
}

// Lines returns the lines of an invoice in creation order.
func (s *Store) Lines(invoiceID string) []core.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesOf(invoiceID)
}

// Line returns the line with the given id.
func (s *Store) Line(id string) (core.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.lineIndex(id)
	if i < 0 {
		return core.Line{}, false
	}
	return s.lines[i], true
}

// Computed aggregates invoice id from its current lines.
func (s *Store) Computed(invoiceID string) (core.InvoiceComputed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.invoiceIndex(invoiceID)
	if i < 0 {
		return core.InvoiceComputed{}, false
	}
	return core.Aggregate(s.invoices[i], s.linesOf(invoiceID)), true
}

// Snapshot copies the whole ledger.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Version:  s.version,
		Invoices: append([]core.Invoice(nil), s.invoices...),
		Lines:    append([]core.Line(nil), s.lines...),
	}
}

// Version increases by one on every mutation that changed the ledger.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Restore replaces the ledger contents with snap. Ids are kept. Numeric
// fields are clamped. Duplicate ids and lines pointing at missing invoices
// reject the whole snapshot.
func (s *Store) Restore(snap Snapshot) error {
	invoices := make([]core.Invoice, 0, len(snap.Invoices))
	known := make(map[string]struct{}, len(snap.Invoices))
	for _, inv := range snap.Invoices {
		if inv.ID == "" {
			return fmt.Errorf("%w: invoice without id", ErrInvalidSnapshot)
		}
		if _, dup := known[inv.ID]; dup {
			return fmt.Errorf("%w: duplicate invoice %s", ErrInvalidSnapshot, inv.ID)
		}
		known[inv.ID] = struct{}{}
		inv.WithholdingRate = core.ClampPercent(inv.WithholdingRate)
		inv.DiscountAmount = core.NonNegative(inv.DiscountAmount)
		invoices = append(invoices, inv)
	}

	lines := make([]core.Line, 0, len(snap.Lines))
	seen := make(map[string]struct{}, len(snap.Lines))
	for _, l := range snap.Lines {
		if _, ok := known[l.InvoiceID]; !ok {
			return fmt.Errorf("%w: line %s references unknown invoice %s", ErrInvalidSnapshot, l.ID, l.InvoiceID)
		}
		if _, dup := seen[l.ID]; dup || l.ID == "" {
			return fmt.Errorf("%w: duplicate or empty line id %q", ErrInvalidSnapshot, l.ID)
		}
		seen[l.ID] = struct{}{}
		if u, ok := core.ParseUnit(string(l.Unit)); ok {
			l.Unit = u
		} else {
			l.Unit = core.DefaultUnit
		}
		l.Pricing = l.Pricing.Normalize()
		lines = append(lines, l)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = invoices
	s.lines = lines
	s.version++
	return nil
}

func (s *Store) linesOf(invoiceID string) []core.Line {
	var out []core.Line
	for _, l := range s.lines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out
}

func (s *Store) invoiceIndex(id string) int {
	for i := range s.invoices {
		if s.invoices[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) lineIndex(id string) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}
