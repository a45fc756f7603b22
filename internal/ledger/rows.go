package ledger

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"satinalma/internal/core"
)

// Row is a line joined with its invoice header and every derived value.
type Row struct {
	InvoiceID string    `json:"invoice_id"`
	LineID    string    `json:"line_id"`
	Date      string    `json:"date"`
	Supplier  string    `json:"supplier_name"`
	InvoiceNo string    `json:"invoice_no"`
	Item      string    `json:"item"`
	Unit      core.Unit `json:"unit"`
	core.Pricing
	core.LineComputed
}

// Rows joins every line of snap to its invoice. Lines whose invoice is
// missing are skipped.
func Rows(snap Snapshot) []Row {
	byID := make(map[string]core.Invoice, len(snap.Invoices))
	for _, inv := range snap.Invoices {
		byID[inv.ID] = inv
	}
	out := make([]Row, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		inv, ok := byID[l.InvoiceID]
		if !ok {
			continue
		}
		out = append(out, Row{
			InvoiceID:    inv.ID,
			LineID:       l.ID,
			Date:         inv.IssueDate,
			Supplier:     inv.Supplier,
			InvoiceNo:    inv.Number,
			Item:         l.Item,
			Unit:         l.Unit,
			Pricing:      l.Pricing.Normalize(),
			LineComputed: l.Computed(),
		})
	}
	return out
}

// Filter selects rows. Text fields match case-insensitively as substrings;
// the date bounds are inclusive. Empty fields match everything.
type Filter struct {
	Supplier  string
	Item      string
	InvoiceNo string
	DateFrom  string
	DateTo    string
	// Query matches any text column.
	Query string
}

// IsZero reports whether f selects every row.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Apply returns the rows matching f, keeping their order.
func (f Filter) Apply(rows []Row) []Row {
	if f.IsZero() {
		return rows
	}
	m := newMatcher(f)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

type matcher struct {
	folder                         cases.Caser
	supplier, item, invoice, query string
	from, to                       string
}

func newMatcher(f Filter) *matcher {
	m := &matcher{folder: cases.Fold()}
	m.supplier = m.fold(f.Supplier)
	m.item = m.fold(f.Item)
	m.invoice = m.fold(f.InvoiceNo)
	m.query = m.fold(f.Query)
	m.from = core.NormalizeDate(f.DateFrom)
	m.to = core.NormalizeDate(f.DateTo)
	return m
}

func (m *matcher) fold(s string) string {
	return m.folder.String(strings.TrimSpace(s))
}

func (m *matcher) contains(s, sub string) bool {
	return sub == "" || strings.Contains(m.fold(s), sub)
}

func (m *matcher) match(r Row) bool {
	if !m.contains(r.Supplier, m.supplier) || !m.contains(r.Item, m.item) || !m.contains(r.InvoiceNo, m.invoice) {
		return false
	}
	if m.from != "" || m.to != "" {
		d := core.NormalizeDate(r.Date)
		if _, ok := core.ParseDate(d); !ok {
			return false
		}
		if m.from != "" && d < m.from {
			return false
		}
		if m.to != "" && d > m.to {
			return false
		}
	}
	if m.query != "" {
		return m.contains(r.Supplier, m.query) || m.contains(r.Item, m.query) ||
			m.contains(r.InvoiceNo, m.query) || m.contains(r.Date, m.query) ||
			m.contains(string(r.Unit), m.query)
	}
	return true
}

// SortKey names a row column.
type SortKey string

const (
	SortDate         SortKey = "date"
	SortSupplier     SortKey = "supplier_name"
	SortInvoiceNo    SortKey = "invoice_no"
	SortItem         SortKey = "item"
	SortQuantity     SortKey = "quantity"
	SortUnit         SortKey = "unit"
	SortUnitPrice    SortKey = "unit_price"
	SortDiscountRate SortKey = "discount_rate"
	SortUnitNet      SortKey = "unit_net"
	SortVATRate      SortKey = "vat_rate"
	SortUnitVatIncl  SortKey = "unit_vat_incl"
	SortTotalNet     SortKey = "total_net"
	SortTotalVatIncl SortKey = "total_vat_incl"
	SortVATAmount    SortKey = "vat_amount"
)

var (
	textKeys = map[SortKey]func(Row) string{
		SortDate:      func(r Row) string { return core.NormalizeDate(r.Date) },
		SortSupplier:  func(r Row) string { return r.Supplier },
		SortInvoiceNo: func(r Row) string { return r.InvoiceNo },
		SortItem:      func(r Row) string { return r.Item },
		SortUnit:      func(r Row) string { return string(r.Unit) },
	}
	numberKeys = map[SortKey]func(Row) decimal.Decimal{
		SortQuantity:     func(r Row) decimal.Decimal { return r.Quantity },
		SortUnitPrice:    func(r Row) decimal.Decimal { return r.UnitPrice },
		SortDiscountRate: func(r Row) decimal.Decimal { return r.DiscountRate },
		SortUnitNet:      func(r Row) decimal.Decimal { return r.UnitNet },
		SortVATRate:      func(r Row) decimal.Decimal { return r.VATRate },
		SortUnitVatIncl:  func(r Row) decimal.Decimal { return r.UnitVatIncl },
		SortTotalNet:     func(r Row) decimal.Decimal { return r.TotalNet },
		SortTotalVatIncl: func(r Row) decimal.Decimal { return r.TotalVatIncl },
		SortVATAmount:    func(r Row) decimal.Decimal { return r.VATAmount },
	}
)

// ParseSortKey accepts any column name that SortRows can order by.
func ParseSortKey(s string) (SortKey, bool) {
	k := SortKey(strings.TrimSpace(strings.ToLower(s)))
	_, text := textKeys[k]
	_, num := numberKeys[k]
	return k, text || num
}

// SortRows orders rows in place by key. The sort is stable; unknown keys
// leave rows unchanged.
func SortRows(rows []Row, key SortKey, desc bool) {
	var less func(a, b Row) int
	if get, ok := textKeys[key]; ok {
		folder := cases.Fold()
		less = func(a, b Row) int { return cmp.Compare(folder.String(get(a)), folder.String(get(b))) }
	} else if get, ok := numberKeys[key]; ok {
		less = func(a, b Row) int { return get(a).Cmp(get(b)) }
	} else {
		return
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

// RowTotals sums the monetary columns of a row set.
type RowTotals struct {
	Count        int             `json:"count"`
	TotalNet     decimal.Decimal `json:"total_net"`
	TotalVatIncl decimal.Decimal `json:"total_vat_incl"`
	VATAmount    decimal.Decimal `json:"vat_amount"`
}

// Totals sums rows.
func Totals(rows []Row) RowTotals {
	var t RowTotals
	for _, r := range rows {
		t.Count++
		t.TotalNet = t.TotalNet.Add(r.TotalNet)
		t.TotalVatIncl = t.TotalVatIncl.Add(r.TotalVatIncl)
		t.VATAmount = t.VATAmount.Add(r.VATAmount)
	}
	return t
}
