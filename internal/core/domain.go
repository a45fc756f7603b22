package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Unit is a unit of measure from a fixed set.
type Unit string

const (
	UnitPiece   Unit = "Adet"
	UnitKg      Unit = "Kg"
	UnitGram    Unit = "Gr"
	UnitLitre   Unit = "Lt"
	UnitMetre   Unit = "M"
	UnitSquareM Unit = "M2"
	UnitCubicM  Unit = "M3"
	UnitPack    Unit = "Paket"
	UnitBox     Unit = "Koli"
	UnitTonne   Unit = "Ton"
	UnitHour    Unit = "Saat"
)

// DefaultUnit is used when no unit is given.
const DefaultUnit = UnitPiece

// Units lists every accepted unit in display order.
func Units() []Unit {
	return []Unit{UnitPiece, UnitKg, UnitGram, UnitLitre, UnitMetre, UnitSquareM, UnitCubicM, UnitPack, UnitBox, UnitTonne, UnitHour}
}

// ParseUnit matches s case-insensitively against the unit set. Blank input
// yields DefaultUnit.
func ParseUnit(s string) (Unit, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultUnit, true
	}
	for _, u := range Units() {
		if strings.EqualFold(s, string(u)) {
			return u, true
		}
	}
	return "", false
}

type (
	// Invoice is a supplier invoice header.
	Invoice struct {
		ID              string          `json:"id"`
		Number          string          `json:"invoice_no"`
		IssueDate       string          `json:"date"`
		Supplier        string          `json:"supplier_name"`
		WithholdingRate decimal.Decimal `json:"withholding_rate"`
		DiscountAmount  decimal.Decimal `json:"discount_amount"`
	}

	// Line is one purchased item on an invoice.
	Line struct {
		ID        string `json:"id"`
		InvoiceID string `json:"invoice_id"`
		Item      string `json:"item"`
		Unit      Unit   `json:"unit"`
		Pricing
	}

	// InvoiceHeader carries the editable header fields.
	InvoiceHeader struct {
		Number          string
		IssueDate       string
		Supplier        string
		WithholdingRate decimal.Decimal
		DiscountAmount  decimal.Decimal
	}

	// LineFields carries the editable fields of a line.
	LineFields struct {
		Item string
		Unit string
		Pricing
	}
)

// Computed derives the line's monetary figures.
func (l Line) Computed() LineComputed {
	return ComputeLine(l.Pricing)
}

// Normalize trims text and clamps the numeric header fields.
func (h InvoiceHeader) Normalize() InvoiceHeader {
	return InvoiceHeader{
		Number:          strings.TrimSpace(h.Number),
		IssueDate:       NormalizeDate(h.IssueDate),
		Supplier:        strings.TrimSpace(h.Supplier),
		WithholdingRate: ClampPercent(h.WithholdingRate),
		DiscountAmount:  NonNegative(h.DiscountAmount),
	}
}

// Validate checks the header after normalization.
func (h InvoiceHeader) Validate() error {
	if strings.TrimSpace(h.Supplier) == "" {
		return Invalid("supplier_name", ErrEmptySupplier)
	}
	return nil
}

// Normalize trims text and clamps the pricing fields. The unit text is
// trimmed but not matched.
func (f LineFields) Normalize() LineFields {
	return LineFields{
		Item:    strings.TrimSpace(f.Item),
		Unit:    strings.TrimSpace(f.Unit),
		Pricing: f.Pricing.Normalize(),
	}
}

// Validate checks a normalized line and resolves its unit.
func (f LineFields) Validate() (Unit, error) {
	if f.Item == "" {
		return "", Invalid("item", ErrEmptyItem)
	}
	u, ok := ParseUnit(f.Unit)
	if !ok {
		return "", Invalid("unit", ErrInvalidUnit)
	}
	return u, nil
}

// IsBlank reports whether the line has no item description.
func (f LineFields) IsBlank() bool {
	return strings.TrimSpace(f.Item) == ""
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "02/01/2006", "2.1.2006", "2006/01/02"}

// NormalizeDate rewrites a recognised calendar date as YYYY-MM-DD. Text in
// any other shape is kept as trimmed.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if t, ok := ParseDate(s); ok {
		return t.Format("2006-01-02")
	}
	return s
}

// ParseDate parses s with the accepted date layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
