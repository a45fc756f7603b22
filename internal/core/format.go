package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatDisplay renders d for read-only display in the ledger locale:
// thousands grouped with '.', decimals after ','.
//
//	FormatDisplay(decimal.RequireFromString("1234567.891"), 2) -> "1.234.567,89"
//
// Editable fields must keep the user's raw text instead.
func FormatDisplay(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatPlain renders d rounded to places with '.' as decimal separator and
// no grouping, in a form ParseNumber reads back unchanged.
func FormatPlain(d decimal.Decimal, places int32) string {
	return Canonical(d.Round(places))
}
