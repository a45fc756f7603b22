// Package core holds the pricing engine of the ledger: number parsing,
// per-line calculation, derived-field back-solving, lump discount allocation
// and invoice aggregation.
//
// Every function in this package is pure. Amounts, quantities and
// percentages are decimal.Decimal values; text only enters through
// ParseNumber.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// RawInput is numeric text as typed by a user, possibly invalid or
// half-finished. It is never stored on a record.
type RawInput string

// Value converts the raw text to a validated number.
func (r RawInput) Value() decimal.Decimal {
	return ParseNumber(string(r))
}

// IsBlank reports whether the input carries no characters besides spaces.
func (r RawInput) IsBlank() bool {
	return strings.TrimSpace(string(r)) == ""
}

// ParseNumber turns free text into a number. It never fails: empty or
// unparseable input yields zero.
//
// When both '.' and ',' occur, the one appearing last is the decimal
// separator. When only one kind occurs exactly once, with one to three
// characters before it and exactly three after it, it is read as a thousands
// separator ("3.856" is 3856). Every other single-kind case treats it as the
// decimal separator ("3,56" is 3.56).
//
// The thousands rule is a guess: a genuine "3.856" meaning three point eight
// five six is silently read as 3856.
//
//	ParseNumber("1.234,56") -> 1234.56
//	ParseNumber("1,234.56") -> 1234.56
//	ParseNumber("7,5")      -> 7.5
//	ParseNumber("abc")      -> 0
func ParseNumber(text string) decimal.Decimal {
	s := cleanNumeric(text)
	if s == "" {
		return decimal.Zero
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart, fracPart := splitDecimal(s)
	intPart = stripSeparators(intPart)
	fracPart = stripSeparators(fracPart)
	if intPart == "" {
		intPart = "0"
	}

	canonical := sign + intPart
	if fracPart != "" {
		canonical += "." + fracPart
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromFloat passes a finite float through; NaN and infinities become zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// Canonical renders d so that ParseNumber reads it back unchanged. Values
// whose plain form would trip the thousands rule ("123.456") get a trailing
// zero ("123.4560").
func Canonical(d decimal.Decimal) string {
	s := d.String()
	digits := strings.TrimPrefix(s, "-")
	if i := strings.IndexByte(digits, '.'); i >= 1 && i <= 3 && len(digits)-i-1 == 3 {
		s += "0"
	}
	return s
}

// cleanNumeric keeps digits and both separators, plus a '-' only when it is
// the first meaningful character.
func cleanNumeric(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitDecimal returns the integer and fractional segments of s, which holds
// only digits and separators.
func splitDecimal(s string) (string, string) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	if lastDot >= 0 && lastComma >= 0 {
		sep := lastDot
		if lastComma > lastDot {
			sep = lastComma
		}
		return s[:sep], s[sep+1:]
	}

	sepChar := "."
	sep := lastDot
	if lastComma >= 0 {
		sepChar = ","
		sep = lastComma
	}
	if sep < 0 {
		return s, ""
	}

	if strings.Count(s, sepChar) == 1 {
		before, after := s[:sep], s[sep+1:]
		if len(before) >= 1 && len(before) <= 3 && len(after) == 3 {
			return before + after, ""
		}
	}
	return s[:sep], s[sep+1:]
}

func stripSeparators(s string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(s)
}
