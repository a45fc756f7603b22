package core

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3.856", "3856"},
		{"3,56", "3.56"},
		{"7,5", "7.5"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1234.5678", "1234.5678"},
		{"12.3456", "12.3456"},
		{"1234,567", "1234.567"},
		{",5", "0.5"},
		{"-12,5", "-12.5"},
		{" 165 TL ", "165"},
		{"12-3", "123"},
		{"abc", "0"},
		{"", "0"},
		{"   ", "0"},
		{"-", "0"},
		{".", "0"},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseNumber(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRawInput(t *testing.T) {
	if !RawInput("  ").IsBlank() {
		t.Fatalf("expected blank input")
	}
	if RawInput("7,5").IsBlank() {
		t.Fatalf("expected non-blank input")
	}
	if got := RawInput("7,5").Value(); !got.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("unexpected value: %s", got)
	}
}

func TestFromFloat(t *testing.T) {
	if got := FromFloat(math.NaN()); !got.IsZero() {
		t.Fatalf("NaN should map to 0, got %s", got)
	}
	if got := FromFloat(math.Inf(-1)); !got.IsZero() {
		t.Fatalf("-Inf should map to 0, got %s", got)
	}
	if got := FromFloat(2.5); !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("finite value should pass through, got %s", got)
	}
}

func TestParseNumberIdempotentOnCanonical(t *testing.T) {
	inputs := []string{"3.856", "3,56", "123.4567", "-0,125", "1.234,5", "999", "0,001"}
	for _, in := range inputs {
		first := ParseNumber(in)
		again := ParseNumber(Canonical(first))
		if !again.Equal(first) {
			t.Errorf("%q: parse(canonical(%s)) = %s", in, first, again)
		}
	}

	// Plain rendering of these would read as thousands.
	for _, s := range []string{"123.456", "-1.5", "12.345", "0.125"} {
		d := decimal.RequireFromString(s)
		if got := ParseNumber(Canonical(d)); !got.Equal(d) {
			t.Errorf("Canonical(%s) = %q parses back as %s", d, Canonical(d), got)
		}
	}
}

func TestFormatDisplay(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		want   string
	}{
		{"1234567.891", 2, "1.234.567,89"},
		{"999", 2, "999,00"},
		{"1000", 0, "1.000"},
		{"-1234.5", 2, "-1.234,50"},
		{"-0.001", 2, "0,00"},
		{"0", 2, "0,00"},
	}
	for _, tt := range tests {
		if got := FormatDisplay(decimal.RequireFromString(tt.in), tt.places); got != tt.want {
			t.Errorf("FormatDisplay(%s, %d) = %q, want %q", tt.in, tt.places, got, tt.want)
		}
	}
}

func TestFormatPlain(t *testing.T) {
	if got := FormatPlain(decimal.RequireFromString("3762.004"), 2); got != "3762" {
		t.Fatalf("unexpected plain value: %q", got)
	}
	if got := FormatPlain(decimal.RequireFromString("12.34567"), 3); got != "12.3460" {
		t.Fatalf("unexpected plain value: %q", got)
	}
	if got := ParseNumber(FormatPlain(decimal.RequireFromString("156.75"), 2)); !got.Equal(decimal.RequireFromString("156.75")) {
		t.Fatalf("plain value should parse back, got %s", got)
	}
}
