// Package http provides the JSON API over the ledger service.
//
// This file decodes request bodies and query strings into ledger types.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"satinalma/internal/core"
	"satinalma/internal/ledger"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 32 << 20
)

// errBadRequest marks bodies that are not valid JSON for the target type.
var errBadRequest = errors.New("malformed request body")

// Number accepts a JSON number or a string in either decimal convention
// ("1.234,56", "1234.56"). Unparseable strings read as zero.
type Number struct {
	decimal.Decimal
	Set bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*n = Number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number{Decimal: core.ParseNumber(s), Set: strings.TrimSpace(s) != ""}
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = Number{Decimal: d, Set: true}
	return nil
}

type (
	invoiceRequest struct {
		InvoiceNo       string        `json:"invoice_no"`
		Date            string        `json:"date"`
		Supplier        string        `json:"supplier_name"`
		WithholdingRate Number        `json:"withholding_rate"`
		DiscountAmount  Number        `json:"discount_amount"`
		Lines           []lineRequest `json:"lines"`
	}

	// lineRequest carries the source fields of a line. When unit_net or
	// unit_vat_incl is given, the discount rate (and possibly the unit
	// price) is solved from it, unit_net taking precedence.
	lineRequest struct {
		Item         string `json:"item"`
		Unit         string `json:"unit"`
		Quantity     Number `json:"quantity"`
		UnitPrice    Number `json:"unit_price"`
		DiscountRate Number `json:"discount_rate"`
		VATRate      Number `json:"vat_rate"`
		UnitNet      Number `json:"unit_net"`
		UnitVatIncl  Number `json:"unit_vat_incl"`
	}

	discountRequest struct {
		Amount Number `json:"amount"`
	}

	renameRequest struct {
		From string `json:"from"`
		To   string `json:"to"`
	}

	deriveRequest struct {
		lineRequest
		Field string `json:"field"`
		Value Number `json:"value"`
	}
)

func (r invoiceRequest) header() core.InvoiceHeader {
	return core.InvoiceHeader{
		Number:          sanitizeInput(r.InvoiceNo),
		IssueDate:       sanitizeInput(r.Date),
		Supplier:        sanitizeInput(r.Supplier),
		WithholdingRate: r.WithholdingRate.Decimal,
		DiscountAmount:  r.DiscountAmount.Decimal,
	}
}

func (r invoiceRequest) lines() []core.LineFields {
	out := make([]core.LineFields, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, l.fields())
	}
	return out
}

// base returns the source fields as sent, clamped.
func (l lineRequest) base() core.Pricing {
	return core.Pricing{
		Quantity:     l.Quantity.Decimal,
		UnitPrice:    l.UnitPrice.Decimal,
		DiscountRate: l.DiscountRate.Decimal,
		VATRate:      l.VATRate.Decimal,
	}.Normalize()
}

func (l lineRequest) pricing() core.Pricing {
	p := l.base()
	switch {
	case l.UnitNet.Set:
		p = core.DeriveFromUnitNet(p, l.UnitNet.Decimal)
	case l.UnitVatIncl.Set:
		p = core.DeriveFromUnitVatIncl(p, l.UnitVatIncl.Decimal)
	}
	return p
}

func (l lineRequest) fields() core.LineFields {
	return core.LineFields{
		Item:    sanitizeInput(l.Item),
		Unit:    sanitizeInput(l.Unit),
		Pricing: l.pricing(),
	}
}

// decodeJSON reads a single JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", errBadRequest)
	}
	return nil
}

// parseFilter reads the row filter from the query string.
func parseFilter(q url.Values) ledger.Filter {
	get := func(k string) string { return sanitizeInput(q.Get(k)) }
	return ledger.Filter{
		Supplier:  get("supplier"),
		Item:      get("item"),
		InvoiceNo: get("invoice_no"),
		DateFrom:  get("from"),
		DateTo:    get("to"),
		Query:     get("q"),
	}
}

// parseSort reads sort and desc from the query string. An unknown sort key
// is a validation error.
func parseSort(q url.Values) (ledger.SortKey, bool, error) {
	raw := strings.TrimSpace(q.Get("sort"))
	if raw == "" {
		return "", false, nil
	}
	desc := false
	if strings.HasPrefix(raw, "-") {
		raw, desc = raw[1:], true
	}
	if v := q.Get("desc"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			desc = b
		}
	}
	key, ok := ledger.ParseSortKey(raw)
	if !ok {
		return "", false, core.Invalid("sort", fmt.Errorf("unknown sort column %q", raw))
	}
	return key, desc, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
