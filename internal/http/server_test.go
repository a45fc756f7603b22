package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"satinalma/internal/core"
	"satinalma/internal/ledger"
	"satinalma/internal/services"
	"satinalma/internal/sheets/memory"
)

type invoiceResponse struct {
	ID        string               `json:"id"`
	InvoiceNo string               `json:"invoice_no"`
	Supplier  string               `json:"supplier_name"`
	Computed  core.InvoiceComputed `json:"computed"`
	Lines     []lineResponse       `json:"lines"`
}

type lineResponse struct {
	ID           string          `json:"id"`
	Item         string          `json:"item"`
	Unit         string          `json:"unit"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	UnitNet      decimal.Decimal `json:"unit_net"`
	TotalVatIncl decimal.Decimal `json:"total_vat_incl"`
}

func newTestServer(t *testing.T, opts Options, svcOpts ...services.Option) *Server {
	t.Helper()
	n := 0
	store := ledger.New(ledger.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	srv := NewServer(":0", services.NewLedgerService(store, svcOpts...), opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

const sampleInvoice = `{
	"invoice_no": "F-1",
	"date": "01.02.2026",
	"supplier_name": "Demir A.Ş.",
	"lines": [
		{"item": "Vida", "unit": "adet", "quantity": "2", "unit_price": "100", "discount_rate": 10, "vat_rate": "18"}
	]
}`

func createSample(t *testing.T, srv *Server) invoiceResponse {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/invoices", sampleInvoice)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[invoiceResponse](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("broker down") }})
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestCreateInvoice(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/invoices", sampleInvoice)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	inv := decode[invoiceResponse](t, rr)
	if rr.Header().Get("Location") != "/invoices/"+inv.ID {
		t.Fatalf("Location = %q", rr.Header().Get("Location"))
	}
	if len(inv.Lines) != 1 || inv.Lines[0].Unit != "Adet" {
		t.Fatalf("unexpected lines %+v", inv.Lines)
	}
	if !inv.Computed.TotalNet.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("total_net = %s, want 180", inv.Computed.TotalNet)
	}
	if !inv.Computed.TotalVatIncl.Equal(decimal.RequireFromString("212.4")) {
		t.Fatalf("total_vat_incl = %s, want 212.4", inv.Computed.TotalVatIncl)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
}

func TestCreateInvoiceErrors(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
	}{
		{"malformed json", `{"supplier_name":`, http.StatusBadRequest, ""},
		{"trailing data", `{"supplier_name":"A","lines":[{"item":"x"}]} {}`, http.StatusBadRequest, ""},
		{"bad number", `{"supplier_name":"A","discount_amount":true}`, http.StatusBadRequest, ""},
		{"missing supplier", `{"lines":[{"item":"Vida"}]}`, http.StatusUnprocessableEntity, "supplier_name"},
		{"no lines", `{"supplier_name":"Demir"}`, http.StatusUnprocessableEntity, "lines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/invoices", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantCode, rr.Body.String())
			}
			body := decode[errorBody](t, rr)
			if body.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", body.Field, tt.wantField)
			}
		})
	}
}

func TestGetAndListInvoices(t *testing.T) {
	srv := newTestServer(t, Options{})
	inv := createSample(t, srv)

	rr := do(t, srv, http.MethodGet, "/invoices/"+inv.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	if got := decode[invoiceResponse](t, rr); got.InvoiceNo != "F-1" {
		t.Fatalf("invoice_no = %q", got.InvoiceNo)
	}

	if rr := do(t, srv, http.MethodGet, "/invoices/missing", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/invoices", "")
	list := decode[struct {
		Invoices []invoiceResponse `json:"invoices"`
		Version  uint64            `json:"version"`
	}](t, rr)
	if len(list.Invoices) != 1 || len(list.Invoices[0].Lines) != 1 || list.Version == 0 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestUpdateInvoice(t *testing.T) {
	srv := newTestServer(t, Options{})
	inv := createSample(t, srv)

	rr := do(t, srv, http.MethodPatch, "/invoices/"+inv.ID, `{"supplier_name":"Demir Ltd"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[invoiceResponse](t, rr)
	if got.Supplier != "Demir Ltd" || got.InvoiceNo != "F-1" {
		t.Fatalf("patch not merged: %+v", got)
	}

	if rr := do(t, srv, http.MethodPatch, "/invoices/"+inv.ID, `{"supplier_name":"  "}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank supplier status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPatch, "/invoices/missing", `{"supplier_name":"X"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("missing status=%d", rr.Code)
	}
}

func TestLineLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})
	inv := createSample(t, srv)

	rr := do(t, srv, http.MethodPost, "/invoices/"+inv.ID+"/lines", `{"item":"Somun","quantity":"4","unit_price":"1.250,50"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create line status=%d body=%s", rr.Code, rr.Body.String())
	}
	line := decode[lineResponse](t, rr)
	if !line.UnitNet.Equal(decimal.RequireFromString("1250.5")) {
		t.Fatalf("unit_net = %s", line.UnitNet)
	}

	rr = do(t, srv, http.MethodPost, "/invoices/missing/lines", `{"item":"Somun"}`)
	if rr.Code != http.StatusUnprocessableEntity || decode[errorBody](t, rr).Field != "invoice_id" {
		t.Fatalf("unknown invoice status=%d body=%s", rr.Code, rr.Body.String())
	}

	// editing the net price solves the discount against the 100 unit price
	rr = do(t, srv, http.MethodPatch, "/lines/"+inv.Lines[0].ID, `{"unit_net":"80"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch line status=%d body=%s", rr.Code, rr.Body.String())
	}
	patched := decode[lineResponse](t, rr)
	if !patched.DiscountRate.Equal(decimal.NewFromInt(20)) || patched.Item != "Vida" {
		t.Fatalf("unexpected patched line %+v", patched)
	}

	if rr := do(t, srv, http.MethodPatch, "/lines/missing", `{"item":"x"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("patch missing status=%d", rr.Code)
	}
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodDelete, "/lines/"+line.ID, ""); rr.Code != http.StatusNoContent {
			t.Fatalf("delete #%d status=%d", i, rr.Code)
		}
	}
	if _, ok := srv.svc.Store().Line(line.ID); ok {
		t.Fatal("line still present after delete")
	}
}

func TestAllocateDiscount(t *testing.T) {
	srv := newTestServer(t, Options{})
	inv := createSample(t, srv)

	rr := do(t, srv, http.MethodPost, "/invoices/"+inv.ID+"/discount", `{"amount":"20"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[allocationView](t, rr)
	if !decimal.RequireFromString(got.Total).Equal(decimal.NewFromInt(20)) || len(got.Shares) != 1 {
		t.Fatalf("unexpected allocation %+v", got)
	}

	if rr := do(t, srv, http.MethodPost, "/invoices/missing/discount", `{"amount":"5"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("missing status=%d", rr.Code)
	}
}

func TestRename(t *testing.T) {
	srv := newTestServer(t, Options{})
	createSample(t, srv)

	rr := do(t, srv, http.MethodPost, "/rename/supplier", `{"from":"Demir A.Ş.","to":"Demir"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if n := decode[map[string]int](t, rr)["changed"]; n != 1 {
		t.Fatalf("changed = %d, want 1", n)
	}

	rr = do(t, srv, http.MethodPost, "/rename/item", `{"from":"Pul","to":"Rondela"}`)
	if n := decode[map[string]int](t, rr)["changed"]; n != 0 {
		t.Fatalf("changed = %d, want 0", n)
	}
}

func TestCalc(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/calc/line", `{"quantity":"2","unit_price":"1.234,50","vat_rate":18}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("calc status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[calcView](t, rr)
	if !got.Computed.TotalNet.Equal(decimal.NewFromInt(2469)) {
		t.Fatalf("total_net = %s, want 2469", got.Computed.TotalNet)
	}

	// a net price above the list price replaces it
	rr = do(t, srv, http.MethodPost, "/calc/line", `{"quantity":"2","unit_price":"1.234,50","unit_net":"1500"}`)
	got = decode[calcView](t, rr)
	if !got.Pricing.UnitPrice.Equal(decimal.NewFromInt(1500)) || !got.Computed.TotalNet.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("unexpected calc %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/calc/derive", `{"quantity":1,"unit_price":50,"vat_rate":10,"field":"unit_vat_incl","value":"66"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("derive status=%d body=%s", rr.Code, rr.Body.String())
	}
	got = decode[calcView](t, rr)
	if !got.Computed.UnitNet.Equal(decimal.NewFromInt(60)) || !got.Pricing.DiscountRate.IsZero() {
		t.Fatalf("unexpected derive %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/calc/derive", `{"field":"total_net","value":"1"}`)
	if rr.Code != http.StatusUnprocessableEntity || decode[errorBody](t, rr).Field != "total_net" {
		t.Fatalf("unknown field status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRowsAndExportCSV(t *testing.T) {
	srv := newTestServer(t, Options{})
	createSample(t, srv)

	rr := do(t, srv, http.MethodGet, "/rows?supplier=demir&sort=-total_net", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("rows status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rows := decode[rowsView](t, rr); len(rows.Rows) != 1 || rows.Rows[0].InvoiceItem != "Vida" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	rr = do(t, srv, http.MethodGet, "/rows?supplier=nobody", "")
	if rows := decode[rowsView](t, rr); len(rows.Rows) != 0 {
		t.Fatalf("filter kept %d rows", len(rows.Rows))
	}

	rr = do(t, srv, http.MethodGet, "/rows?sort=colour", "")
	if rr.Code != http.StatusUnprocessableEntity || decode[errorBody](t, rr).Field != "sort" {
		t.Fatalf("bad sort status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/export.csv", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export.csv status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "attachment") {
		t.Fatalf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], strings.Join(ledger.Header(), ",")) {
		t.Fatalf("unexpected csv %q", rr.Body.String())
	}
}

func TestExport(t *testing.T) {
	bare := newTestServer(t, Options{})
	if rr := do(t, bare, http.MethodPost, "/export", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("no writer status=%d", rr.Code)
	}

	sheet := memory.New()
	srv := newTestServer(t, Options{}, services.WithExportWriters(sheet, nil))
	createSample(t, srv)
	rr := do(t, srv, http.MethodPost, "/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if res := decode[services.ExportResult](t, rr); res.Rows != 1 || res.Ref == "" || res.Fallback {
		t.Fatalf("unexpected result %+v", res)
	}
	if sheet.Writes() != 1 {
		t.Fatalf("writes = %d", sheet.Writes())
	}
}

func TestImport(t *testing.T) {
	srv := newTestServer(t, Options{})
	body := "Tarih;Firma;Fatura No;Ürün;Miktar;Birim Fiyat;KDV\n" +
		"01.02.2026;Demir;F-9;Vida;2;10,50;20\n" +
		"01.02.2026;Demir;F-9;Somun;1;4;20\n"

	rr := do(t, srv, http.MethodPost, "/import", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[importView](t, rr)
	if got.Report.Invoices != 1 || got.Report.Lines != 2 || len(got.InvoiceIDs) != 1 {
		t.Fatalf("unexpected import %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/import", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("empty import status=%d", rr.Code)
	}
	if got := decode[importView](t, rr); got.InvoiceIDs == nil || len(got.InvoiceIDs) != 0 {
		t.Fatalf("unexpected empty import %+v", got)
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 1})

	if rr := do(t, srv, http.MethodPost, "/calc/line", `{}`); rr.Code != http.StatusOK {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/calc/line", `{}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	for i := 0; i < 3; i++ {
		if rr := do(t, srv, http.MethodGet, "/rows", ""); rr.Code != http.StatusOK {
			t.Fatalf("read #%d status=%d", i, rr.Code)
		}
	}
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff")
	}
}
