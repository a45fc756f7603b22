package importer

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"satinalma/internal/core"
	"satinalma/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalizeHeader(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Tedarikçi Adı", "tedarikciadi"},
		{"  Ürün  ", "urun"},
		{"İskonto (%)", "iskonto"},
		{"KDV Dahil Birim Fiyat (₺)", "kdvdahilbirimfiyat"},
		{"unitVatIncl", "unitvatincl"},
		{"Fatura_No.", "faturano"},
		{"ŞİRKET", "sirket"},
	}
	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchHeader(t *testing.T) {
	tests := []struct {
		in   string
		want Field
	}{
		{"Tarih", FieldDate},
		{"supplierName", FieldSupplier},
		{"Fatura No", FieldInvoiceNo},
		{"Malzeme", FieldItem},
		{"Miktar", FieldQuantity},
		{"Birim", FieldUnit},
		{"Birim Fiyat", FieldUnitPrice},
		{"İskonto Oranı", FieldDiscountRate},
		{"KDV %", FieldVATRate},
		{"Net Birim Fiyat", FieldUnitNet},
		{"KDV'li Birim Fiyat", FieldUnitVatIncl},
		{"Tevkifat", FieldWithholding},
	}
	for _, tt := range tests {
		got, ok := MatchHeader(tt.in)
		if !ok || got != tt.want {
			t.Errorf("MatchHeader(%q) = %q %v, want %q", tt.in, got, ok, tt.want)
		}
	}
	if _, ok := MatchHeader("totalNet"); ok {
		t.Errorf("computed columns must not map to a source field")
	}
}

func TestBuildGroupsAndSkips(t *testing.T) {
	records := []map[string]string{
		{"Tarih": "01.03.2026", "Tedarikçi": "Acme", "Fatura No": "F-1", "Ürün": "Vida", "Miktar": "10", "Birim Fiyat": "2,5", "KDV": "20"},
		{"Tarih": "2026-03-01", "Tedarikçi": "Acme", "Fatura No": "F-1", "Ürün": "Somun", "Miktar": "4", "Birim Fiyat": "1", "KDV": "20"},
		{"Tarih": "02.03.2026", "Tedarikçi": "Beta", "Ürün": "Kablo", "Miktar": "1", "Birim Fiyat": "100"},
		{"Tarih": "02.03.2026", "Tedarikçi": "Beta", "Ürün": "Kablo", "Miktar": "2", "Birim Fiyat": "100"},
		{"Tarih": "", "Tedarikçi": "Beta", "Ürün": "Priz"},
		{"Tarih": "02.03.2026", "Tedarikçi": " ", "Ürün": "Priz"},
		{"Tarih": "02.03.2026", "Tedarikçi": "Beta", "Ürün": ""},
	}

	batch, rep, err := New().Build(records)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := Report{Rows: 7, Skipped: 3, Invoices: 3, Lines: 4}
	if rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}

	first := batch.Invoices[0]
	if first.Header.Number != "F-1" || first.Header.IssueDate != "2026-03-01" || len(first.Lines) != 2 {
		t.Fatalf("unexpected first invoice: %+v", first)
	}
	if !first.Lines[0].UnitPrice.Equal(dec("2.5")) {
		t.Fatalf("unit price = %s", first.Lines[0].UnitPrice)
	}
	if batch.Invoices[1].Header.Supplier != "Beta" || len(batch.Invoices[1].Lines) != 1 {
		t.Fatalf("rows without invoice number should be separate invoices: %+v", batch.Invoices[1])
	}
}

func TestBuildBackfillsFromManualPrices(t *testing.T) {
	records := []map[string]string{
		{"date": "2026-03-01", "supplier": "Acme", "item": "A", "qty": "1", "unitPrice": "200", "unitNet": "150"},
		{"date": "2026-03-01", "supplier": "Acme", "item": "B", "qty": "1", "unitPrice": "100", "vatRate": "20", "unitVatIncl": "96"},
		{"date": "2026-03-01", "supplier": "Acme", "item": "C", "qty": "1", "unitPrice": "100", "unitNet": "250"},
		{"date": "2026-03-01", "supplier": "Acme", "item": "D", "qty": "3", "unitPrice": "3", "discountRate": "33.3333", "unitNet": "2"},
	}
	batch, _, err := New().Build(records)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	lines := make([]core.LineFields, 0, 4)
	for _, inv := range batch.Invoices {
		lines = append(lines, inv.Lines...)
	}

	if !lines[0].DiscountRate.Equal(dec("25")) {
		t.Fatalf("A discount = %s, want 25", lines[0].DiscountRate)
	}
	if !lines[1].DiscountRate.Equal(dec("20")) {
		t.Fatalf("B discount = %s, want 20", lines[1].DiscountRate)
	}
	if !lines[2].UnitPrice.Equal(dec("250")) || !lines[2].DiscountRate.IsZero() {
		t.Fatalf("C should raise the unit price: %+v", lines[2])
	}
	if !lines[3].DiscountRate.Equal(dec("33.3333")) {
		t.Fatalf("D matches at two places and must keep its rate, got %s", lines[3].DiscountRate)
	}
}

func TestBuildUnknownUnitFallsBack(t *testing.T) {
	batch, _, err := New().Build([]map[string]string{
		{"date": "2026-03-01", "supplier": "Acme", "item": "A", "unit": "furlong"},
		{"date": "2026-03-01", "supplier": "Acme", "item": "B", "unit": "kg"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if u := batch.Invoices[0].Lines[0].Unit; u != string(core.DefaultUnit) {
		t.Fatalf("unit = %q, want default", u)
	}
	if u := batch.Invoices[1].Lines[0].Unit; u != "kg" {
		t.Fatalf("unit = %q, want kg", u)
	}
}

func TestBuildMaxRows(t *testing.T) {
	records := make([]map[string]string, 3)
	_, _, err := New(WithMaxRows(2)).Build(records)
	if !errors.Is(err, ErrTooManyRows) {
		t.Fatalf("expected ErrTooManyRows, got %v", err)
	}
}

func TestHeaderCacheIsUsed(t *testing.T) {
	im := New(WithHeaderCacheSize(8))
	rec := map[string]string{"date": "2026-03-01", "supplier": "Acme", "item": "A"}
	for i := 0; i < 3; i++ {
		if _, _, err := im.Build([]map[string]string{rec}); err != nil {
			t.Fatalf("build: %v", err)
		}
	}
	st := im.HeaderCacheStats()
	if st.Misses != 3 || st.Hits != 6 {
		t.Fatalf("unexpected cache stats: %+v", st)
	}
}

func TestBuildCommitsIntoStore(t *testing.T) {
	batch, _, err := New().Build([]map[string]string{
		{"date": "2026-03-01", "supplierName": "Acme", "invoiceNo": "F-9", "invoiceItem": "A", "qty": "2", "unitPrice": "10", "vatRate": "20"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s := ledger.New()
	ids, err := s.Commit(batch)
	if err != nil || len(ids) != 1 {
		t.Fatalf("commit: ids=%v err=%v", ids, err)
	}
	c, _ := s.Computed(ids[0])
	if !c.TotalVatIncl.Equal(dec("24")) {
		t.Fatalf("total = %s, want 24", c.TotalVatIncl)
	}
}
