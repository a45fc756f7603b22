package csv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want rune
	}{
		{"a,b,c\n1,2,3", ','},
		{"a;b;c\n1,5;2;3", ';'},
		{"Tarih;Tedarikçi;Birim Fiyat\r\n", ';'},
		{"single", ','},
	}
	for _, tt := range tests {
		if got := SniffDelimiter([]byte(tt.in)); got != tt.want {
			t.Errorf("SniffDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadRecordsSemicolonWithBOM(t *testing.T) {
	in := "\ufeffTarih;Tedarikçi;Ürün;Birim Fiyat\n01.03.2026;Acme;Vida;2,50\n\n02.03.2026;Beta;\"Somun; M8\";1.250,00\n"
	recs, err := NewReader(strings.NewReader(in)).ReadRecords(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["Tarih"] != "01.03.2026" || recs[0]["Birim Fiyat"] != "2,50" {
		t.Fatalf("unexpected first record: %v", recs[0])
	}
	if recs[1]["Ürün"] != "Somun; M8" {
		t.Fatalf("quoted field not kept: %v", recs[1])
	}
}

func TestReadRecordsCommaShortRows(t *testing.T) {
	recs, err := Parse([]byte("date,supplierName,invoiceItem,qty\n2026-03-01,Acme,Bolt\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(recs) != 1 || recs[0]["qty"] != "" || recs[0]["invoiceItem"] != "Bolt" {
		t.Fatalf("unexpected records: %v", recs)
	}
}

func TestParseEmpty(t *testing.T) {
	recs, err := Parse([]byte(" \n"))
	if err != nil || recs != nil {
		t.Fatalf("empty input: recs=%v err=%v", recs, err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	header := []string{"item", "qty"}
	rows := [][]string{{"Bolt, M8", "2"}, {`say "hi"`, "1.5"}}
	if err := Encode(&buf, header, rows); err != nil {
		t.Fatalf("encode: %v", err)
	}
	recs, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(recs) != 2 || recs[0]["item"] != "Bolt, M8" || recs[1]["item"] != `say "hi"` {
		t.Fatalf("unexpected records: %v", recs)
	}
}

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(filepath.Join(dir, "out"), "export")
	w.now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) }

	path, err := w.WriteRows(context.Background(), []string{"a"}, [][]string{{"1"}})
	if err != nil {
		t.Fatalf("write rows: %v", err)
	}
	if filepath.Base(path) != "export-20261014-093000.000.csv" {
		t.Fatalf("unexpected path %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "a\n1\n" {
		t.Fatalf("unexpected content %q err=%v", b, err)
	}

	path, err = w.WriteSheet(context.Background(), "INV/1 x", []string{"a"}, nil)
	if err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	if filepath.Base(path) != "INV_1_x.csv" {
		t.Fatalf("unexpected sheet path %s", path)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "out"))
	if len(entries) != 2 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
