package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
)

// fakeSheets serves the subset of the Sheets v4 API the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    []string
	values  map[string][][]any
	cleared []string
	added   []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		sheets := make([]map[string]any, 0, len(f.tabs))
		for _, t := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.tabs = append(f.tabs, rq.AddSheet.Properties.Title)
			f.added = append(f.added, rq.AddSheet.Properties.Title)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear")
		f.cleared = append(f.cleared, rng)
		_ = json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		var body struct {
			Values [][]any `json:"values"`
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		f.values[rng] = body.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng, "updatedRows": len(body.Values)})
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.values[rng]})
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1", SheetName: "Ledger"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadRecords(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{
		"'Ledger'": {
			{"Tarih", "Tedarikçi", "Ürün", "Miktar"},
			{"2026-03-01", "Acme", "Vida", 10},
			{"", "", "", ""},
			{"2026-03-02", "Beta", "Somun"},
		},
	}}
	c := newTestClient(t, fake)

	recs, err := c.ReadRecords(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(recs), recs)
	}
	if recs[0]["Miktar"] != "10" || recs[1]["Miktar"] != "" || recs[1]["Tedarikçi"] != "Beta" {
		t.Fatalf("unexpected records: %v", recs)
	}
}

func TestWriteRowsClearsThenUpdates(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{}}
	c := newTestClient(t, fake)

	ref, err := c.WriteRows(context.Background(), []string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if ref != "'Ledger'!A1" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "'Ledger'" {
		t.Fatalf("expected the tab to be cleared first: %v", fake.cleared)
	}
	if got := fake.values["'Ledger'!A1"]; len(got) != 3 || got[2][1] != "4" {
		t.Fatalf("unexpected written values: %v", got)
	}
}

func TestWriteSheetAddsMissingTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"Ledger"}, values: map[string][][]any{}}
	c := newTestClient(t, fake)

	if _, err := c.WriteSheet(context.Background(), "INV-1", []string{"a"}, [][]string{{"1"}}); err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	if _, err := c.WriteSheet(context.Background(), "INV-1", []string{"a"}, [][]string{{"2"}}); err != nil {
		t.Fatalf("second write sheet: %v", err)
	}
	if len(fake.added) != 1 || fake.added[0] != "INV-1" {
		t.Fatalf("tab should be added once: %v", fake.added)
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's tab"); got != "'Bob''s tab'" {
		t.Fatalf("unexpected quoting: %s", got)
	}
}
