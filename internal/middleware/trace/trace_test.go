package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"satinalma/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generated when absent", "", false},
		{"reused when safe", "client-42.a_b", true},
		{"replaced when unsafe", "bad id\nforged=1", false},
		{"replaced when too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			var logged bool
			m := NewMiddleware(nil, nil)
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				logged = log.FromContext(r.Context()).Component() == log.ComponentHTTP
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(http.MethodGet, "/rows", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			got := rr.Header().Get(HeaderRequestID)
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if (got == tt.incoming) != tt.wantSame {
				t.Fatalf("request id %q, incoming %q, wantSame %v", got, tt.incoming, tt.wantSame)
			}
			if !tt.wantSame && !strings.HasPrefix(got, "req_") {
				t.Fatalf("generated id %q lacks prefix", got)
			}
			if !logged {
				t.Fatal("request logger missing from context")
			}
			if rr.Code != http.StatusTeapot {
				t.Fatalf("status = %d", rr.Code)
			}
		})
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	}
	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Fatalf("TotalRequests = %d, want 3", got)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("GetRequestID = %q, want empty", id)
	}
}
