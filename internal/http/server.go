package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"satinalma/internal/log"
	"satinalma/internal/middleware/ratelimit"
	"satinalma/internal/middleware/security"
	"satinalma/internal/middleware/trace"
	"satinalma/internal/services"
)

// Options tunes a Server. The zero value is usable.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	// Ready reports whether dependencies are reachable; nil means always
	// ready.
	Ready func(context.Context) error
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// X-Forwarded-For is believed.
	TrustedProxies []string
}

type Server struct {
	http.Server
	svc      *services.LedgerService
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger
	ready    func(context.Context) error

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		svc:      svc,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		logger:   logger.WithComponent(log.ComponentHTTP),
		ready:    opts.Ready,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /invoices", s.handleCreateInvoice)
	mux.HandleFunc("GET /invoices", s.handleListInvoices)
	mux.HandleFunc("GET /invoices/{id}", s.handleGetInvoice)
	mux.HandleFunc("PATCH /invoices/{id}", s.handleUpdateInvoice)
	mux.HandleFunc("POST /invoices/{id}/discount", s.handleAllocateDiscount)
	mux.HandleFunc("POST /invoices/{id}/lines", s.handleCreateLine)
	mux.HandleFunc("PATCH /lines/{id}", s.handleUpdateLine)
	mux.HandleFunc("DELETE /lines/{id}", s.handleDeleteLine)

	mux.HandleFunc("POST /rename/supplier", s.handleRename(s.svc.RenameSupplier))
	mux.HandleFunc("POST /rename/item", s.handleRename(s.svc.RenameItem))

	mux.HandleFunc("POST /calc/line", handleCalcLine)
	mux.HandleFunc("POST /calc/derive", handleCalcDerive)

	mux.HandleFunc("GET /rows", s.handleRows)
	mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	mux.HandleFunc("POST /export", s.handleExport)
	mux.HandleFunc("POST /import", s.handleImport)

	limited := s.limiter.Middleware(detector.ExtractClientIP, ratelimit.MutatingOnly, s.onRateLimit)(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(detector.Middleware(limited))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
}

// Shutdown stops the limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "version": s.svc.Store().Version()})
}
