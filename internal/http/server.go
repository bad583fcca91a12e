package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Config holds the server settings that do not come from the services.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *log.Logger
}

// Server serves the analytics API over net/http.
type Server struct {
	http.Server
	report *services.ReportService
	ledger *services.LedgerService
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, report *services.ReportService, ledger *services.LedgerService) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		report:           report,
		ledger:           ledger,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		started:          time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/summary", s.handleSummary)
	api.HandleFunc("GET /api/aggregates", s.handleAggregates)
	api.HandleFunc("GET /api/yoy", s.handleYoY)
	api.HandleFunc("GET /api/yoy/years", s.handleYears)
	api.HandleFunc("GET /api/compare", s.handleCompare)
	api.HandleFunc("GET /api/forecast", s.handleForecast)
	api.HandleFunc("GET /api/anomalies", s.handleAnomalies)
	api.HandleFunc("GET /api/alerts", s.handleAlerts)
	api.HandleFunc("GET /api/budgets", s.handleBudgets)
	api.HandleFunc("PUT /api/budgets", s.handleSetBudget)
	api.HandleFunc("DELETE /api/budgets", s.handleDeleteBudget)
	api.HandleFunc("GET /api/waterfall", s.handleWaterfall)
	api.HandleFunc("GET /api/waterfall/categories", s.handleCategoryWaterfall)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("POST /api/import", s.handleImport)
	api.HandleFunc("GET /api/backup", s.handleExport)
	api.HandleFunc("POST /api/transactions", s.handleAddTransactions)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", limited(api))

	headers := security.NewHeadersMiddleware(security.APIHeadersConfig())
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           headers.Middleware(s.traceMiddleware.Middleware(s.withDetection(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// withDetection logs requests that look like probing. They are still served.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// fail writes the error response for err, logging server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError && resp.statusCode != http.StatusNotImplemented {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
	}
	resp.Write(w)
}

// Shutdown stops background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	})
	return err
}
