package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once the data source answers a snapshot.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := map[string]string{}
	status, code := "ready", http.StatusOK

	ds, err := s.report.Dataset(ctx)
	if err != nil {
		checks["data_source"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["data_source"] = "ok"
	}
	// Publishing is best-effort, so a degraded feed does not fail readiness.
	checks["change_feed"] = s.ledger.ChangeFeedStatus()

	body := map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if ds != nil {
		body["revision"] = ds.Revision
		body["transactions"] = len(ds.Transactions)
		body["dropped_records"] = ds.Dropped
	}
	NewJSONResponse().Status(code).Body(body).Write(w)
}

// handleMetrics provides server metrics in a Prometheus-like text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	cacheStats := s.report.Cache().Stats()

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	w.WriteHeader(http.StatusOK)
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	metric("report_cache_entries", "Current report cache entries", "gauge", cacheStats.Size)
	metric("report_cache_hits_total", "Report cache hits", "counter", cacheStats.Hits)
	metric("report_cache_misses_total", "Report cache misses", "counter", cacheStats.Misses)
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.started).Seconds()))
}
