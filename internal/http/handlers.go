package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once the store answers a full load.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.state.Refresh(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		snap := s.state.Snapshot()
		checks["store"] = map[string]any{
			"status":       "ok",
			"generation":   snap.Generation,
			"products":     len(snap.Products),
			"transactions": len(snap.Transactions),
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().
		Status(httpStatus).
		Data(map[string]any{
			"status":    status,
			"timestamp": s.now().Format(time.RFC3339),
			"checks":    checks,
		}).
		Write(w)
}

// handleMetrics provides request, security and cache counters in the
// Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	snap := s.state.Snapshot()

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	w.WriteHeader(http.StatusOK)
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("invalid_forwarded_ip_total", "Forwarded headers that held no valid IP", "counter", securityMetrics.InvalidIPAttempts)
	metric("state_generation", "Generation of the loaded state snapshot", "gauge", snap.Generation)
	metric("state_data_version", "Changes seen in the loaded data", "gauge", snap.Version)
	metric("products_total", "Products in the loaded snapshot", "gauge", len(snap.Products))
	metric("transactions_total", "Transactions in the loaded snapshot", "gauge", len(snap.Transactions))
	if s.cacheStats != nil {
		cs := s.cacheStats()
		metric("view_cache_entries", "Cached transaction views", "gauge", cs.Size)
		metric("view_cache_hits_total", "View cache hits", "counter", cs.Hits)
		metric("view_cache_misses_total", "View cache misses", "counter", cs.Misses)
	}
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(s.now().Sub(s.startedAt).Seconds()))
}

// handleDashboard serves the home screen summary.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.refreshState(w, r)
	OK(s.state.Dashboard(s.now())).Write(w)
}
