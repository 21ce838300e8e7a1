package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/services"
)

// mutationResponse carries the stored record and the post-reload view for
// the request's filter.
type mutationResponse struct {
	Transaction *core.Transaction    `json:"transaction,omitempty"`
	Category    *core.Category       `json:"category,omitempty"`
	Budget      *core.Budget         `json:"budget,omitempty"`
	Deleted     string               `json:"deleted,omitempty"`
	View        *services.LedgerView `json:"view,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Payload(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 while the ledger store is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
	}
	if err := s.ledger.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["store"] = "failed"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	NewJSONResponse().Status(code).Payload(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	secMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	writeMetric(w, "http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	writeMetric(w, "rate_limit_hits_total", "counter", "Mutations rejected by the rate limiter", limitMetrics.TotalHits)
	writeMetric(w, "rate_limit_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	writeMetric(w, "suspicious_requests_blocked_total", "counter", "Requests blocked as probes", secMetrics.BlockedRequests)
	writeMetric(w, "uptime_seconds", "gauge", "Server uptime in seconds", int64(s.now().Sub(s.started).Seconds()))
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
}

// handleOptions lists the year and month selector values and the default filter.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	NewJSONResponse().Payload(map[string]any{
		"years":          core.YearOptions(now),
		"months":         core.MonthOptions(),
		"default_filter": core.DefaultFilter(now),
	}).Write(w)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	view, err := s.ledger.View(r.Context(), f)
	if err != nil {
		s.fail(w, r, "Ledger view failed", err)
		return
	}
	NewJSONResponse().Payload(view).Write(w)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	snap, err := s.ledger.Reload(r.Context())
	if err != nil {
		s.fail(w, r, "Ledger reload failed", err)
		return
	}
	NewJSONResponse().Payload(snap.View(f)).Write(w)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorFor(err).Write(w)
		return
	}

	tx, err := s.ledger.AddTransaction(r.Context(), req.input())
	if err != nil && !isReloadFailure(err) {
		s.fail(w, r, "Add transaction failed", err)
		return
	}
	s.respondMutation(w, r, http.StatusCreated, f, mutationResponse{Transaction: &tx}, err)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	id := r.PathValue("id")

	err = s.ledger.DeleteTransaction(r.Context(), id)
	if err != nil && !isReloadFailure(err) {
		s.fail(w, r, "Delete transaction failed", err)
		return
	}
	s.respondMutation(w, r, http.StatusOK, f, mutationResponse{Deleted: id}, err)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorFor(err).Write(w)
		return
	}

	c, err := s.ledger.AddCategory(r.Context(), sanitizeInput(req.Name))
	if err != nil && !isReloadFailure(err) {
		s.fail(w, r, "Add category failed", err)
		return
	}
	s.respondMutation(w, r, http.StatusCreated, f, mutationResponse{Category: &c}, err)
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorFor(err).Write(w)
		return
	}

	b, err := s.ledger.SaveBudget(r.Context(), req.input())
	if err != nil && !isReloadFailure(err) {
		s.fail(w, r, "Save budget failed", err)
		return
	}
	s.respondMutation(w, r, http.StatusOK, f, mutationResponse{Budget: &b}, err)
}

// respondMutation answers a committed mutation. When the reload that follows
// it failed (reloadErr), the change still stands: the record is returned
// without a view under a 502.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, status int, f core.Filter, resp mutationResponse, reloadErr error) {
	if reloadErr != nil {
		s.logger.ErrorContext(r.Context(), "Mutation saved but reload failed", log.FieldError, reloadErr)
		NewJSONResponse().Status(http.StatusBadGateway).Payload(struct {
			errorBody
			mutationResponse
		}{
			errorBody:        errorBody{Error: "change saved but the ledger could not be reloaded", Code: CodeReloadFailed},
			mutationResponse: resp,
		}).Write(w)
		return
	}

	view, err := s.ledger.View(r.Context(), f)
	if err != nil {
		s.fail(w, r, "Ledger view after mutation failed", err)
		return
	}
	resp.View = &view
	NewJSONResponse().Status(status).Payload(resp).Write(w)
}

// isReloadFailure tells a committed mutation whose reload failed apart from
// one the service refused.
func isReloadFailure(err error) bool {
	var re *services.ReloadError
	return errors.As(err, &re)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	resp := errorFor(err)
	switch {
	case resp.statusCode >= 500:
		s.logger.ErrorContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	default:
		s.logger.DebugContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	resp.Write(w)
}
