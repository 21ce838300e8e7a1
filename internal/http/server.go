// Package http serves the ledger as a JSON API over net/http.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetbook/internal/auth"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/middleware/ratelimit"
	"budgetbook/internal/middleware/security"
	"budgetbook/internal/middleware/trace"
	"budgetbook/internal/services"
)

// Ledger is the service surface the handlers drive. *services.LedgerService
// implements it.
type Ledger interface {
	View(ctx context.Context, f core.Filter) (services.LedgerView, error)
	Reload(ctx context.Context) (*services.Snapshot, error)
	AddTransaction(ctx context.Context, in services.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	AddCategory(ctx context.Context, name string) (core.Category, error)
	SaveBudget(ctx context.Context, in services.BudgetInput) (core.Budget, error)
	Ping(ctx context.Context) error
}

type Options struct {
	// JWTSecret enables bearer-token identity; empty disables the check.
	JWTSecret          string
	RateLimitPerMinute int
	// ReadTimeout and WriteTimeout default to 10s and 30s.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *log.Logger
	Now          func() time.Time
}

type Server struct {
	http.Server
	ledger      Ledger
	logger      *log.Logger
	now         func() time.Time
	started     time.Time
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		ledger:   ledger,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		now:      opts.Now,
		started:  opts.Now(),
		detector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("POST /api/ledger/reload", s.handleReload)
	mux.HandleFunc("POST /api/transactions", s.handleAddTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/categories", s.handleAddCategory)
	mux.HandleFunc("PUT /api/budget", s.handleSaveBudget)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.rateLimitKey, ratelimit.IsMutation, s.onRateLimited)(h)
	if opts.JWTSecret != "" {
		h = auth.Middleware(opts.JWTSecret, s.onUnauthenticated)(h)
	}
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(opts.Logger)(h)
	h = s.detector.Middleware(opts.Logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// rateLimitKey limits signed-in users by id and everyone else by address.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, ok := (auth.ContextIdentity{}).CurrentUser(r.Context()); ok {
		return "user:" + id
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery).
		WithClientIP(s.detector.ExtractClientIP(r)).
		ToSlice()...)
	ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w)
}

func (s *Server) onUnauthenticated(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusUnauthorized, CodeNotAuthenticated, "invalid or expired token").Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
