package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"duka/internal/cache"
	applog "duka/internal/log"
	"duka/internal/middleware/ratelimit"
	"duka/internal/middleware/security"
	"duka/internal/middleware/trace"
	"duka/internal/services"
	"duka/internal/state"
)

const (
	defaultRequestTimeout = 10 * time.Second
	readyTimeout          = 5 * time.Second
)

type Server struct {
	http.Server

	ledger     *services.LedgerService
	state      *state.Store
	logger     *applog.Logger
	structured *applog.StructuredLogger
	now        func() time.Time
	startedAt  time.Time
	timeout    time.Duration

	rateLimit  int
	detector   *security.Detector
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	cacheStats func() cache.Stats

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRateLimit sets the per-IP budget for write requests per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithCacheStats exposes view cache counters on /metrics.
func WithCacheStats(f func() cache.Stats) Option {
	return func(s *Server) { s.cacheStats = f }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, st *state.Store, opts ...Option) *Server {
	s := &Server{
		ledger:    ledger,
		state:     st,
		now:       time.Now,
		timeout:   defaultRequestTimeout,
		rateLimit: ratelimit.DefaultConfig().RequestsPerMinute,
		detector:  security.NewDetector(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	s.structured = applog.NewStructuredLogger(s.logger)
	s.startedAt = s.now()

	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: s.rateLimit,
		WritesOnly:        true,
	})
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.structured)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	mux.HandleFunc("PATCH /api/products/{id}", s.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)
	mux.HandleFunc("POST /api/stock-movements", s.handleStockMovement)

	mux.HandleFunc("GET /api/cash", s.handleListCash)
	mux.HandleFunc("POST /api/cash", s.handleCashIn)
	mux.HandleFunc("POST /api/cash/out", s.handleCashOut)
	mux.HandleFunc("GET /api/transactions/export", s.handleExportTransactions)

	mux.HandleFunc("GET /api/exchanges", s.handleListExchanges)
	mux.HandleFunc("POST /api/exchanges", s.handleCreateExchange)
	mux.HandleFunc("POST /api/exchanges/quote", s.handleQuoteExchange)

	mux.HandleFunc("GET /api/debts", s.handleListDebts)
	mux.HandleFunc("POST /api/debts", s.handleAddDebt)
	mux.HandleFunc("POST /api/debts/{id}/paid", s.handleMarkDebtPaid)
	mux.HandleFunc("DELETE /api/debts/{id}", s.handleDeleteDebt)

	return mux
}

// middleware wraps h, outermost first: tracing, request scoped logger,
// probe detection, security headers, then the write rate limit.
func (s *Server) middleware(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "too many requests, please try again later").Write(w)
	}

	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(s.logger.WithComponent(applog.ComponentSecurity).Slog())(h)
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = applog.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

// Shutdown stops background work and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requestContext bounds store calls made on behalf of one request.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// refreshState brings the snapshot up to date before a read. A failed load
// keeps the previous data, so the read is still served and marked stale.
func (s *Server) refreshState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.state.Refresh(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(ctx, "Serving stale data, refresh failed",
			applog.FieldError, err.Error(),
			applog.FieldErrorType, applog.ErrorType(err))
		w.Header().Set("X-Data-Stale", "true")
	}
}
