package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"zetafin/internal/accessor"
	"zetafin/internal/log"
	"zetafin/internal/middleware/ratelimit"
	"zetafin/internal/middleware/security"
	"zetafin/internal/middleware/trace"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Options configure a Server.
type Options struct {
	Accessor *accessor.Accessor
	// UserID fills the user_id column of the CSV export.
	UserID             string
	Logger             *log.Logger
	RateLimitPerMinute int
	ReadinessChecks    map[string]ReadinessCheck
	// Now is the clock used for default date windows.
	Now func() time.Time
}

type Server struct {
	http.Server
	acc     *accessor.Accessor
	userID  string
	logger  *log.Logger
	mutLog  *log.StructuredLogger
	checks  map[string]ReadinessCheck
	now     func() time.Time
	started time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		acc:              opts.Accessor,
		userID:           opts.UserID,
		logger:           logger,
		mutLog:           log.NewStructuredLogger(logger),
		checks:           opts.ReadinessChecks,
		now:              opts.Now,
		started:          opts.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/transactions/{id}/category", s.handleTransactionCategory)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/balance", s.handleBalance)
	mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/export.json", s.handleExportJSON)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})

	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.IsMutation,
		func(w http.ResponseWriter, r *http.Request) { TooManyRequestsError().Write(w) })
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = s.securityDetector.Middleware(logger)(handler)
	handler = headers.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// reqLogger returns the request-scoped logger set by the trace middleware.
func (s *Server) reqLogger(r *http.Request) *log.StructuredLogger {
	if _, ok := r.Context().Value(log.LoggerContextKey).(*log.Logger); ok {
		return log.NewStructuredLogger(log.FromContext(r.Context()))
	}
	return s.mutLog
}
