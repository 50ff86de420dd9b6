// Package http serves the dashboard JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/refresh"
)

// Dashboard is the refresh controller as seen by the API.
type Dashboard interface {
	Snapshot() refresh.Snapshot
	Refresh(ctx context.Context) (refresh.Snapshot, error)
	Export(ctx context.Context) error
	IsActive() bool
	Interval() time.Duration
}

// Session writes and reads the stored credential.
type Session interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// History lists past refresh passes.
type History interface {
	ListRefreshRuns(ctx context.Context, limit int) ([]core.RefreshRun, error)
}

// Deps are the collaborators of the server. History may be nil.
type Deps struct {
	Dashboard Dashboard
	Session   Session
	History   History
	Logger    *log.Logger
	// Now defaults to time.Now; it picks the default summary month and
	// judges token expiry for /api/status.
	Now func() time.Time
	// TrustedProxies are CIDRs added to the detector's private defaults.
	TrustedProxies []string
}

type Server struct {
	http.Server
	dashboard Dashboard
	session   Session
	history   History
	logger    *log.Logger
	now       func() time.Time
	started   time.Time

	tracer   *trace.Middleware
	detector *security.Detector
	limiter  *ratelimit.Limiter

	summaryCache *cache.LRUCache[core.MonthSummary]
	caches       *cache.Manager

	shutdownOnce sync.Once
}

const (
	summaryCacheSize = 64
	summaryCacheTTL  = 10 * time.Minute
	cacheSweepEvery  = 5 * time.Minute
)

// NewServer configures routes and middleware and starts the cache sweeper.
// Shutdown releases it.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		dashboard:    deps.Dashboard,
		session:      deps.Session,
		history:      deps.History,
		logger:       logger.WithComponent(log.ComponentHTTP),
		now:          now,
		started:      time.Now(),
		detector:     security.NewDetector(),
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		summaryCache: cache.NewLRUCache[core.MonthSummary](summaryCacheSize, summaryCacheTTL),
		caches:       cache.NewManager(),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)
	s.caches.Register(s.summaryCache)
	s.caches.StartCleanup(cacheSweepEvery)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/session", s.handleSetSession)
	mux.HandleFunc("DELETE /api/session", s.handleClearSession)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /api/refreshes", s.handleRefreshes)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.tooManyRequests, http.MethodPost, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.detector.Middleware(limited(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later", trace.GetRequestID(r.Context())).Write(w)
}
