package http

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"finpal/internal/cache"
	"finpal/internal/core"
	"finpal/internal/demo"
	"finpal/internal/middleware/ratelimit"
	"finpal/internal/middleware/security"
	"finpal/internal/middleware/trace"
	"finpal/internal/services"
)

const (
	defaultAnalyticsTTL  = 30 * time.Second
	cacheCleanupInterval = 10 * time.Minute
)

// Server exposes the profile as a JSON API.
type Server struct {
	http.Server

	profile *services.ProfileService
	clock   core.Clock

	limiter  *ratelimit.Limiter
	detector *security.Detector

	overviewCache *cache.LRUCache[core.MonthOverview]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, profileSvc *services.ProfileService, clock core.Clock, analyticsTTL time.Duration) *Server {
	if clock == nil {
		clock = core.SystemClock()
	}
	if analyticsTTL <= 0 {
		analyticsTTL = defaultAnalyticsTTL
	}

	mux := http.NewServeMux()

	s := &Server{
		profile:          profileSvc,
		clock:            clock,
		limiter:          ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:         security.NewDetector(),
		overviewCache:    cache.NewLRUCache[core.MonthOverview](100, analyticsTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/analytics/month", s.handleMonthOverview)
	mux.HandleFunc("/api/goals", s.handleGoals)
	mux.HandleFunc("/api/goals/{id}/progress", s.handleGoalProgress)

	mux.HandleFunc("/api/session/login", s.handleLogin)
	mux.HandleFunc("/api/session/register", s.handleRegister)
	mux.HandleFunc("/api/session/logout", s.handleLogout)

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/demo", s.handleDemo)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:    addr,
		Handler: headers.Middleware(tracer.Middleware(s.withSuspicionLogging(s.withPostRateLimit(mux)))),
	}

	return s
}

// withSuspicionLogging flags probe-looking requests. They are served
// normally; the signal only feeds the logs.
func (s *Server) withSuspicionLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"client_ip", s.detector.ExtractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

// withPostRateLimit applies the per-IP limit to mutating requests only.
func (s *Server) withPostRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			clientIP := s.detector.ExtractClientIP(r)
			if !s.limiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.overviewCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the server and its background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// newDemoGenerator seeds a fresh generator per request so repeated demo
// loads produce different spending patterns.
func (s *Server) newDemoGenerator() *demo.Generator {
	return demo.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano())), s.clock)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.profile == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
