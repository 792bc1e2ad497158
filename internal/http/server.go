package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/dashboard"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Deps are the collaborators of the API server.
type Deps struct {
	Service *services.TransactionService
	Board   *dashboard.Board
	Auth    *auth.Authenticator
	Logger  *log.Logger
	// Ready reports whether the storage backend is reachable.
	Ready           func(ctx context.Context) error
	MaxReceiptBytes int64
	RateLimit       ratelimit.Config
	Now             func() time.Time
}

type Server struct {
	http.Server
	service         *services.TransactionService
	board           *dashboard.Board
	ready           func(ctx context.Context) error
	limiter         *ratelimit.Limiter
	tracer          *trace.Middleware
	detector        *security.Detector
	maxReceiptBytes int64
	now             func() time.Time
}

// NewServer builds the API server listening on addr. Shutdown must be
// called to release the rate limiter.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Ready == nil {
		deps.Ready = func(context.Context) error { return nil }
	}

	detector := security.NewDetector()
	s := &Server{
		service:         deps.Service,
		board:           deps.Board,
		ready:           deps.Ready,
		limiter:         ratelimit.NewLimiter(deps.RateLimit),
		tracer:          trace.NewMiddleware(detector.ExtractClientIP),
		detector:        detector,
		maxReceiptBytes: deps.MaxReceiptBytes,
		now:             deps.Now,
	}
	s.limiter.Start()

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(deps.Logger.WithComponent(log.ComponentHTTP), deps.Auth),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *log.Logger, authenticator *auth.Authenticator) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(log.Middleware(logger))
	r.Use(s.tracer.Handler)
	r.Use(recoverer)
	r.Use(headers.Handler)
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { NotFoundError().Write(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticator.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, r, "auth", err)
		}))
		r.Use(withUserLogger)

		r.Get("/categories", handleCategories)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/export.csv", s.handleExport)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Get("/transactions/{id}", s.handleGetTransaction)
		r.Put("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Get("/receipts/{owner}/{name}", s.handleReceipt)
	})
	return r
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// withUserLogger tags the request logger with the authenticated user.
func withUserLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())
		logger := log.FromContext(r.Context()).With(log.FieldUserID, userID)
		next.ServeHTTP(w, r.WithContext(log.NewContext(r.Context(), logger)))
	})
}

// recoverer turns a handler panic into a 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic", "panic", v)
				InternalError().Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
		ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
		return
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}
