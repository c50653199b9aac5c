package httpserver

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	electionservice "ballot/contexts/elections/election-service"
	"ballot/internal/platform/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "ballot/internal/platform/httpserver/docs"
)

const moduleName = "internal/platform/httpserver"

type Options struct {
	Addr            string
	RequestTimeout  time.Duration
	CookieKey       []byte
	CookieSecure    bool
	VoterSessionTTL time.Duration
}

type Server struct {
	router   chi.Router
	http     *http.Server
	logger   *slog.Logger
	addr     string
	timeout  time.Duration
	election electionservice.Module
	limiter  *ratelimit.Limiter
	cookies  *sessions.CookieStore
}

func New(election electionservice.Module, limiter *ratelimit.Limiter, opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.VoterSessionTTL <= 0 {
		opts.VoterSessionTTL = 30 * time.Minute
	}
	key := opts.CookieKey
	if len(key) == 0 {
		// Cookies signed with a per-process key stop validating on restart.
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		logger.Warn("session cookie key not configured, using an ephemeral key",
			"event", "http_cookie_key_ephemeral",
			"module", moduleName,
			"layer", "platform",
		)
	}
	cookies := sessions.NewCookieStore(key)
	cookies.Options = &sessions.Options{
		Path:     "/api/v1/voter",
		MaxAge:   int(opts.VoterSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		addr:     opts.Addr,
		timeout:  opts.RequestTimeout,
		election: election,
		limiter:  limiter,
		cookies:  cookies,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", moduleName,
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/results", s.handlePublicResults)

		r.Route("/admin", func(r chi.Router) {
			r.With(s.rateLimitByIP(ratelimit.PurposeAdminLogin)).Post("/login", s.handleAdminLogin)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/logout", s.handleAdminLogout)
				r.Get("/elections", s.handleListElections)
				r.Post("/elections", s.handleCreateElection)
				r.Route("/elections/{electionID}", func(r chi.Router) {
					r.Get("/", s.handleGetElection)
					r.Patch("/", s.handleUpdateElection)
					r.Get("/results", s.handleAdminResults)
					for _, action := range []string{"activate", "close", "archive", "publish-results", "hide-results"} {
						r.Post("/"+action, s.handleTransitionElection(action))
					}
					r.Get("/candidates", s.handleListCandidates)
					r.Post("/candidates", s.handleCreateCandidate)
					r.Patch("/candidates/{candidateID}", s.handleUpdateCandidate)
					r.Delete("/candidates/{candidateID}", s.handleDeleteCandidate)
					r.Get("/tokens", s.handleListTokens)
					r.Post("/tokens", s.handleGenerateTokens)
					r.Post("/tokens/{tokenID}/invalidate", s.handleInvalidateToken)
				})
			})
		})

		r.Route("/voter", func(r chi.Router) {
			r.With(s.rateLimitByIP(ratelimit.PurposeTokenRedeem)).Post("/login", s.handleVoterLogin)
			r.Post("/logout", s.handleVoterLogout)
			r.Group(func(r chi.Router) {
				r.Use(s.requireVoter)
				r.Get("/candidates", s.handleVoterCandidates)
				r.With(s.rateLimitByToken(ratelimit.PurposeVote)).Post("/vote", s.handleCastVote)
			})
		})
	})
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if strings.HasPrefix(r.URL.Path, "/swagger/") {
			return
		}
		s.logger.Info("http request served",
			"event", "http_request",
			"module", moduleName,
			"layer", "platform",
			"method", r.Method,
			"route", routePattern(r),
			"status", ww.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// routePattern avoids logging raw paths, which carry ids.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
