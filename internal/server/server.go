package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/careboard/internal/api/v1"
	"github.com/gosuda/careboard/internal/api/ws"
	"github.com/gosuda/careboard/internal/board"
	"github.com/gosuda/careboard/internal/config"
	"github.com/gosuda/careboard/internal/server/middleware"
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the routes are wired to.
type Deps struct {
	Store    v1.DataStore
	PubSub   ws.PubSub // nil disables cross-session refresh
	Auth     v1.AuthService
	Provider v1.IdentityProvider // nil when Google sign-in is not configured
	Analyzer v1.Analyzer
	Checks   map[string]Pinger
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	hub        *ws.Hub
	checks     map[string]Pinger
}

// New creates a Server with all routes wired. ctx bounds the background
// sweepers of the rate limiters. webAssets may be nil; when provided, the
// single-page app is served on all unmatched routes.
func New(ctx context.Context, cfg *config.Config, deps Deps, webAssets fs.FS) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	hub := ws.NewHub(deps.Store.Records(), deps.PubSub, board.ControllerConfig{
		Reconciler: board.ReconcilerConfig{
			SettleWindow: cfg.Board.SettleWindow,
			QuietPeriod:  cfg.Board.QuietPeriod,
			WriteTimeout: cfg.Board.WriteTimeout,
		},
	}, originHosts(cfg.Server.CORSOrigins))

	s := &Server{
		router: router,
		hub:    hub,
		checks: deps.Checks,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Unauthenticated group for sign-in and token refresh.
	// 2. Authenticated group for everything else.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 5, 10))

			authConfig := huma.DefaultConfig("Careboard Auth API", "1.0.0")
			authConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
			authConfig.OpenAPIPath = "/auth/openapi"
			authConfig.DocsPath = "/auth/docs"
			authConfig.SchemasPath = "/auth/schemas"
			authAPI := humachi.New(r, authConfig)
			v1.RegisterAuthRoutes(authAPI, deps.Auth, deps.Provider, cfg.OAuth.SuccessURL)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret))
			r.Use(middleware.RateLimit(ctx, 20, 40))

			apiConfig := huma.DefaultConfig("Careboard API", "1.0.0")
			apiConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
			api := humachi.New(r, apiConfig)
			v1.RegisterMeRoutes(api, deps.Store)
			v1.RegisterRecordRoutes(api, deps.Store, deps.Analyzer)
			v1.RegisterBoardRoutes(api, deps.Store)
		})
	})

	// WebSocket routes. Browsers cannot set headers on the upgrade request,
	// so Auth also accepts ?access_token=.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Get("/board", hub.ServeBoard)
		r.Get("/board/{recordID}", hub.ServeBoard)
	})

	// Health checks (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/readyz", s.ready)

	// Must be registered last so API and WS routes take priority.
	if webAssets != nil {
		router.NotFound(spaFileServer(webAssets).ServeHTTP)
		log.Info().Msg("serving web app")
	}

	return s
}

// originHosts turns CORS origins into the host patterns the WebSocket
// handshake checks Origin against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":"unavailable","dependency":%q}`, name)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
