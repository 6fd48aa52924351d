// Package web provides the HTTP API for JSON imports into CMS collections.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/jsonimport/internal/config"
	"github.com/JonMunkholm/jsonimport/internal/core"
	mw "github.com/JonMunkholm/jsonimport/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	cfg     *config.Config
	service *core.Service
	router  *chi.Mux
	server  *http.Server

	// mountImport is false when the plugin is disabled; the import routes
	// then answer 404.
	mountImport bool

	limiters []*rateLimiter
}

// NewServer creates a Server. mountImport controls whether the
// /api/import-json routes exist.
func NewServer(cfg *config.Config, service *core.Service, mountImport bool) *Server {
	s := &Server{
		cfg:         cfg,
		service:     service,
		router:      chi.NewRouter(),
		mountImport: mountImport,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found", nil, "COL001")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil, "REQ001")
	})
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Listing routes use the general request timeout; import runs are
		// bounded by the service's own timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			r.Get("/collections", s.handleListCollections)
		})

		if !s.mountImport {
			return
		}

		r.Route("/import-json", func(r chi.Router) {
			r.With(middleware.Timeout(s.cfg.Server.RequestTimeout)).Get("/status", s.handleImportStatus)
			r.Get("/{collectionSlug}/fields", s.handleFields)

			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(s.newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute).middleware)
				}
				r.Post("/{collectionSlug}", s.handleImport)
				r.Post("/{collectionSlug}/preview", s.handlePreview)
			})
		})
	})
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := newRateLimiter(rate, window)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr, "import_routes", s.mountImport)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for running imports and stops
// the rate limiter cleanup loops.
func (s *Server) Shutdown(ctx context.Context) error {
	defer func() {
		for _, rl := range s.limiters {
			rl.stop()
		}
	}()

	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.service.WaitForImports(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// The API serves JSON only.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":      "ok",
		"collections": s.service.Registry().Count(),
	})
}
