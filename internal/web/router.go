// Package web assembles the HTTP router for the login frontend.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shindakun/btweet/internal/auth"
	"github.com/shindakun/btweet/internal/config"
	"github.com/shindakun/btweet/internal/metrics"
	"github.com/shindakun/btweet/internal/web/handlers"
	webmiddleware "github.com/shindakun/btweet/internal/web/middleware"
	"github.com/shindakun/btweet/internal/web/static"
)

// Deps are the collaborators the router mounts
type Deps struct {
	Config   *config.Config
	Handlers *handlers.Handlers
	Sessions *auth.SessionManager
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter builds the chi router with global middleware, public routes and
// the protected home page
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	h := d.Handlers

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(webmiddleware.LoggingMiddleware(d.Logger))
	r.Use(webmiddleware.Instrument(d.Metrics))
	r.Use(webmiddleware.Recover(d.Logger, h.ServerError))
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	}
	r.Use(webmiddleware.SecurityHeaders(cfg))
	r.Use(webmiddleware.MaxBytesMiddleware(cfg.Server.Security.MaxRequestBytes))

	// Probes and static assets sit outside CSRF protection
	r.Get("/healthz", h.Health)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static.FS))))

	r.Group(func(r chi.Router) {
		if cfg.Server.Security.CSRFEnabled {
			r.Use(webmiddleware.CSRFProtection([]byte(cfg.Session.Secret), cfg.IsHTTPS(), cfg.Server.Security.CSRFFieldName))
		}

		// Login page
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.LoginSubmit)
		r.Get("/login/status", h.LoginStatus)
		r.Post("/logout", h.Logout)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(webmiddleware.RequireAuth(d.Sessions))
			r.Get("/", h.Home)
		})
	})

	// 404 handler
	r.NotFound(h.NotFound)

	return r
}
