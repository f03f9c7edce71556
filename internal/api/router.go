package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/cookies"
	"github.com/arkeep-io/webauthcore/internal/protector"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
	"github.com/arkeep-io/webauthcore/internal/resolver"
	"github.com/arkeep-io/webauthcore/internal/schemes"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized and
// passed to NewRouter as a single struct to keep the constructor signature
// manageable as the number of dependencies grows.
type RouterConfig struct {
	Protectors *protector.Set
	Resolver   *resolver.Resolver
	CookieMgr  *cookies.Manager
	Startup    reqauth.StartupOptions
	Dynamic    reqauth.DynamicSource
	Clock      clockwork.Clock
	Logger     *zap.Logger

	Basic *schemes.Basic
	OIDC  *schemes.OIDC

	// Secure controls whether auth cookies are set with the Secure flag.
	// Set to true in production (HTTPS), false in local development.
	Secure bool
}

// NewRouter builds and returns the fully configured Chi router.
// All routes are registered under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	// RequestID generates a unique ID for each request, used in logs and
	// response headers for tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	// RequestLogger logs every request with method, path, status and latency.
	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the server.
	r.Use(middleware.Recoverer)

	// WithAuthSlot installs the per-request credential cache every handler
	// below relies on, authenticated or not.
	r.Use(WithAuthSlot)

	authHandler := NewAuthHandler(cfg.Protectors, cfg.Resolver, cfg.CookieMgr, cfg.Startup, cfg.Dynamic, cfg.Clock, cfg.Logger, cfg.Secure, cfg.Basic, cfg.OIDC)

	r.Route("/api/v1", func(r chi.Router) {
		// --- Public routes (no existing session required) ---
		r.Group(func(r chi.Router) {
			r.Post("/auth/login", authHandler.Login)
			r.Get("/auth/me", authHandler.Me)

			// OIDC flow — public because the user is not yet authenticated.
			r.Get("/auth/oidc/login", authHandler.OIDCLogin)
			r.Get("/auth/oidc/callback", authHandler.OIDCCallback)
		})

		// --- Authenticated routes ---
		r.Group(func(r chi.Router) {
			r.Use(RequireAuthenticated(cfg.Resolver))

			r.Post("/auth/logout", authHandler.Logout)
		})
	})

	return r
}
