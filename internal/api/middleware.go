package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
	"github.com/arkeep-io/webauthcore/internal/resolver"
)

// WithAuthSlot installs a fresh per-request reqauth.Slot into the request
// context so resolver.Resolver.EnsureAuthenticationInfo can cache its result
// for the lifetime of the request. Must run before any handler or middleware
// that calls EnsureAuthenticationInfo.
func WithAuthSlot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqauth.WithSlot(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthenticated resolves the request's AuthenticationInfo and allows
// the chain to proceed only if it is at least LevelNormal. Must run after
// WithAuthSlot.
func RequireAuthenticated(res *resolver.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			front, err := res.EnsureAuthenticationInfo(r.Context(), r)
			if err != nil {
				ErrInternal(w)
				return
			}
			if front.Info.Level(time.Now().UTC()) < authinfo.LevelNormal {
				ErrUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger returns a Chi-compatible middleware that logs each request
// using the provided zap logger. It logs method, path, status, and latency.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
