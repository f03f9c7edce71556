// Package resolver implements the credential resolver (C2): per request it
// picks a bearer header, session cookie, or long-term cookie, produces a
// canonical FrontAuthenticationInfo, and caches it on the request via
// internal/reqauth's Slot. It is grounded on internal/api/middleware.go's
// Authenticate middleware (header/cookie inspection, claimsFromCtx caching
// pattern) generalized to the three-tier resolution and sliding-expiration
// rules this core adds.
package resolver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
	"github.com/arkeep-io/webauthcore/internal/deviceid"
	"github.com/arkeep-io/webauthcore/internal/envelope"
	"github.com/arkeep-io/webauthcore/internal/metrics"
	"github.com/arkeep-io/webauthcore/internal/protector"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
)

// Resolver implements §4.2's EnsureAuthenticationInfo operation.
type Resolver struct {
	protectors *protector.Set
	startup    reqauth.StartupOptions
	dynamic    reqauth.DynamicSource
	logger     *zap.Logger
	clock      clockwork.Clock
}

// New builds a Resolver. clock defaults to clockwork.NewRealClock() when nil,
// letting tests inject clockwork.NewFakeClock() to exercise the sliding and
// level-transition paths deterministically.
func New(protectors *protector.Set, startup reqauth.StartupOptions, dynamic reqauth.DynamicSource, logger *zap.Logger, clock clockwork.Clock) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{protectors: protectors, startup: startup, dynamic: dynamic, logger: logger, clock: clock}
}

// EnsureAuthenticationInfo is idempotent per request: the first call runs
// the five-step resolution algorithm and sliding-expiration check; later
// calls on the same request (same Slot in ctx) return the cached result.
func (r *Resolver) EnsureAuthenticationInfo(ctx context.Context, req *http.Request) (authinfo.FrontAuthenticationInfo, error) {
	slot := reqauth.SlotFrom(ctx)
	return slot.Resolve(func() (authinfo.FrontAuthenticationInfo, bool, error) {
		return r.resolve(req)
	})
}

func (r *Resolver) resolve(req *http.Request) (authinfo.FrontAuthenticationInfo, bool, error) {
	now := r.clock.Now().UTC()
	dyn := r.dynamic.Current()

	if front, ok := r.fromBearer(req); ok {
		metrics.ResolutionOutcomes.WithLabelValues("bearer").Inc()
		return front, false, nil
	}

	if r.startup.CookieMode != reqauth.CookieModeNone {
		if front, ok := r.fromSessionCookie(req); ok {
			metrics.ResolutionOutcomes.WithLabelValues("session_cookie").Inc()
			return r.applySliding(front, now, dyn)
		}
	}

	if dyn.UseLongTermCookie {
		if front, ok := r.fromLongTermCookie(req); ok {
			metrics.ResolutionOutcomes.WithLabelValues("long_term_cookie").Inc()
			return front, false, nil
		}
	}

	if r.shouldSynthesize(req) {
		id, err := deviceid.New()
		if err != nil {
			r.logger.Error("resolver: minting device id", zap.Error(err))
			return authinfo.NoneFront(), false, nil
		}
		front := authinfo.FrontAuthenticationInfo{
			Info: authinfo.AuthenticationInfo{DeviceID: id},
		}
		metrics.ResolutionOutcomes.WithLabelValues("synthesize").Inc()
		return front, true, nil
	}

	metrics.ResolutionOutcomes.WithLabelValues("none").Inc()
	return authinfo.NoneFront(), false, nil
}

// fromBearer implements §4.2 step 1. Decode failures are logged and treated
// as "no envelope", never as an authentication failure.
func (r *Resolver) fromBearer(req *http.Request) (authinfo.FrontAuthenticationInfo, bool) {
	header := req.Header.Get(r.startup.BearerHeaderName)
	if header == "" {
		return authinfo.FrontAuthenticationInfo{}, false
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return authinfo.FrontAuthenticationInfo{}, false
	}
	token := header[len(prefix):]

	plaintext, err := r.protectors.Token.Unprotect(token)
	if err != nil {
		r.logger.Debug("resolver: bearer envelope rejected", zap.Error(err))
		metrics.EnvelopeDecodeFailures.WithLabelValues("bearer").Inc()
		return authinfo.FrontAuthenticationInfo{}, false
	}
	info, rememberMe, err := envelope.DecodeAuth(plaintext)
	if err != nil {
		r.logger.Warn("resolver: bearer envelope decode failed", zap.Error(err))
		metrics.EnvelopeDecodeFailures.WithLabelValues("bearer").Inc()
		return authinfo.FrontAuthenticationInfo{}, false
	}
	return authinfo.FrontAuthenticationInfo{Info: info, RememberMe: rememberMe}, true
}

// fromSessionCookie implements §4.2 step 2.
func (r *Resolver) fromSessionCookie(req *http.Request) (authinfo.FrontAuthenticationInfo, bool) {
	c, err := req.Cookie(r.startup.AuthCookieName)
	if err != nil || c.Value == "" {
		return authinfo.FrontAuthenticationInfo{}, false
	}
	plaintext, err := r.protectors.Cookie.Unprotect(c.Value)
	if err != nil {
		r.logger.Debug("resolver: session cookie rejected", zap.Error(err))
		metrics.EnvelopeDecodeFailures.WithLabelValues("session_cookie").Inc()
		return authinfo.FrontAuthenticationInfo{}, false
	}
	info, rememberMe, err := envelope.DecodeAuth(plaintext)
	if err != nil {
		r.logger.Warn("resolver: session cookie decode failed", zap.Error(err))
		metrics.EnvelopeDecodeFailures.WithLabelValues("session_cookie").Inc()
		return authinfo.FrontAuthenticationInfo{}, false
	}
	return authinfo.FrontAuthenticationInfo{Info: info, RememberMe: rememberMe}, true
}

// fromLongTermCookie implements §4.2 step 3. Unlike the bearer/session
// tiers, the long-term cookie is raw plaintext JSON, never AEAD-protected
// (§3/§6), so it is decoded directly off the cookie value.
func (r *Resolver) fromLongTermCookie(req *http.Request) (authinfo.FrontAuthenticationInfo, bool) {
	c, err := req.Cookie(r.startup.AuthCookieName + "LT")
	if err != nil || c.Value == "" {
		return authinfo.FrontAuthenticationInfo{}, false
	}
	payload, err := envelope.DecodeLongTerm([]byte(c.Value))
	if err != nil {
		r.logger.Warn("resolver: long-term cookie decode failed", zap.Error(err))
		metrics.EnvelopeDecodeFailures.WithLabelValues("long_term_cookie").Inc()
		return authinfo.FrontAuthenticationInfo{}, false
	}

	user := authinfo.Anonymous
	if payload.UserID != 0 {
		var schemes []authinfo.SchemeUse
		for _, s := range payload.Schemes {
			schemes = append(schemes, authinfo.SchemeUse{Name: s.Name, LastUsedUTC: s.LastUsed})
		}
		user = authinfo.NewUser(payload.UserID, payload.UserName, schemes)
	}
	info := authinfo.Create(user, nil, nil, payload.DeviceID)
	// §9 open question: a long-term-cookie-only resolution always reports
	// rememberMe=false, even when it carried a non-anonymous user.
	return authinfo.FrontAuthenticationInfo{Info: info, RememberMe: false}, true
}

// shouldSynthesize implements §4.2 step 4's gating condition.
func (r *Resolver) shouldSynthesize(req *http.Request) bool {
	switch r.startup.CookieMode {
	case reqauth.CookieModeRootPath:
		return true
	case reqauth.CookieModeWebFrontPath:
		return strings.HasPrefix(req.URL.Path, r.startup.EntryPath)
	default:
		return false
	}
}

// applySliding implements §4.2's sliding-expiration paragraph. It only ever
// applies to session-cookie-derived info under CookieModeRootPath.
func (r *Resolver) applySliding(front authinfo.FrontAuthenticationInfo, now time.Time, dyn reqauth.DynamicOptions) (authinfo.FrontAuthenticationInfo, bool, error) {
	if front.Info.Level(now) < authinfo.LevelNormal {
		return front, false, nil
	}
	if r.startup.CookieMode != reqauth.CookieModeRootPath || dyn.SlidingExpirationTime <= 0 {
		return front, false, nil
	}
	halfSliding := dyn.SlidingExpirationTime / 2
	if front.Info.Expires == nil || front.Info.Expires.After(now.Add(halfSliding)) {
		return front, false, nil
	}
	renewed := front
	renewed.Info = front.Info.SetExpires(now.Add(dyn.SlidingExpirationTime))
	metrics.SlidingRenewals.Inc()
	return renewed, true, nil
}
