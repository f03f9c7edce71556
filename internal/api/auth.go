package api

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/cookies"
	"github.com/arkeep-io/webauthcore/internal/login"
	"github.com/arkeep-io/webauthcore/internal/protector"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
	"github.com/arkeep-io/webauthcore/internal/resolver"
	"github.com/arkeep-io/webauthcore/internal/response"
	"github.com/arkeep-io/webauthcore/internal/schemes"
)

const (
	// oidcStateCookie and oidcVerifierCookie hold the OIDC state and PKCE
	// code verifier between the authorization redirect and the callback.
	// Both are short-lived and httpOnly. Grounded on the teacher's
	// oidcStateCookie/oidcVerifierCookie pair in internal/api/auth.go.
	oidcStateCookie    = "webauthcore_oidc_state"
	oidcVerifierCookie = "webauthcore_oidc_verifier"
	oidcReturnCookie   = "webauthcore_oidc_return"
	oidcOriginCookie   = "webauthcore_oidc_origin"

	// oidcCookieTTL is how long the OIDC session cookies are valid. Must be
	// longer than the identity provider's authorization timeout.
	oidcCookieTTL = 10 * time.Minute
)

// AuthHandler groups the HTTP handlers for the two demo login schemes and
// the session inspection/logout endpoints. It is deliberately thin: all the
// stateless-session semantics live in resolver/cookies/login, this type
// only decodes requests and picks which login.LoginFn to run.
type AuthHandler struct {
	protectors *protector.Set
	resolver   *resolver.Resolver
	cookieMgr  *cookies.Manager
	startup    reqauth.StartupOptions
	dynamic    reqauth.DynamicSource
	clock      clockwork.Clock
	logger     *zap.Logger
	secure     bool

	basic *schemes.Basic
	oidc  *schemes.OIDC
}

func NewAuthHandler(
	protectors *protector.Set,
	res *resolver.Resolver,
	cookieMgr *cookies.Manager,
	startup reqauth.StartupOptions,
	dynamic reqauth.DynamicSource,
	clock clockwork.Clock,
	logger *zap.Logger,
	secure bool,
	basic *schemes.Basic,
	oidc *schemes.OIDC,
) *AuthHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthHandler{
		protectors: protectors,
		resolver:   res,
		cookieMgr:  cookieMgr,
		startup:    startup,
		dynamic:    dynamic,
		clock:      clock,
		logger:     logger.Named("auth_handler"),
		secure:     secure,
		basic:      basic,
		oidc:       oidc,
	}
}

// Me handles GET /api/v1/auth/me: it resolves and returns the caller's
// current AuthenticationInfo without attempting a login.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	front, err := h.resolver.EnsureAuthenticationInfo(r.Context(), r)
	if err != nil {
		h.logger.Error("resolving authentication info", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, front)
}

// loginRequest is the JSON body expected by POST /api/v1/auth/login.
type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReturnURL    string `json:"returnUrl"`
	CallerOrigin string `json:"callerOrigin"`
	RememberMe   bool   `json:"rememberMe"`
}

// Login handles POST /api/v1/auth/login: the Basic (email/password) scheme.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		ErrBadRequest(w, "email and password are required")
		return
	}

	lctx, err := h.baseContext(r, schemes.SchemeName, req.ReturnURL, req.CallerOrigin, req.RememberMe)
	if err != nil {
		ErrInternal(w)
		return
	}

	orch := login.New(h.protectors, h.cookieMgr, h.startup, h.dynamic, h.clock, h.logger)
	slot := reqauth.SlotFrom(r.Context())
	result := orch.UnifiedLogin(r.Context(), slot, w, r, lctx, h.basic.LoginFn(req.Email, req.Password))
	response.Write(w, r, h.logger, result)
}

// OIDCLogin handles GET /api/v1/auth/oidc/login: builds the authorization
// URL and stashes state/verifier/returnUrl/callerOrigin in short-lived
// cookies for the callback to read back.
func (h *AuthHandler) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	redirectURL, state, codeVerifier, err := h.oidc.AuthorizationURL(r.Context())
	if err != nil {
		h.logger.Error("building oidc authorization url", zap.Error(err))
		ErrBadRequest(w, "oidc provider not configured")
		return
	}

	expires := h.clock.Now().UTC().Add(oidcCookieTTL)
	h.setShortLivedCookie(w, oidcStateCookie, state, expires)
	h.setShortLivedCookie(w, oidcVerifierCookie, codeVerifier, expires)
	h.setShortLivedCookie(w, oidcReturnCookie, r.URL.Query().Get("returnUrl"), expires)
	h.setShortLivedCookie(w, oidcOriginCookie, r.URL.Query().Get("callerOrigin"), expires)

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// OIDCCallback handles GET /api/v1/auth/oidc/callback.
func (h *AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, stateErr := r.Cookie(oidcStateCookie)
	verifierCookie, verifierErr := r.Cookie(oidcVerifierCookie)
	returnURL := h.readAndClearOIDCCookie(w, r, oidcReturnCookie)
	callerOrigin := h.readAndClearOIDCCookie(w, r, oidcOriginCookie)
	h.clearShortLivedCookie(w, oidcStateCookie)
	h.clearShortLivedCookie(w, oidcVerifierCookie)

	if stateErr != nil || verifierErr != nil {
		ErrBadRequest(w, "missing oidc session cookies")
		return
	}

	cb := schemes.Callback{
		Code:          r.URL.Query().Get("code"),
		State:         r.URL.Query().Get("state"),
		ExpectedState: stateCookie.Value,
		CodeVerifier:  verifierCookie.Value,
	}

	lctx, err := h.baseContext(r, schemes.OIDCSchemeName, returnURL, callerOrigin, false)
	if err != nil {
		ErrInternal(w)
		return
	}

	pending := schemes.NewPendingClaims()
	orch := login.New(h.protectors, h.cookieMgr, h.startup, h.dynamic, h.clock, h.logger,
		login.WithAutoCreateService(h.oidc.AutoCreateService(pending)))

	slot := reqauth.SlotFrom(r.Context())
	result := orch.UnifiedLogin(r.Context(), slot, w, r, lctx, h.oidc.LoginFn(cb, pending))
	response.Write(w, r, h.logger, result)
}

// Logout handles POST /api/v1/auth/logout: clears both auth cookies
// unconditionally, regardless of whatever the caller currently presents.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookieMgr.Logout(w, r)
	NoContent(w)
}

// baseContext resolves the caller's pre-login identity and assembles the
// login.Context common to every scheme's entry point.
func (h *AuthHandler) baseContext(r *http.Request, scheme, returnURL, callerOrigin string, rememberMe bool) (login.Context, error) {
	front, err := h.resolver.EnsureAuthenticationInfo(r.Context(), r)
	if err != nil {
		return login.Context{}, err
	}
	return login.Context{
		Mode:          login.ModeStartLogin,
		Current:       front,
		InitialScheme: scheme,
		CallingScheme: scheme,
		ReturnURL:     returnURL,
		CallerOrigin:  callerOrigin,
		RememberMe:    rememberMe,
	}, nil
}

func (h *AuthHandler) setShortLivedCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}

func (h *AuthHandler) clearShortLivedCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}

func (h *AuthHandler) readAndClearOIDCCookie(w http.ResponseWriter, r *http.Request, name string) string {
	c, err := r.Cookie(name)
	h.clearShortLivedCookie(w, name)
	if err != nil {
		return ""
	}
	return c.Value
}
