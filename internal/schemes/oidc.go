package schemes

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"github.com/arkeep-io/webauthcore/internal/db"
	"github.com/arkeep-io/webauthcore/internal/login"
	"github.com/arkeep-io/webauthcore/internal/repository"
)

// OIDCSchemeName is the CallingScheme value this backend's logins are
// recorded under.
const OIDCSchemeName = "OIDC"

const (
	// oidcStateBytes is the random state parameter length for CSRF protection.
	oidcStateBytes = 16
	// oidcCodeVerifierBytes is the PKCE code verifier length before encoding.
	// RFC 7636 requires a minimum of 32 bytes of entropy.
	oidcCodeVerifierBytes = 32

	// FailureStateMismatch reports an OAuth2 state parameter that does not
	// match the value recorded before redirecting to the provider.
	FailureStateMismatch = 1
	// FailureCodeVerifierMissing reports a missing PKCE code verifier.
	FailureCodeVerifierMissing = 2
	// FailureProviderDisabled reports no enabled OIDC provider configured.
	FailureProviderDisabled = 3
	// FailureExchangeFailed reports a failed code exchange or id_token
	// verification.
	FailureExchangeFailed = 4
)

var errProviderDisabled = errors.New("schemes: oidc: no enabled provider configured")

// OIDC implements the Authorization Code + PKCE flow against a single
// database-configured provider. Grounded on internal/auth/oidc.go; trimmed
// of its own JWT/refresh-token issuance in favor of handing its verdict to
// the core orchestrator, and its JIT user-provisioning re-expressed as a
// login.AutoCreateService instead of an inline branch.
type OIDC struct {
	providers repository.OIDCProviderRepository
	users     repository.UserRepository
	clock     clockwork.Clock
}

func NewOIDC(providers repository.OIDCProviderRepository, users repository.UserRepository, clock clockwork.Clock) *OIDC {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OIDC{providers: providers, users: users, clock: clock}
}

// AuthorizationURL builds the redirect URL, state, and PKCE code verifier
// for starting a login. The caller stores state and codeVerifier (e.g. in a
// short-lived cookie) to be replayed into the callback's Callback value.
func (o *OIDC) AuthorizationURL(ctx context.Context) (redirectURL, state, codeVerifier string, err error) {
	_, oauth2Cfg, err := o.loadConfig(ctx)
	if err != nil {
		return "", "", "", err
	}

	state, err = randomBase64(oidcStateBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("schemes: oidc: generating state: %w", err)
	}
	codeVerifier, err = randomBase64(oidcCodeVerifierBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("schemes: oidc: generating code verifier: %w", err)
	}

	redirectURL = oauth2Cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(codeVerifier))
	return redirectURL, state, codeVerifier, nil
}

// Callback carries the parameters returned by the identity provider plus the
// state/codeVerifier this server handed out when starting the flow.
type Callback struct {
	Code          string
	State         string
	ExpectedState string
	CodeVerifier  string
}

type oidcClaims struct {
	sub   string
	email string
	name  string
}

// PendingClaims holds the claims verified by one callback request's LoginFn,
// read back by AutoCreate if the subject turns out to be unregistered. The
// caller must construct one per callback request via NewPendingClaims and
// share it between the LoginFn and AutoCreateService passed to the same
// login.Orchestrator.UnifiedLogin call — it is not safe to reuse across
// requests.
type PendingClaims struct {
	claims oidcClaims
	valid  bool
}

func NewPendingClaims() *PendingClaims {
	return &PendingClaims{}
}

// LoginFn verifies the callback and looks up the bound user. A valid token
// for a subject with no bound account returns IsUnregisteredUser so the
// orchestrator's AutoCreateService (AutoCreateService, below) can provision
// one.
func (o *OIDC) LoginFn(cb Callback, pending *PendingClaims) login.LoginFn {
	return func(ctx context.Context, actualLogin bool) (login.UserLoginResult, error) {
		if cb.State != cb.ExpectedState {
			return login.UserLoginResult{LoginFailureCode: FailureStateMismatch, LoginFailureReason: "oidc state mismatch"}, nil
		}
		if cb.CodeVerifier == "" {
			return login.UserLoginResult{LoginFailureCode: FailureCodeVerifierMissing, LoginFailureReason: "oidc code verifier missing"}, nil
		}

		cfg, oauth2Cfg, err := o.loadConfig(ctx)
		if err != nil {
			if errors.Is(err, errProviderDisabled) {
				return login.UserLoginResult{LoginFailureCode: FailureProviderDisabled, LoginFailureReason: "oidc provider not configured"}, nil
			}
			return login.UserLoginResult{}, err
		}

		token, err := oauth2Cfg.Exchange(ctx, cb.Code, oauth2.VerifierOption(cb.CodeVerifier))
		if err != nil {
			return login.UserLoginResult{LoginFailureCode: FailureExchangeFailed, LoginFailureReason: "code exchange failed"}, nil
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok {
			return login.UserLoginResult{LoginFailureCode: FailureExchangeFailed, LoginFailureReason: "token response missing id_token"}, nil
		}

		provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return login.UserLoginResult{}, fmt.Errorf("schemes: oidc: initializing provider for issuer %q: %w", cfg.Issuer, err)
		}
		idToken, err := provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}).Verify(ctx, rawIDToken)
		if err != nil {
			return login.UserLoginResult{LoginFailureCode: FailureExchangeFailed, LoginFailureReason: "id_token verification failed"}, nil
		}

		var claims struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return login.UserLoginResult{}, fmt.Errorf("schemes: oidc: extracting claims: %w", err)
		}
		pending.claims = oidcClaims{sub: claims.Sub, email: claims.Email, name: claims.Name}
		pending.valid = true

		user, err := o.users.GetByOIDC(ctx, cfg.ID.String(), claims.Sub)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return login.UserLoginResult{IsUnregisteredUser: true}, nil
			}
			return login.UserLoginResult{}, fmt.Errorf("schemes: oidc: looking up bound user: %w", err)
		}
		if !user.IsActive {
			return login.UserLoginResult{LoginFailureCode: FailureUserDisabled, LoginFailureReason: "account disabled"}, nil
		}

		info := userInfoFromRecord(user.ID, user.DisplayName, OIDCSchemeName, o.clock.Now().UTC())
		return login.UserLoginResult{UserInfo: &info}, nil
	}
}

// autoCreateFunc adapts a function to login.AutoCreateService, mirroring
// http.HandlerFunc.
type autoCreateFunc func(ctx context.Context, lctx login.Context, result login.UserLoginResult) (*login.UserLoginResult, error)

func (f autoCreateFunc) AutoCreate(ctx context.Context, lctx login.Context, result login.UserLoginResult) (*login.UserLoginResult, error) {
	return f(ctx, lctx, result)
}

// AutoCreateService returns a login.AutoCreateService that JIT-provisions a
// user bound to the subject claim pending carries, for use with exactly the
// login.Orchestrator.UnifiedLogin call that was handed LoginFn(cb, pending).
func (o *OIDC) AutoCreateService(pending *PendingClaims) login.AutoCreateService {
	return autoCreateFunc(func(ctx context.Context, lctx login.Context, result login.UserLoginResult) (*login.UserLoginResult, error) {
		if !pending.valid {
			return nil, fmt.Errorf("schemes: oidc: auto-create invoked without verified claims")
		}
		cfg, err := o.providers.GetEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("schemes: oidc: auto-create: loading provider: %w", err)
		}

		user := &db.User{
			Email:        pending.claims.email,
			DisplayName:  pending.claims.name,
			IsActive:     true,
			OIDCProvider: cfg.ID.String(),
			OIDCSub:      pending.claims.sub,
		}
		if err := o.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("schemes: oidc: auto-create: provisioning user: %w", err)
		}

		info := userInfoFromRecord(user.ID, user.DisplayName, OIDCSchemeName, o.clock.Now().UTC())
		return &login.UserLoginResult{UserInfo: &info}, nil
	})
}

func (o *OIDC) loadConfig(ctx context.Context) (*db.OIDCProvider, *oauth2.Config, error) {
	cfg, err := o.providers.GetEnabled(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errProviderDisabled
		}
		return nil, nil, fmt.Errorf("schemes: oidc: loading provider config: %w", err)
	}

	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		RedirectURL:  cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.Issuer + "/authorize",
			TokenURL: cfg.Issuer + "/token",
		},
		Scopes: splitScopes(cfg.Scopes),
	}
	return cfg, oauth2Cfg, nil
}

func randomBase64(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func splitScopes(s string) []string {
	if s == "" {
		return []string{"openid"}
	}
	var scopes []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				scopes = append(scopes, s[start:i])
			}
			start = i + 1
		}
	}
	return scopes
}
