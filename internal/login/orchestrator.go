// Package login implements the login orchestrator (C4): the state machine
// that couples a pluggable backend's verdict with optional validation,
// auto-bind, and auto-create side services, then commits the resulting
// identity to the request slot and the response cookies. Grounded on
// internal/auth/service.go's AuthService orchestration of LoginLocal /
// ExchangeCode (validate → call provider → issue tokens → set cookie), here
// generalized into the spec's explicit state machine.
package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
	"github.com/arkeep-io/webauthcore/internal/cookies"
	"github.com/arkeep-io/webauthcore/internal/deviceid"
	"github.com/arkeep-io/webauthcore/internal/envelope"
	"github.com/arkeep-io/webauthcore/internal/metrics"
	"github.com/arkeep-io/webauthcore/internal/protector"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
)

// Orchestrator runs UnifiedLogin. Validator/AutoBind/AutoCreate are nil by
// default; use the With* options to install them.
type Orchestrator struct {
	protectors *protector.Set
	cookies    *cookies.Manager
	startup    reqauth.StartupOptions
	dynamic    reqauth.DynamicSource
	clock      clockwork.Clock
	logger     *zap.Logger

	validator  Validator
	autoBind   AutoBindService
	autoCreate AutoCreateService
}

type Option func(*Orchestrator)

func WithValidator(v Validator) Option { return func(o *Orchestrator) { o.validator = v } }

func WithAutoBindService(s AutoBindService) Option {
	return func(o *Orchestrator) { o.autoBind = s }
}

func WithAutoCreateService(s AutoCreateService) Option {
	return func(o *Orchestrator) { o.autoCreate = s }
}

func New(protectors *protector.Set, cookieMgr *cookies.Manager, startup reqauth.StartupOptions, dynamic reqauth.DynamicSource, clock clockwork.Clock, logger *zap.Logger, opts ...Option) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	o := &Orchestrator{protectors: protectors, cookies: cookieMgr, startup: startup, dynamic: dynamic, clock: clock, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UnifiedLogin runs the full §4.4 state machine and, on any path that
// changes the authenticated identity, replaces the request slot and emits
// cookies before returning.
func (o *Orchestrator) UnifiedLogin(ctx context.Context, slot *reqauth.Slot, w http.ResponseWriter, req *http.Request, lctx Context, loginFn LoginFn) Result {
	now := o.clock.Now().UTC()

	if err := ValidateCoreParameters(lctx, o.startup.AllowedReturnURLs); err != nil {
		return o.errorResult(lctx, err)
	}

	actualLogin := o.validator == nil
	u, err := o.safeCallLogin(ctx, loginFn, actualLogin)
	if err != nil {
		return o.errorResult(lctx, err)
	}

	final := u
	if u.IsSuccess() {
		if o.validator != nil {
			validated, verr := o.validator.Validate(ctx, lctx, u)
			if verr != nil {
				return o.errorResult(lctx, newBackendError(verr))
			}
			if validated == nil {
				o.logger.Error("login: validator returned neither error nor result")
				return o.errorResult(lctx, &PolicyError{ID: ErrorInternal})
			}
			if !validated.IsSuccess() {
				final = *validated
			} else {
				committed, cerr := o.safeCallLogin(ctx, loginFn, true)
				if cerr != nil {
					return o.errorResult(lctx, cerr)
				}
				final = committed
			}
		}
	} else {
		resolved, ferr := o.handleFailure(ctx, lctx, u)
		if ferr != nil {
			return o.errorResult(lctx, ferr)
		}
		final = resolved
	}

	if !final.IsSuccess() {
		return o.commitFailure(slot, w, req, now, lctx, final)
	}
	return o.commitSuccess(slot, w, req, now, lctx, final)
}

// safeCallLogin wraps loginFn, logging an error return and converting it
// into a *BackendError. A result without a UserInfo is returned unchanged and
// is handled by the caller as a non-success login.
func (o *Orchestrator) safeCallLogin(ctx context.Context, loginFn LoginFn, actualLogin bool) (UserLoginResult, error) {
	u, err := loginFn(ctx, actualLogin)
	if err != nil {
		o.logger.Error("login: backend call failed", zap.Bool("actualLogin", actualLogin), zap.Error(err))
		return UserLoginResult{}, newBackendError(err)
	}
	return u, nil
}

// handleFailure implements §4.4's failure branches. A rejected login attempt
// (the backend, auto-bind, or auto-create service says no) comes back as a
// plain non-success UserLoginResult with no error, so it flows through the
// same commitFailure path as a validator rejection. Only a misconfigured
// capability (PolicyError) or the capability itself erroring (BackendError)
// is reported as a Go error, since those leave the caller's current identity
// untouched rather than clearing it to anonymous.
func (o *Orchestrator) handleFailure(ctx context.Context, lctx Context, u UserLoginResult) (UserLoginResult, error) {
	if lctx.ImpersonateActualUser {
		return UserLoginResult{LoginFailureCode: u.LoginFailureCode, LoginFailureReason: u.LoginFailureReason}, nil
	}

	if u.IsUnregisteredUser {
		if lctx.Current.Info.User.UserID != 0 {
			if o.autoBind == nil {
				return UserLoginResult{}, &PolicyError{ID: ErrorAutoBindingDisabled}
			}
			bound, err := o.autoBind.AutoBind(ctx, lctx, u)
			if err != nil {
				return UserLoginResult{}, newBackendError(err)
			}
			if bound == nil {
				return UserLoginResult{}, &PolicyError{ID: ErrorAutoBindingDisabled}
			}
			if !bound.IsSuccess() {
				return UserLoginResult{LoginFailureCode: bound.LoginFailureCode, LoginFailureReason: bound.LoginFailureReason}, nil
			}
			return *bound, nil
		}

		if o.autoCreate == nil {
			return UserLoginResult{}, &PolicyError{ID: ErrorAutoRegistrationDisabled}
		}
		created, err := o.autoCreate.AutoCreate(ctx, lctx, u)
		if err != nil {
			return UserLoginResult{}, newBackendError(err)
		}
		if created == nil {
			return UserLoginResult{}, &PolicyError{ID: ErrorAutoRegistrationDisabled}
		}
		if !created.IsSuccess() {
			return UserLoginResult{LoginFailureCode: created.LoginFailureCode, LoginFailureReason: created.LoginFailureReason}, nil
		}
		return *created, nil
	}

	return UserLoginResult{LoginFailureCode: u.LoginFailureCode, LoginFailureReason: u.LoginFailureReason}, nil
}

// commitFailure implements the "failure → anonymous" rule: the new info is
// anonymous but keeps the pre-login device id (§8 "Device-id preservation").
func (o *Orchestrator) commitFailure(slot *reqauth.Slot, w http.ResponseWriter, req *http.Request, now time.Time, lctx Context, final UserLoginResult) Result {
	anon := authinfo.Create(authinfo.Anonymous, nil, nil, lctx.Current.Info.DeviceID)
	front := authinfo.FrontAuthenticationInfo{Info: anon, RememberMe: false}

	slot.Replace(front, true)
	o.cookies.SetCookies(w, req, now, front)
	metrics.LoginOutcomes.WithLabelValues("login_failure").Inc()

	return Result{
		Front:              front,
		ReturnURL:          lctx.ReturnURL,
		CallerOrigin:       lctx.CallerOrigin,
		InitialScheme:      lctx.InitialScheme,
		CallingScheme:      lctx.CallingScheme,
		HasLoginFailure:    true,
		LoginFailureCode:   final.LoginFailureCode,
		LoginFailureReason: final.LoginFailureReason,
	}
}

// commitSuccess implements device-id propagation, expiration computation
// (including the impersonation special case), cookie emission, and token
// issuance for the response body.
func (o *Orchestrator) commitSuccess(slot *reqauth.Slot, w http.ResponseWriter, req *http.Request, now time.Time, lctx Context, final UserLoginResult) Result {
	dyn := o.dynamic.Current()

	deviceID := lctx.Current.Info.DeviceID
	if deviceID == "" {
		id, err := deviceid.New()
		if err != nil {
			o.logger.Error("login: minting device id", zap.Error(err))
		} else {
			deviceID = id
		}
	}

	var front authinfo.FrontAuthenticationInfo
	if lctx.ImpersonateActualUser && lctx.Current.Info.ActualUser.UserID != 0 && final.UserInfo.UserID != 0 {
		// §4.4 "do NOT regenerate identity" special case. criticalExpires is
		// intentionally left untouched here — the scheme critical time span
		// only ever applies to expires in this branch (§9 open question,
		// preserved deliberately, not a bug).
		expires := now.Add(dyn.ExpireTimeSpan)
		if span, ok := dyn.SchemesCriticalTimeSpan[lctx.CallingScheme]; ok && span > 0 {
			if ce := now.Add(span); expires.Before(ce) {
				expires = ce
			}
		}
		info := lctx.Current.Info.Impersonate(*final.UserInfo).SetExpires(expires)
		front = authinfo.FrontAuthenticationInfo{Info: info, RememberMe: lctx.Current.RememberMe}
	} else {
		expires := now.Add(dyn.ExpireTimeSpan)
		var criticalExpires *time.Time
		if span, ok := dyn.SchemesCriticalTimeSpan[lctx.CallingScheme]; ok && span > 0 {
			ce := now.Add(span)
			criticalExpires = &ce
			if expires.Before(ce) {
				expires = ce
			}
		}
		info := authinfo.Create(*final.UserInfo, &expires, criticalExpires, deviceID)
		front = authinfo.FrontAuthenticationInfo{Info: info, RememberMe: lctx.RememberMe}
	}

	slot.Replace(front, true)
	o.cookies.SetCookies(w, req, now, front)
	metrics.LoginOutcomes.WithLabelValues("success").Inc()
	if front.Info.IsImpersonated() {
		metrics.ImpersonationStarts.Inc()
	}

	token, err := o.protectors.Token.Protect(envelope.EncodeAuth(front.Info, front.RememberMe))
	if err != nil {
		o.logger.Error("login: protecting response token", zap.Error(err))
	}

	return Result{
		Front:         front,
		Token:         token,
		Refreshable:   front.Info.Level(now) >= authinfo.LevelNormal && dyn.SlidingExpirationTime > 0,
		ReturnURL:     lctx.ReturnURL,
		CallerOrigin:  lctx.CallerOrigin,
		InitialScheme: lctx.InitialScheme,
		CallingScheme: lctx.CallingScheme,
	}
}

// errorResult converts any error surfaced by validation or the backend into
// the Result shape §4.5/§7 describe, without touching the request slot or
// cookies: a rejected attempt leaves whatever identity the caller already
// had untouched.
func (o *Orchestrator) errorResult(lctx Context, err error) Result {
	r := Result{
		Front:         lctx.Current,
		ReturnURL:     lctx.ReturnURL,
		CallerOrigin:  lctx.CallerOrigin,
		InitialScheme: lctx.InitialScheme,
		CallingScheme: lctx.CallingScheme,
	}

	var policyErr *PolicyError
	var backendErr *BackendError
	var failureErr *LoginFailure
	switch {
	case errors.As(err, &policyErr):
		r.ErrorID = policyErr.ID
		if policyErr.Text != "" && policyErr.Text != string(policyErr.ID) {
			r.ErrorText = policyErr.Text
		}
		metrics.LoginOutcomes.WithLabelValues("policy_error").Inc()
	case errors.As(err, &backendErr):
		r.ErrorID = ErrorID(backendErr.TypeName)
		r.ErrorText = backendErr.Message
		metrics.LoginOutcomes.WithLabelValues("backend_error").Inc()
	case errors.As(err, &failureErr):
		r.HasLoginFailure = true
		r.LoginFailureCode = failureErr.Code
		r.LoginFailureReason = failureErr.Reason
		metrics.LoginOutcomes.WithLabelValues("login_failure").Inc()
	default:
		o.logger.Error("login: unrecognized error shape", zap.Error(err))
		r.ErrorID = ErrorInternal
		r.ErrorText = fmt.Sprintf("%v", err)
	}
	return r
}
