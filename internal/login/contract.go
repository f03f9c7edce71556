package login

import (
	"context"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
	"github.com/arkeep-io/webauthcore/internal/envelope"
)

// Mode distinguishes a fresh interactive login from the other
// login-producing paths (refresh, impersonate, ...) that skip the
// return-url/caller-origin requirement.
type Mode int

const (
	ModeStartLogin Mode = iota
	ModeOther
)

// Context carries everything UnifiedLogin needs about the attempt that isn't
// part of the backend's own payload: where the caller came from, what the
// current (pre-login) identity is, and the impersonation/remember-me flags
// that shape the post-login AuthenticationInfo.
type Context struct {
	Mode                  Mode
	Current               authinfo.FrontAuthenticationInfo
	InitialScheme         string
	CallingScheme         string
	ReturnURL             string
	CallerOrigin          string
	ImpersonateActualUser bool
	RememberMe            bool
	Extra                 *envelope.ExtraData
}

// UserLoginResult is the login backend's verdict, mirroring §6's contract
// exactly. IsSuccess reports UserInfo != nil per the spec's
// "isSuccess ⇔ userInfo ≠ null" rule.
type UserLoginResult struct {
	UserInfo           *authinfo.UserInfo
	LoginFailureCode   int
	LoginFailureReason string
	IsUnregisteredUser bool
}

func (u UserLoginResult) IsSuccess() bool {
	return u.UserInfo != nil
}

// LoginFn wraps a concrete login backend call. actualLogin distinguishes a
// dry run (validator present, not yet approved) from a committing call.
type LoginFn func(ctx context.Context, actualLogin bool) (UserLoginResult, error)

// Validator, AutoBindService, and AutoCreateService are the three optional
// capabilities §9 describes as "explicit optional capabilities on the
// service constructor; a missing capability is represented by absence, not
// by a no-op implementation". The orchestrator only calls these when
// constructed WithValidator/WithAutoBindService/WithAutoCreateService; a nil field means
// the capability does not exist, which is semantically different from one
// that always declines.
type Validator interface {
	Validate(ctx context.Context, lctx Context, result UserLoginResult) (*UserLoginResult, error)
}

type AutoBindService interface {
	AutoBind(ctx context.Context, lctx Context, result UserLoginResult) (*UserLoginResult, error)
}

type AutoCreateService interface {
	AutoCreate(ctx context.Context, lctx Context, result UserLoginResult) (*UserLoginResult, error)
}
