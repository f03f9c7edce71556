package login

import "github.com/arkeep-io/webauthcore/internal/authinfo"

// Result is the structured outcome UnifiedLogin hands to the response
// builder (C5). Exactly one of the success fields (Token) or the failure
// fields (ErrorID/LoginFailureCode) is meaningful, mirroring §4.5's two JSON
// shapes.
type Result struct {
	Front       authinfo.FrontAuthenticationInfo
	Token       string
	Refreshable bool

	ReturnURL    string
	CallerOrigin string

	ErrorID       ErrorID
	ErrorText     string
	InitialScheme string
	CallingScheme string
	UserData      *authinfo.UserInfo

	HasLoginFailure    bool
	LoginFailureCode   int
	LoginFailureReason string
}

// IsError reports whether Result represents any failure shape at all.
func (r Result) IsError() bool {
	return r.ErrorID != "" || r.HasLoginFailure
}
