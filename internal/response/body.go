// Package response implements the response builder (C5): it turns a
// login.Result into the success/failure JSON body described by §4.5, and
// writes it back either as a 302 redirect (returnUrl flow) or as an
// html/template-escaped popup postMessage page (callerOrigin flow).
// Grounded on internal/api/response.go's envelope/JSON helpers, generalized
// to the two JSON shapes and the redirect/popup split this core requires.
package response

import (
	"strconv"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
	"github.com/arkeep-io/webauthcore/internal/login"
)

// Body is the JSON shape written to the client, covering both the success
// and failure cases of §4.5. Fields only meaningful on failure are
// omitempty.
type Body struct {
	Info        *authinfo.AuthenticationInfo `json:"info"`
	Token       string                       `json:"token,omitempty"`
	Refreshable bool                         `json:"refreshable"`
	RememberMe  bool                         `json:"rememberMe"`

	ErrorID            string             `json:"errorId,omitempty"`
	ErrorText          string             `json:"errorText,omitempty"`
	InitialScheme      string             `json:"initialScheme,omitempty"`
	CallingScheme      string             `json:"callingScheme,omitempty"`
	UserData           *authinfo.UserInfo `json:"userData,omitempty"`
	LoginFailureCode   *int               `json:"loginFailureCode,omitempty"`
	LoginFailureReason string             `json:"loginFailureReason,omitempty"`
}

// BuildBody translates a login.Result into the wire Body.
func BuildBody(result login.Result) Body {
	b := Body{
		Token:       result.Token,
		Refreshable: result.Refreshable,
		RememberMe:  result.Front.RememberMe,
	}
	if !result.Front.Info.User.IsAnonymous() || result.Front.Info.DeviceID != "" {
		info := result.Front.Info
		b.Info = &info
	}

	if result.ErrorID != "" {
		b.ErrorID = string(result.ErrorID)
		if result.ErrorText != "" && result.ErrorText != string(result.ErrorID) {
			b.ErrorText = result.ErrorText
		}
	}
	if result.HasLoginFailure {
		code := result.LoginFailureCode
		b.LoginFailureCode = &code
		b.LoginFailureReason = result.LoginFailureReason
	}
	if result.IsError() {
		b.InitialScheme = result.InitialScheme
		b.CallingScheme = result.CallingScheme
	}
	return b
}

// redirectQueryParams returns the error-only query parameters §4.5 appends
// to a returnUrl redirect. Never called for a successful result.
func redirectQueryParams(result login.Result) map[string]string {
	params := map[string]string{}
	if result.ErrorID != "" {
		params["errorId"] = string(result.ErrorID)
		if result.ErrorText != "" && result.ErrorText != string(result.ErrorID) {
			params["errorText"] = result.ErrorText
		}
	}
	if result.HasLoginFailure {
		params["loginFailureCode"] = strconv.Itoa(result.LoginFailureCode)
	}
	if result.InitialScheme != "" {
		params["initialScheme"] = result.InitialScheme
	}
	if result.CallingScheme != "" {
		params["callingScheme"] = result.CallingScheme
	}
	return params
}
