package login

import "strings"

// ValidateCoreParameters implements §4.4's ValidateCoreParameters step.
func ValidateCoreParameters(lctx Context, allowedReturnURLs []string) error {
	if lctx.Mode == ModeStartLogin {
		hasReturnURL := lctx.ReturnURL != ""
		hasCallerOrigin := lctx.CallerOrigin != ""
		if hasReturnURL == hasCallerOrigin {
			return &PolicyError{ID: ErrorReturnXOrCaller}
		}
	}

	if lctx.Current.Info.IsImpersonated() && !lctx.ImpersonateActualUser {
		return &PolicyError{ID: ErrorLoginWhileImpersonation}
	}

	if lctx.ReturnURL != "" {
		allowed := false
		for _, prefix := range allowedReturnURLs {
			if strings.HasPrefix(lctx.ReturnURL, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return &PolicyError{ID: ErrorDisallowedReturnURL}
		}
	}

	return nil
}
