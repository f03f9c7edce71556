package authinfo

import "time"

// AuthenticationInfo is the immutable core authentication record. Zero value
// is a valid (if somewhat degenerate) anonymous info; prefer None() for the
// distinguished empty value described by the spec.
type AuthenticationInfo struct {
	ActualUser      UserInfo
	User            UserInfo
	Expires         *time.Time
	CriticalExpires *time.Time
	DeviceID        string
}

// None is the distinguished empty AuthenticationInfo: anonymous, no
// expiration, no device id. Resolvers return this only when no envelope was
// found and no cookie write was scheduled.
func None() AuthenticationInfo {
	return AuthenticationInfo{}
}

// Create builds an AuthenticationInfo for a freshly-resolved or freshly
// logged-in identity. actualUser and user are set to the same identity;
// callers that need impersonation call Impersonate afterwards. The
// criticalExpires <= expires invariant is restored by clamping
// criticalExpires down if necessary.
func Create(user UserInfo, expires, criticalExpires *time.Time, deviceID string) AuthenticationInfo {
	a := AuthenticationInfo{
		ActualUser: user,
		User:       user,
		Expires:    expires,
		DeviceID:   deviceID,
	}
	if criticalExpires != nil {
		ce := *criticalExpires
		a.CriticalExpires = &ce
	}
	return a.clampCritical()
}

// Level computes the derived authentication level as of now.
func (a AuthenticationInfo) Level(now time.Time) Level {
	switch {
	case a.ActualUser.IsAnonymous() && a.Expires == nil:
		return LevelNone
	case a.Expires == nil || !a.Expires.After(now):
		if a.ActualUser.IsAnonymous() {
			return LevelNone
		}
		return LevelUnsafe
	case a.CriticalExpires != nil && a.CriticalExpires.After(now):
		return LevelCritical
	default:
		return LevelNormal
	}
}

// IsImpersonated reports whether the effective user differs from the actual
// (operating) user.
func (a AuthenticationInfo) IsImpersonated() bool {
	return !a.User.Equal(a.ActualUser)
}

// SetExpires returns a copy of a with Expires set to t. CriticalExpires is
// clamped down to t if it would otherwise exceed it.
func (a AuthenticationInfo) SetExpires(t time.Time) AuthenticationInfo {
	next := a
	next.Expires = &t
	return next.clampCritical()
}

// SetCriticalExpires returns a copy of a with CriticalExpires set to t. If
// Expires is absent or earlier than t, Expires is raised to t so the
// criticalExpires <= expires invariant holds.
func (a AuthenticationInfo) SetCriticalExpires(t time.Time) AuthenticationInfo {
	next := a
	next.CriticalExpires = &t
	if next.Expires == nil || next.Expires.Before(t) {
		next.Expires = &t
	}
	return next
}

// Impersonate returns a copy of a acting as other, while ActualUser (the
// real operator) is preserved.
func (a AuthenticationInfo) Impersonate(other UserInfo) AuthenticationInfo {
	next := a
	next.User = other
	return next
}

// ClearImpersonation returns a copy of a with User reset to ActualUser.
func (a AuthenticationInfo) ClearImpersonation() AuthenticationInfo {
	next := a
	next.User = a.ActualUser
	return next
}

// CheckExpiration returns a, or a demoted copy with Expires/CriticalExpires
// cleared wherever they have already passed as of now. Clearing Expires
// necessarily clears CriticalExpires too, since the latter can never exceed
// the former.
func (a AuthenticationInfo) CheckExpiration(now time.Time) AuthenticationInfo {
	next := a
	if next.Expires != nil && !next.Expires.After(now) {
		next.Expires = nil
		next.CriticalExpires = nil
		return next
	}
	if next.CriticalExpires != nil && !next.CriticalExpires.After(now) {
		next.CriticalExpires = nil
	}
	return next
}

// clampCritical enforces CriticalExpires <= Expires, clamping
// CriticalExpires down (or clearing it if Expires is absent) when necessary.
func (a AuthenticationInfo) clampCritical() AuthenticationInfo {
	if a.CriticalExpires == nil {
		return a
	}
	if a.Expires == nil || a.CriticalExpires.After(*a.Expires) {
		next := a
		if a.Expires == nil {
			next.CriticalExpires = nil
		} else {
			ce := *a.Expires
			next.CriticalExpires = &ce
		}
		return next
	}
	return a
}

// FrontAuthenticationInfo pairs an AuthenticationInfo with the rememberMe
// flag that controls cookie persistence and long-term identity carriage.
type FrontAuthenticationInfo struct {
	Info       AuthenticationInfo
	RememberMe bool
}

// NoneFront is the distinguished empty FrontAuthenticationInfo.
func NoneFront() FrontAuthenticationInfo {
	return FrontAuthenticationInfo{Info: None()}
}
