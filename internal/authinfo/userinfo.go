// Package authinfo implements the immutable authentication value model: the
// operator's UserInfo, the combined AuthenticationInfo (actual vs. effective
// identity, expiration, device id), and the front-facing
// FrontAuthenticationInfo that additionally carries the rememberMe flag.
//
// Every operation here returns a new value rather than mutating the
// receiver. Callers that need to update state replace their reference with
// the returned copy.
package authinfo

import "time"

// SchemeUse records the last time a named login scheme was used by a user.
type SchemeUse struct {
	Name        string
	LastUsedUTC time.Time
}

// UserInfo identifies an operator. UserID 0 is the distinguished anonymous
// user: UserName and Schemes are empty whenever UserID is 0, and never
// empty-but-present otherwise is not required — schemes may legitimately be
// empty for a registered user that has not logged in through a tracked
// scheme yet.
type UserInfo struct {
	UserID   int64
	UserName string
	Schemes  []SchemeUse
}

// Anonymous is the distinguished zero-value anonymous user.
var Anonymous = UserInfo{}

// NewUser builds a UserInfo. A zero id always collapses to the anonymous
// value regardless of what the caller passed for name/schemes. A non-zero id
// is kept with whatever name and schemes were passed, including none.
func NewUser(userID int64, userName string, schemes []SchemeUse) UserInfo {
	if userID == 0 {
		return Anonymous
	}
	return UserInfo{UserID: userID, UserName: userName, Schemes: schemes}
}

// IsAnonymous reports whether u is the anonymous user.
func (u UserInfo) IsAnonymous() bool {
	return u.UserID == 0
}

// Equal reports whether u and other identify the same user. Schemes are not
// part of identity and are intentionally excluded from the comparison.
func (u UserInfo) Equal(other UserInfo) bool {
	return u.UserID == other.UserID && u.UserName == other.UserName
}

// WithSchemeUse returns a copy of u with scheme recorded as used at lastUsed,
// replacing any existing entry for the same scheme name and appending
// otherwise. It is a no-op on the anonymous user.
func (u UserInfo) WithSchemeUse(scheme string, lastUsed time.Time) UserInfo {
	if u.IsAnonymous() {
		return u
	}
	next := make([]SchemeUse, 0, len(u.Schemes)+1)
	found := false
	for _, s := range u.Schemes {
		if s.Name == scheme {
			next = append(next, SchemeUse{Name: scheme, LastUsedUTC: lastUsed})
			found = true
			continue
		}
		next = append(next, s)
	}
	if !found {
		next = append(next, SchemeUse{Name: scheme, LastUsedUTC: lastUsed})
	}
	return UserInfo{UserID: u.UserID, UserName: u.UserName, Schemes: next}
}
