// Package cookies implements the cookie manager (C3): emitting and clearing
// the session cookie and the long-term cookie according to policy. It is
// grounded on internal/api/auth.go's setRefreshCookie/clearRefreshCookie
// helpers, generalized from a single fixed-purpose refresh cookie to the
// two-cookie, policy-driven scheme this core requires.
package cookies

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
	"github.com/arkeep-io/webauthcore/internal/envelope"
	"github.com/arkeep-io/webauthcore/internal/protector"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
)

// Manager implements SetCookies/Logout (§4.3).
type Manager struct {
	protectors *protector.Set
	startup    reqauth.StartupOptions
	dynamic    reqauth.DynamicSource
	logger     *zap.Logger
}

func New(protectors *protector.Set, startup reqauth.StartupOptions, dynamic reqauth.DynamicSource, logger *zap.Logger) *Manager {
	return &Manager{protectors: protectors, startup: startup, dynamic: dynamic, logger: logger}
}

func (m *Manager) sessionCookiePath() string {
	if m.startup.CookieMode == reqauth.CookieModeWebFrontPath {
		return m.startup.EntryPath
	}
	return "/"
}

func (m *Manager) secure(req *http.Request) bool {
	switch m.startup.CookieSecurePolicy {
	case reqauth.CookieSecureAlways:
		return true
	case reqauth.CookieSecureSameAsRequest:
		return req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https"
	default:
		return false
	}
}

// SetCookies writes the long-term and/or session cookies for front, clearing
// whichever one's precondition does not hold, per §4.3.
func (m *Manager) SetCookies(w http.ResponseWriter, req *http.Request, now time.Time, front authinfo.FrontAuthenticationInfo) {
	dyn := m.dynamic.Current()

	if dyn.UseLongTermCookie && (front.RememberMe && front.Info.ActualUser.UserID != 0 || front.Info.DeviceID != "") {
		m.writeLongTermCookie(w, now, dyn, front)
	} else {
		m.clearLongTermCookie(w)
	}

	if m.startup.CookieMode != reqauth.CookieModeNone && front.Info.Level(now) >= authinfo.LevelNormal {
		if err := m.writeSessionCookie(w, req, front); err != nil {
			m.logger.Error("cookies: protecting session envelope", zap.Error(err))
			return
		}
	} else {
		m.clearSessionCookie(w, req)
	}
}

func (m *Manager) writeLongTermCookie(w http.ResponseWriter, now time.Time, dyn reqauth.DynamicOptions, front authinfo.FrontAuthenticationInfo) {
	payload := envelope.LongTermPayload{DeviceID: front.Info.DeviceID}
	if front.RememberMe && front.Info.ActualUser.UserID != 0 {
		payload.UserID = front.Info.ActualUser.UserID
		payload.UserName = front.Info.ActualUser.UserName
		for _, s := range front.Info.ActualUser.Schemes {
			payload.Schemes = append(payload.Schemes, envelope.LongTermScheme{Name: s.Name, LastUsed: s.LastUsedUTC})
		}
	}

	// Never AEAD-protected: the long-term cookie value is the plaintext JSON
	// payload (§3/§6/§9). The cookie is HttpOnly.
	plaintext, err := envelope.EncodeLongTerm(payload)
	if err != nil {
		m.logger.Error("cookies: encoding long-term payload", zap.Error(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.startup.AuthCookieName + "LT",
		Value:    string(plaintext),
		Expires:  now.Add(dyn.UnsafeExpireTimeSpan),
		HttpOnly: true,
		Secure:   false,
		Path:     m.sessionCookiePath(),
	})
}

func (m *Manager) clearLongTermCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.startup.AuthCookieName + "LT",
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   false,
		Path:     m.sessionCookiePath(),
	})
}

func (m *Manager) writeSessionCookie(w http.ResponseWriter, req *http.Request, front authinfo.FrontAuthenticationInfo) error {
	plaintext := envelope.EncodeAuth(front.Info, front.RememberMe)
	protected, err := m.protectors.Cookie.Protect(plaintext)
	if err != nil {
		return err
	}

	c := &http.Cookie{
		Name:     m.startup.AuthCookieName,
		Value:    protected,
		HttpOnly: true,
		Secure:   m.secure(req),
		Path:     m.sessionCookiePath(),
	}
	if front.RememberMe && front.Info.Expires != nil {
		c.Expires = *front.Info.Expires
	}
	http.SetCookie(w, c)
	return nil
}

func (m *Manager) clearSessionCookie(w http.ResponseWriter, req *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.startup.AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure(req),
		Path:     m.sessionCookiePath(),
	})
}

// Logout clears both cookies unconditionally. It does not touch the
// request's cached authentication info.
func (m *Manager) Logout(w http.ResponseWriter, req *http.Request) {
	m.clearLongTermCookie(w)
	m.clearSessionCookie(w, req)
}
