package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
	"github.com/arkeep-io/webauthcore/internal/envelope"
	"github.com/arkeep-io/webauthcore/internal/protector"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
)

func testProtectors(t *testing.T) *protector.Set {
	t.Helper()
	set, err := protector.NewSet([]byte("01234567890123456789012345678901"))
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func newResolver(t *testing.T, clock clockwork.Clock, startup reqauth.StartupOptions, dyn reqauth.DynamicOptions) (*Resolver, *protector.Set) {
	t.Helper()
	set := testProtectors(t)
	return New(set, startup, reqauth.StaticDynamicSource{Options: dyn}, zap.NewNop(), clock), set
}

func bearerToken(t *testing.T, set *protector.Set, info authinfo.AuthenticationInfo, rememberMe bool) string {
	t.Helper()
	s, err := set.Token.Protect(envelope.EncodeAuth(info, rememberMe))
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}
	return s
}

func sessionCookieValue(t *testing.T, set *protector.Set, info authinfo.AuthenticationInfo, rememberMe bool) string {
	t.Helper()
	s, err := set.Cookie.Protect(envelope.EncodeAuth(info, rememberMe))
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}
	return s
}

func TestBearerWinsOverSessionCookie(t *testing.T) {
	clock := clockwork.NewFakeClock()
	startup := reqauth.StartupOptions{AuthCookieName: "auth", BearerHeaderName: "Authorization", CookieMode: reqauth.CookieModeRootPath}
	r, set := newResolver(t, clock, startup, reqauth.DynamicOptions{})

	alice := authinfo.Create(authinfo.NewUser(1, "alice", nil), nil, nil, "DA")
	bob := authinfo.Create(authinfo.NewUser(2, "bob", nil), nil, nil, "DB")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, set, alice, false))
	req.AddCookie(&http.Cookie{Name: "auth", Value: sessionCookieValue(t, set, bob, false)})

	ctx := reqauth.WithSlot(context.Background())
	front, err := r.EnsureAuthenticationInfo(ctx, req)
	if err != nil {
		t.Fatalf("EnsureAuthenticationInfo: %v", err)
	}
	if front.Info.User.UserID != 1 {
		t.Fatalf("resolved user = %+v, want alice", front.Info.User)
	}
}

func TestLongTermCookieResolvesUnsafe(t *testing.T) {
	clock := clockwork.NewFakeClock()
	startup := reqauth.StartupOptions{AuthCookieName: "auth", BearerHeaderName: "Authorization", CookieMode: reqauth.CookieModeRootPath}
	r, _ := newResolver(t, clock, startup, reqauth.DynamicOptions{UseLongTermCookie: true})

	payload, err := envelope.EncodeLongTerm(envelope.LongTermPayload{
		UserID:   3,
		UserName: "Nicole",
		Schemes:  []envelope.LongTermScheme{{Name: "Provider", LastUsed: clock.Now()}},
		DeviceID: "D1",
	})
	if err != nil {
		t.Fatalf("EncodeLongTerm: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "authLT", Value: string(payload)})

	ctx := reqauth.WithSlot(context.Background())
	front, err := r.EnsureAuthenticationInfo(ctx, req)
	if err != nil {
		t.Fatalf("EnsureAuthenticationInfo: %v", err)
	}
	if front.Info.Level(clock.Now()) != authinfo.LevelUnsafe {
		t.Fatalf("level = %v, want Unsafe", front.Info.Level(clock.Now()))
	}
	if front.Info.User.UserName != "Nicole" || front.Info.DeviceID != "D1" {
		t.Fatalf("resolved info = %+v", front.Info)
	}
	if len(front.Info.User.Schemes) != 1 || front.Info.User.Schemes[0].Name != "Provider" {
		t.Fatalf("resolved schemes = %+v, want [Provider]", front.Info.User.Schemes)
	}
	if front.RememberMe {
		t.Fatal("RememberMe = true for long-term-cookie-only resolution, want false (§9 open question)")
	}
}

func TestSynthesizeOnRootPathWithNoEnvelope(t *testing.T) {
	clock := clockwork.NewFakeClock()
	startup := reqauth.StartupOptions{AuthCookieName: "auth", BearerHeaderName: "Authorization", CookieMode: reqauth.CookieModeRootPath}
	r, _ := newResolver(t, clock, startup, reqauth.DynamicOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := reqauth.WithSlot(context.Background())
	front, err := r.EnsureAuthenticationInfo(ctx, req)
	if err != nil {
		t.Fatalf("EnsureAuthenticationInfo: %v", err)
	}
	if front.Info.DeviceID == "" {
		t.Fatal("synthesize path did not mint a device id")
	}
	if !front.Info.User.IsAnonymous() {
		t.Fatalf("synthesized info is not anonymous: %+v", front.Info.User)
	}
	if !reqauth.SlotFrom(ctx).ShouldWriteCookie() {
		t.Fatal("synthesize path did not schedule a cookie write")
	}
}

func TestEmptyPathReturnsNoneWithoutCookieWrite(t *testing.T) {
	clock := clockwork.NewFakeClock()
	startup := reqauth.StartupOptions{AuthCookieName: "auth", BearerHeaderName: "Authorization", CookieMode: reqauth.CookieModeNone}
	r, _ := newResolver(t, clock, startup, reqauth.DynamicOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := reqauth.WithSlot(context.Background())
	front, err := r.EnsureAuthenticationInfo(ctx, req)
	if err != nil {
		t.Fatalf("EnsureAuthenticationInfo: %v", err)
	}
	if front.Info.DeviceID != "" {
		t.Fatalf("expected None info, got device id %q", front.Info.DeviceID)
	}
	if reqauth.SlotFrom(ctx).ShouldWriteCookie() {
		t.Fatal("empty path must not schedule a cookie write")
	}
}

func TestSlidingRenewalAtThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now().UTC()
	startup := reqauth.StartupOptions{AuthCookieName: "auth", BearerHeaderName: "Authorization", CookieMode: reqauth.CookieModeRootPath}
	dyn := reqauth.DynamicOptions{SlidingExpirationTime: 60 * time.Second}
	r, set := newResolver(t, clock, startup, dyn)

	exp := now.Add(30 * time.Second) // exactly at half-sliding threshold
	alice := authinfo.Create(authinfo.NewUser(1, "alice", nil), &exp, nil, "D1")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: sessionCookieValue(t, set, alice, true)})

	ctx := reqauth.WithSlot(context.Background())
	front, err := r.EnsureAuthenticationInfo(ctx, req)
	if err != nil {
		t.Fatalf("EnsureAuthenticationInfo: %v", err)
	}
	wantExpires := now.Add(60 * time.Second)
	if front.Info.Expires == nil || !front.Info.Expires.Equal(wantExpires) {
		t.Fatalf("Expires = %v, want %v", front.Info.Expires, wantExpires)
	}
	if !reqauth.SlotFrom(ctx).ShouldWriteCookie() {
		t.Fatal("sliding renewal at threshold did not schedule a cookie write")
	}
}

func TestSlidingNoRenewalBeforeThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now().UTC()
	startup := reqauth.StartupOptions{AuthCookieName: "auth", BearerHeaderName: "Authorization", CookieMode: reqauth.CookieModeRootPath}
	dyn := reqauth.DynamicOptions{SlidingExpirationTime: 60 * time.Second}
	r, set := newResolver(t, clock, startup, dyn)

	exp := now.Add(45 * time.Second) // well above half-sliding (30s)
	alice := authinfo.Create(authinfo.NewUser(1, "alice", nil), &exp, nil, "D1")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: sessionCookieValue(t, set, alice, true)})

	ctx := reqauth.WithSlot(context.Background())
	front, err := r.EnsureAuthenticationInfo(ctx, req)
	if err != nil {
		t.Fatalf("EnsureAuthenticationInfo: %v", err)
	}
	if !front.Info.Expires.Equal(exp) {
		t.Fatalf("Expires = %v, want unchanged %v", front.Info.Expires, exp)
	}
	if reqauth.SlotFrom(ctx).ShouldWriteCookie() {
		t.Fatal("sliding renewal fired before threshold")
	}
}
