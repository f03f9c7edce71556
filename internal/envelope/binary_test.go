package envelope

import (
	"testing"
	"time"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
)

func TestEncodeDecodeAuthRoundtrip(t *testing.T) {
	now := time.Now().UTC().Round(time.Nanosecond)
	exp := now.Add(time.Hour)
	cexp := now.Add(30 * time.Minute)
	user := authinfo.NewUser(7, "alice", []authinfo.SchemeUse{{Name: "Basic", LastUsedUTC: now}})
	info := authinfo.Create(user, &exp, &cexp, "device-123")

	encoded := EncodeAuth(info, true)
	decoded, rememberMe, err := DecodeAuth(encoded)
	if err != nil {
		t.Fatalf("DecodeAuth: %v", err)
	}
	if !rememberMe {
		t.Fatal("rememberMe decoded false, want true")
	}
	if decoded.DeviceID != info.DeviceID {
		t.Fatalf("DeviceID = %q, want %q", decoded.DeviceID, info.DeviceID)
	}
	if !decoded.User.Equal(info.User) {
		t.Fatalf("User = %+v, want %+v", decoded.User, info.User)
	}
	if !decoded.Expires.Equal(*info.Expires) {
		t.Fatalf("Expires = %v, want %v", decoded.Expires, info.Expires)
	}
	if !decoded.CriticalExpires.Equal(*info.CriticalExpires) {
		t.Fatalf("CriticalExpires = %v, want %v", decoded.CriticalExpires, info.CriticalExpires)
	}
	if len(decoded.User.Schemes) != 1 || decoded.User.Schemes[0].Name != "Basic" {
		t.Fatalf("Schemes = %+v", decoded.User.Schemes)
	}
}

func TestEncodeDecodeAuthNoneRoundtrip(t *testing.T) {
	encoded := EncodeAuth(authinfo.None(), false)
	decoded, rememberMe, err := DecodeAuth(encoded)
	if err != nil {
		t.Fatalf("DecodeAuth: %v", err)
	}
	if rememberMe {
		t.Fatal("rememberMe decoded true, want false")
	}
	if !decoded.User.IsAnonymous() || !decoded.ActualUser.IsAnonymous() {
		t.Fatalf("decoded None() is not anonymous: %+v", decoded)
	}
	if decoded.Expires != nil || decoded.CriticalExpires != nil {
		t.Fatal("decoded None() carries expiry timestamps")
	}
}

func TestDecodeAuthTruncatedInput(t *testing.T) {
	encoded := EncodeAuth(authinfo.None(), false)
	truncated := encoded[:len(encoded)-1]
	if _, _, err := DecodeAuth(truncated); err == nil {
		t.Fatal("DecodeAuth(truncated): want error, got nil")
	}
}
