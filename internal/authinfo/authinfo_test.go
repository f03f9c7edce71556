package authinfo

import (
	"testing"
	"time"
)

func TestLevelNone(t *testing.T) {
	now := time.Now()
	if got := None().Level(now); got != LevelNone {
		t.Fatalf("None().Level() = %v, want LevelNone", got)
	}
}

func TestLevelUnsafe(t *testing.T) {
	now := time.Now()
	a := Create(NewUser(3, "nicole", nil), nil, nil, "D1")
	if got := a.Level(now); got != LevelUnsafe {
		t.Fatalf("Level() = %v, want LevelUnsafe", got)
	}

	past := now.Add(-time.Hour)
	a = Create(NewUser(3, "nicole", nil), &past, nil, "D1")
	if got := a.Level(now); got != LevelUnsafe {
		t.Fatalf("Level() with past expiry = %v, want LevelUnsafe", got)
	}
}

func TestLevelNormalAndCritical(t *testing.T) {
	now := time.Now()
	exp := now.Add(6 * time.Hour)
	a := Create(NewUser(1, "alice", nil), &exp, nil, "D1")
	if got := a.Level(now); got != LevelNormal {
		t.Fatalf("Level() = %v, want LevelNormal", got)
	}

	cexp := now.Add(3 * time.Hour)
	a = Create(NewUser(1, "alice", nil), &exp, &cexp, "D1")
	if got := a.Level(now); got != LevelCritical {
		t.Fatalf("Level() = %v, want LevelCritical", got)
	}
}

func TestLevelMonotonicityOverTime(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	cexp := now.Add(30 * time.Minute)
	a := Create(NewUser(1, "alice", nil), &exp, &cexp, "D1")

	levels := []Level{
		a.Level(now),
		a.Level(now.Add(29 * time.Minute)),
		a.Level(now.Add(31 * time.Minute)),
		a.Level(now.Add(61 * time.Minute)),
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] > levels[i-1] {
			t.Fatalf("level increased over time: %v -> %v", levels[i-1], levels[i])
		}
	}
	if levels[len(levels)-1] != LevelUnsafe {
		t.Fatalf("final level = %v, want LevelUnsafe", levels[len(levels)-1])
	}
}

func TestCriticalExpiresClampedToExpires(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	cexp := now.Add(2 * time.Hour) // later than expires
	a := Create(NewUser(1, "alice", nil), &exp, &cexp, "D1")
	if a.CriticalExpires == nil || !a.CriticalExpires.Equal(exp) {
		t.Fatalf("criticalExpires not clamped to expires: %v", a.CriticalExpires)
	}
}

func TestSetCriticalExpiresRaisesExpires(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	a := Create(NewUser(1, "alice", nil), &exp, nil, "D1")

	later := now.Add(2 * time.Hour)
	a = a.SetCriticalExpires(later)
	if a.Expires == nil || !a.Expires.Equal(later) {
		t.Fatalf("expires not raised to match later criticalExpires: %v", a.Expires)
	}
}

func TestImpersonationPreservesActualUser(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	original := Create(NewUser(1, "alice", nil), &exp, nil, "D1")
	target := NewUser(2, "bob", nil)

	impersonated := original.Impersonate(target)
	if !impersonated.ActualUser.Equal(original.ActualUser) {
		t.Fatalf("actualUser changed after Impersonate: %+v", impersonated.ActualUser)
	}
	if !impersonated.IsImpersonated() {
		t.Fatal("IsImpersonated() = false, want true")
	}

	cleared := impersonated.ClearImpersonation()
	if cleared.IsImpersonated() {
		t.Fatal("IsImpersonated() = true after ClearImpersonation")
	}
	if !cleared.User.Equal(original.ActualUser) {
		t.Fatalf("User after ClearImpersonation = %+v, want %+v", cleared.User, original.ActualUser)
	}
}

func TestCheckExpirationDemotesPastTimestamps(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	a := Create(NewUser(1, "alice", nil), &past, nil, "D1")

	checked := a.CheckExpiration(now)
	if checked.Expires != nil {
		t.Fatalf("Expires not cleared: %v", checked.Expires)
	}
	if checked.Level(now) != LevelUnsafe {
		t.Fatalf("Level() after CheckExpiration = %v, want LevelUnsafe", checked.Level(now))
	}
}

func TestUserInfoAnonymousInvariant(t *testing.T) {
	u := NewUser(0, "should-be-dropped", []SchemeUse{{Name: "Basic"}})
	if !u.IsAnonymous() {
		t.Fatal("IsAnonymous() = false for userId 0")
	}
	if u.UserName != "" || len(u.Schemes) != 0 {
		t.Fatalf("anonymous user retained name/schemes: %+v", u)
	}
}
