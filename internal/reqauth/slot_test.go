package reqauth

import (
	"context"
	"sync"
	"testing"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
)

func TestSlotResolveRunsOnce(t *testing.T) {
	ctx := WithSlot(context.Background())
	slot := SlotFrom(ctx)

	calls := 0
	resolve := func() (authinfo.FrontAuthenticationInfo, bool, error) {
		calls++
		return authinfo.FrontAuthenticationInfo{Info: authinfo.Create(authinfo.NewUser(1, "alice", nil), nil, nil, "D1")}, false, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := slot.Resolve(resolve); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("resolve called %d times, want 1", calls)
	}
}

func TestSlotFromPanicsWithoutWithSlot(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("SlotFrom without WithSlot: want panic, got none")
		}
	}()
	SlotFrom(context.Background())
}

func TestSlotReplaceOverridesCurrent(t *testing.T) {
	ctx := WithSlot(context.Background())
	slot := SlotFrom(ctx)

	_, _ = slot.Resolve(func() (authinfo.FrontAuthenticationInfo, bool, error) {
		return authinfo.NoneFront(), false, nil
	})

	replacement := authinfo.FrontAuthenticationInfo{Info: authinfo.Create(authinfo.NewUser(9, "bob", nil), nil, nil, "D2")}
	slot.Replace(replacement, true)

	if !slot.Current().Info.User.Equal(replacement.Info.User) {
		t.Fatalf("Current() = %+v, want %+v", slot.Current(), replacement)
	}
	if !slot.ShouldWriteCookie() {
		t.Fatal("ShouldWriteCookie() = false after forced Replace(writeCookie=true)")
	}
}
