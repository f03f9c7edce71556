package optionsource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/reqauth"
)

func TestNewPerformsInitialSynchronousLoad(t *testing.T) {
	var calls atomic.Int32
	load := func(ctx context.Context) (reqauth.DynamicOptions, error) {
		calls.Add(1)
		return reqauth.DynamicOptions{ExpireTimeSpan: time.Hour}, nil
	}

	m, err := New(context.Background(), load, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if calls.Load() != 1 {
		t.Fatalf("load called %d times before New returned, want 1", calls.Load())
	}
	if m.Current().ExpireTimeSpan != time.Hour {
		t.Fatalf("Current() = %+v", m.Current())
	}
}

func TestNewFailsOnInitialLoadError(t *testing.T) {
	boom := errors.New("config service unreachable")
	load := func(ctx context.Context) (reqauth.DynamicOptions, error) {
		return reqauth.DynamicOptions{}, boom
	}

	if _, err := New(context.Background(), load, time.Hour, zap.NewNop()); !errors.Is(err, boom) {
		t.Fatalf("New() err = %v, want wrapping %v", err, boom)
	}
}

func TestRefreshKeepsPreviousSnapshotOnError(t *testing.T) {
	good := reqauth.DynamicOptions{ExpireTimeSpan: time.Hour}
	m := &Monitored{
		load: func(ctx context.Context) (reqauth.DynamicOptions, error) {
			return reqauth.DynamicOptions{}, errors.New("transient failure")
		},
		logger: zap.NewNop(),
	}
	m.snapshot.Store(&good)

	m.refresh()

	if m.Current().ExpireTimeSpan != time.Hour {
		t.Fatalf("Current() = %+v, want snapshot preserved across failed refresh", m.Current())
	}
}
