// Package optionsource implements the monitored DynamicSource described by
// §5's "Options hot-reload" rule: a background poller re-reads dynamic
// settings from an external source (file, database, config service) on a
// fixed schedule and swaps them into an atomic snapshot, so every request
// sees the latest values without blocking on I/O. Grounded on
// internal/scheduler/scheduler.go's gocron wiring, repurposed from
// dispatching backup jobs to refreshing a config snapshot.
package optionsource

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/reqauth"
)

// Loader fetches the current dynamic options from wherever they are
// authoritatively stored (a config file, a feature-flag service, ...).
type Loader func(ctx context.Context) (reqauth.DynamicOptions, error)

// Monitored is a gocron-polled DynamicSource: Current always returns the
// most recently successfully loaded snapshot, even if the most recent poll
// failed.
type Monitored struct {
	load     Loader
	logger   *zap.Logger
	snapshot atomic.Pointer[reqauth.DynamicOptions]
	scheduler gocron.Scheduler
}

// New performs an initial synchronous Load so Current never returns a zero
// snapshot, then schedules background refreshes every interval.
func New(ctx context.Context, load Loader, interval time.Duration, logger *zap.Logger) (*Monitored, error) {
	m := &Monitored{load: load, logger: logger}

	initial, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("optionsource: initial load: %w", err)
	}
	m.snapshot.Store(&initial)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("optionsource: creating scheduler: %w", err)
	}
	m.scheduler = scheduler

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.refresh),
	)
	if err != nil {
		return nil, fmt.Errorf("optionsource: scheduling refresh: %w", err)
	}

	scheduler.Start()
	return m, nil
}

func (m *Monitored) refresh() {
	opts, err := m.load(context.Background())
	if err != nil {
		m.logger.Warn("optionsource: refresh failed, keeping previous snapshot", zap.Error(err))
		return
	}
	m.snapshot.Store(&opts)
}

// Current implements reqauth.DynamicSource.
func (m *Monitored) Current() reqauth.DynamicOptions {
	return *m.snapshot.Load()
}

// Close stops the background scheduler.
func (m *Monitored) Close() error {
	return m.scheduler.Shutdown()
}
