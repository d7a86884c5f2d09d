package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Driver is the periodic clock that pumps a Registry. It wakes on a fixed
// interval (once a minute in production) and asks the registry to fire
// whatever is due. Each tick is a short-lived unit of work; there is no
// continuous event loop beyond the ticker itself.
type Driver struct {
	registry *Registry
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDriver creates a Driver ticking at the given interval.
func NewDriver(registry *Registry, interval time.Duration, logger *slog.Logger) *Driver {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Driver{
		registry: registry,
		logger:   logger,
		interval: interval,
	}
}

// Start begins ticking in a background goroutine until Stop is called or
// the parent context is cancelled. The first tick runs immediately so due
// work is not delayed by a full interval at startup.
func (d *Driver) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		d.logger.Info("schedule driver started",
			"tick_interval", d.interval,
			"schedules", d.registry.Names())

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		d.registry.Tick(ctx)

		for {
			select {
			case <-ctx.Done():
				d.logger.Info("schedule driver stopped")
				return
			case <-ticker.C:
				d.registry.Tick(ctx)
			}
		}
	}()
}

// Stop halts ticking and waits for an in-progress tick to finish.
func (d *Driver) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}
