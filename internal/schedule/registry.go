package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sableword/presswork/internal/store"
)

// DefaultTolerance is how far past a scheduled wall-clock instant a trigger
// still fires. Ticks are coarse (typically one minute) so firing requires a
// window, and MarkRun suppresses repeats inside the same window.
const DefaultTolerance = 5 * time.Minute

// RunnerFunc is the work bound to a named trigger.
type RunnerFunc func(ctx context.Context) error

// entry pairs a registered recurrence with its runner.
type entry struct {
	name       string
	recurrence Recurrence
	run        RunnerFunc
}

// Registry maps named recurring triggers to recurrences and runners, arming
// each exactly once. Arming state lives in the ScheduleStore so registration
// stays idempotent across process restarts: if a next-run timestamp already
// exists for a name, re-registration changes nothing.
type Registry struct {
	store     store.ScheduleStore
	logger    *slog.Logger
	tolerance time.Duration

	// now is the clock source, injectable for tests.
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithTolerance overrides the wall-clock firing window.
func WithTolerance(d time.Duration) RegistryOption {
	return func(r *Registry) { r.tolerance = d }
}

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a Registry backed by the given schedule store.
func NewRegistry(scheduleStore store.ScheduleStore, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:     scheduleStore,
		logger:    logger,
		tolerance: DefaultTolerance,
		now:       func() time.Time { return time.Now().UTC() },
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a named trigger to a recurrence and runner. If the name has
// no armed next-run timestamp yet, one is computed (the next occurrence
// strictly after now) and persisted. Registering an already-armed name is a
// no-op for the stored state, which prevents duplicate timers accumulating
// across restarts.
//
// Returns an error wrapping ErrInvalidRecurrence for a malformed recurrence;
// the schedule is then not armed.
func (r *Registry) Register(ctx context.Context, name string, rec Recurrence, run RunnerFunc) error {
	if name == "" {
		return fmt.Errorf("%w: schedule name cannot be empty", ErrInvalidRecurrence)
	}
	if err := rec.Validate(); err != nil {
		r.logger.Error("rejecting schedule with invalid recurrence",
			"schedule", name,
			"error", err)
		return err
	}

	now := r.now()
	nextRun := rec.Next(now)
	if nextRun.IsZero() {
		r.logger.Error("rejecting schedule with no future occurrence",
			"schedule", name)
		return fmt.Errorf("%w: recurrence has no occurrence within the scan horizon", ErrInvalidRecurrence)
	}

	armed, err := r.store.Arm(ctx, name, nextRun)
	if err != nil {
		return fmt.Errorf("failed to arm schedule %q: %w", name, err)
	}

	if armed {
		r.logger.Info("schedule armed",
			"schedule", name,
			"next_run_at", nextRun)
	} else {
		r.logger.Debug("schedule already armed",
			"schedule", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &entry{name: name, recurrence: rec, run: run}

	return nil
}

// IsDue reports whether the named trigger should fire at the given instant.
//
// Interval recurrences are due when the interval has elapsed since the last
// run (or since arming, for a trigger that has never fired). Wall-clock and
// cron recurrences are due when now falls inside the tolerance window after
// the armed next-run instant and the trigger has not already fired inside
// that window.
func (r *Registry) IsDue(ctx context.Context, name string, now time.Time) (bool, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("schedule %q is not registered", name)
	}

	state, err := r.store.Get(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to load schedule state for %q: %w", name, err)
	}

	if e.recurrence.IsInterval() {
		if state.LastRunAt == nil {
			return !now.Before(state.NextRunAt), nil
		}
		return !now.Before(state.LastRunAt.Add(e.recurrence.Interval())), nil
	}

	// Wall-clock instant with tolerance window.
	windowStart := state.NextRunAt
	windowEnd := state.NextRunAt.Add(r.tolerance)
	if now.Before(windowStart) {
		return false, nil
	}
	if !now.Before(windowEnd) {
		// The window passed without a run: the daemon was down across it,
		// or a tick landed past the tolerance. MarkRun is what normally
		// advances next_run_at, so without intervention the trigger would
		// stay frozen on the missed instant forever. Roll it forward to
		// the next occurrence; the missed run is not made up.
		next := e.recurrence.Next(now)
		if next.IsZero() {
			r.logger.Error("missed schedule has no future occurrence, leaving unarmed",
				"schedule", name,
				"missed_run_at", windowStart)
			return false, nil
		}
		if err := r.store.Rearm(ctx, name, next); err != nil {
			return false, fmt.Errorf("failed to re-arm missed schedule %q: %w", name, err)
		}
		r.logger.Warn("schedule window missed, re-armed for next occurrence",
			"schedule", name,
			"missed_run_at", windowStart,
			"next_run_at", next)
		return false, nil
	}
	if state.LastRunAt != nil && !state.LastRunAt.Before(windowStart) {
		// Already fired inside this window.
		return false, nil
	}
	return true, nil
}

// MarkRun records that the named trigger fired at the given instant and arms
// the next occurrence.
func (r *Registry) MarkRun(ctx context.Context, name string, now time.Time) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("schedule %q is not registered", name)
	}

	nextRun := e.recurrence.Next(now)
	if nextRun.IsZero() {
		return fmt.Errorf("%w: schedule %q has no further occurrence after %s",
			ErrInvalidRecurrence, name, now)
	}
	if err := r.store.MarkRun(ctx, name, now, nextRun); err != nil {
		return fmt.Errorf("failed to mark run for schedule %q: %w", name, err)
	}

	r.logger.Debug("schedule run recorded",
		"schedule", name,
		"ran_at", now,
		"next_run_at", nextRun)
	return nil
}

// Tick evaluates every registered trigger once and runs those that are due.
// Each trigger is marked as run before its runner executes, so a slow runner
// cannot re-fire inside the same tolerance window. Runner and store errors
// are logged and isolated; one broken schedule never stops the others.
func (r *Registry) Tick(ctx context.Context) {
	now := r.now()

	r.mu.Lock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	for _, name := range names {
		due, err := r.IsDue(ctx, name, now)
		if err != nil {
			r.logger.Error("failed to evaluate schedule, will retry next tick",
				"schedule", name,
				"error", err)
			continue
		}
		if !due {
			continue
		}

		if err := r.MarkRun(ctx, name, now); err != nil {
			r.logger.Error("failed to record schedule run, skipping this tick",
				"schedule", name,
				"error", err)
			continue
		}

		r.mu.Lock()
		e := r.entries[name]
		r.mu.Unlock()

		r.logger.Info("schedule fired", "schedule", name)
		if err := e.run(ctx); err != nil {
			r.logger.Error("scheduled run failed",
				"schedule", name,
				"error", err)
		}
	}
}

// Names returns the registered schedule names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
