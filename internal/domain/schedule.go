package domain

import (
	"errors"
	"time"
)

// Common validation errors for ScheduleState
var (
	ErrEmptyScheduleName = errors.New("schedule name cannot be empty")
)

// ScheduleState is the persisted arming record for a named recurring trigger.
// A schedule is "armed" once a NextRunAt exists for its name; re-registering
// an armed schedule is a no-op, which keeps timers from accumulating across
// process restarts.
type ScheduleState struct {
	// Name uniquely identifies the trigger (e.g. "queue.dispatch").
	Name string `json:"name"`

	// NextRunAt is the next instant the trigger should fire.
	NextRunAt time.Time `json:"next_run_at"`

	// LastRunAt records when the trigger last fired; nil if it never has.
	// Used to suppress repeat firing inside a tolerance window.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the ScheduleState has valid data.
func (s *ScheduleState) Validate() error {
	if s.Name == "" {
		return ErrEmptyScheduleName
	}

	return nil
}
