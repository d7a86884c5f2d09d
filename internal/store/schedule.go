package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/sableword/presswork/internal/domain"
)

// ScheduleStore defines the interface for persisting schedule arming state.
// Version: 1.0
type ScheduleStore interface {
	// Get returns the arming record for the named schedule.
	// Returns ErrScheduleNotFound if the schedule has never been armed.
	Get(ctx context.Context, name string) (*domain.ScheduleState, error)

	// Arm records the next-run timestamp for a schedule name if and only if
	// no record exists yet. Arming an already-armed schedule is a no-op and
	// reports armed=false, which keeps registration idempotent across
	// process restarts.
	Arm(ctx context.Context, name string, nextRunAt time.Time) (armed bool, err error)

	// MarkRun records that the schedule fired at the given instant and
	// stores the precomputed next-run timestamp.
	MarkRun(ctx context.Context, name string, ranAt, nextRunAt time.Time) error

	// Rearm replaces the next-run timestamp without recording a run. Used
	// to roll a wall-clock schedule forward after its firing window passed
	// unserved. Returns ErrScheduleNotFound if the schedule has never been
	// armed.
	Rearm(ctx context.Context, name string, nextRunAt time.Time) error

	// WithTx returns a new ScheduleStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ScheduleStore
}
