package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/platform/logger"
	"github.com/sableword/presswork/internal/store"
)

// ScheduleStore implements the store.ScheduleStore interface using PostgreSQL.
type ScheduleStore struct {
	db store.DBTX
}

var _ store.ScheduleStore = (*ScheduleStore)(nil)

// NewScheduleStore creates a new ScheduleStore backed by the given connection
// or transaction.
func NewScheduleStore(db store.DBTX) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// WithTx returns a ScheduleStore bound to the provided transaction.
func (s *ScheduleStore) WithTx(tx *sql.Tx) store.ScheduleStore {
	return &ScheduleStore{db: tx}
}

func (s *ScheduleStore) Rearm(ctx context.Context, name string, nextRunAt time.Time) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET next_run_at = $2, updated_at = $3
		WHERE name = $1
	`, name, nextRunAt, time.Now().UTC())
	if err != nil {
		log.Error("failed to re-arm schedule", "schedule", name, "error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "schedule"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrScheduleNotFound, name)
	}
	return nil
}

func (s *ScheduleStore) Get(ctx context.Context, name string) (*domain.ScheduleState, error) {
	var state domain.ScheduleState
	var lastRunAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT name, next_run_at, last_run_at, updated_at
		FROM schedules
		WHERE name = $1
	`, name).Scan(&state.Name, &state.NextRunAt, &lastRunAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrScheduleNotFound, name)
	}
	if err != nil {
		return nil, MapError(err)
	}

	if lastRunAt.Valid {
		t := lastRunAt.Time
		state.LastRunAt = &t
	}
	return &state, nil
}

func (s *ScheduleStore) Arm(ctx context.Context, name string, nextRunAt time.Time) (bool, error) {
	log := logger.FromContext(ctx)

	// ON CONFLICT DO NOTHING keeps arming idempotent: the first writer wins
	// and every later registration observes armed=false.
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (name, next_run_at, last_run_at, updated_at)
		VALUES ($1, $2, NULL, $3)
		ON CONFLICT (name) DO NOTHING
	`, name, nextRunAt, time.Now().UTC())
	if err != nil {
		log.Error("failed to arm schedule", "schedule", name, "error", err)
		return false, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, MapError(err)
	}
	return rowsAffected > 0, nil
}

func (s *ScheduleStore) MarkRun(ctx context.Context, name string, ranAt, nextRunAt time.Time) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET last_run_at = $2, next_run_at = $3, updated_at = $4
		WHERE name = $1
	`, name, ranAt, nextRunAt, time.Now().UTC())
	if err != nil {
		log.Error("failed to mark schedule run", "schedule", name, "error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "schedule"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrScheduleNotFound, name)
	}
	return nil
}
