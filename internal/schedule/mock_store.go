package schedule

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/store"
)

// MockScheduleStore implements store.ScheduleStore in memory for testing.
type MockScheduleStore struct {
	mutex  sync.RWMutex
	states map[string]*domain.ScheduleState

	// GetFn, ArmFn, MarkRunFn and RearmFn override the default behavior
	// when set, to simulate store failures.
	GetFn     func(ctx context.Context, name string) (*domain.ScheduleState, error)
	ArmFn     func(ctx context.Context, name string, nextRunAt time.Time) (bool, error)
	MarkRunFn func(ctx context.Context, name string, ranAt, nextRunAt time.Time) error
	RearmFn   func(ctx context.Context, name string, nextRunAt time.Time) error
}

// NewMockScheduleStore creates an empty MockScheduleStore.
func NewMockScheduleStore() *MockScheduleStore {
	return &MockScheduleStore{
		states: make(map[string]*domain.ScheduleState),
	}
}

// Get returns the arming record for the named schedule.
func (s *MockScheduleStore) Get(ctx context.Context, name string) (*domain.ScheduleState, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, name)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	state, exists := s.states[name]
	if !exists {
		return nil, store.ErrScheduleNotFound
	}

	copied := *state
	return &copied, nil
}

// Arm records the next-run timestamp if no record exists yet.
func (s *MockScheduleStore) Arm(ctx context.Context, name string, nextRunAt time.Time) (bool, error) {
	if s.ArmFn != nil {
		return s.ArmFn(ctx, name, nextRunAt)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.states[name]; exists {
		return false, nil
	}

	s.states[name] = &domain.ScheduleState{
		Name:      name,
		NextRunAt: nextRunAt,
		UpdatedAt: time.Now().UTC(),
	}
	return true, nil
}

// MarkRun records a run and the precomputed next occurrence.
func (s *MockScheduleStore) MarkRun(ctx context.Context, name string, ranAt, nextRunAt time.Time) error {
	if s.MarkRunFn != nil {
		return s.MarkRunFn(ctx, name, ranAt, nextRunAt)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	state, exists := s.states[name]
	if !exists {
		return store.ErrScheduleNotFound
	}

	ran := ranAt
	state.LastRunAt = &ran
	state.NextRunAt = nextRunAt
	state.UpdatedAt = time.Now().UTC()
	return nil
}

// Rearm replaces the next-run timestamp without recording a run.
func (s *MockScheduleStore) Rearm(ctx context.Context, name string, nextRunAt time.Time) error {
	if s.RearmFn != nil {
		return s.RearmFn(ctx, name, nextRunAt)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	state, exists := s.states[name]
	if !exists {
		return store.ErrScheduleNotFound
	}

	state.NextRunAt = nextRunAt
	state.UpdatedAt = time.Now().UTC()
	return nil
}

// WithTx implements store.ScheduleStore; the mock ignores transactions.
func (s *MockScheduleStore) WithTx(tx *sql.Tx) store.ScheduleStore {
	return s
}
