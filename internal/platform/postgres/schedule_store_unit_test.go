package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableword/presswork/internal/store"
)

func TestScheduleStoreGet(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	next := time.Date(2025, 6, 2, 6, 30, 0, 0, time.UTC)
	last := next.Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT name, next_run_at").
		WithArgs("daily_digest").
		WillReturnRows(sqlmock.NewRows([]string{"name", "next_run_at", "last_run_at", "updated_at"}).
			AddRow("daily_digest", next, last, next))

	state, err := scheduleStore.Get(context.Background(), "daily_digest")
	require.NoError(t, err)
	assert.Equal(t, "daily_digest", state.Name)
	assert.True(t, state.NextRunAt.Equal(next))
	require.NotNil(t, state.LastRunAt)
	assert.True(t, state.LastRunAt.Equal(last))
}

func TestScheduleStoreGetNeverRun(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	next := time.Date(2025, 6, 2, 6, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT name, next_run_at").
		WithArgs("daily_digest").
		WillReturnRows(sqlmock.NewRows([]string{"name", "next_run_at", "last_run_at", "updated_at"}).
			AddRow("daily_digest", next, nil, next))

	state, err := scheduleStore.Get(context.Background(), "daily_digest")
	require.NoError(t, err)
	assert.Nil(t, state.LastRunAt)
}

func TestScheduleStoreGetNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	mock.ExpectQuery("SELECT name, next_run_at").
		WillReturnError(sql.ErrNoRows)

	_, err := scheduleStore.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrScheduleNotFound)
}

func TestScheduleStoreArm(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	mock.ExpectExec("INSERT INTO schedules").
		WillReturnResult(sqlmock.NewResult(0, 1))

	armed, err := scheduleStore.Arm(context.Background(), "daily_digest", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, armed)
}

func TestScheduleStoreArmIsIdempotent(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	// Conflict on the name key affects zero rows.
	mock.ExpectExec("INSERT INTO schedules").
		WillReturnResult(sqlmock.NewResult(0, 0))

	armed, err := scheduleStore.Arm(context.Background(), "daily_digest", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, armed)
}

func TestScheduleStoreMarkRun(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	ranAt := time.Date(2025, 6, 2, 6, 31, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE schedules").
		WithArgs("daily_digest", ranAt, ranAt.Add(24*time.Hour), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := scheduleStore.MarkRun(context.Background(), "daily_digest", ranAt, ranAt.Add(24*time.Hour))
	assert.NoError(t, err)
}

func TestScheduleStoreMarkRunNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	mock.ExpectExec("UPDATE schedules").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := scheduleStore.MarkRun(context.Background(), "missing", time.Now().UTC(), time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrScheduleNotFound)
}

func TestScheduleStoreRearm(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	next := time.Date(2025, 6, 3, 6, 30, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE schedules").
		WithArgs("daily_digest", next, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := scheduleStore.Rearm(context.Background(), "daily_digest", next)
	assert.NoError(t, err)
}

func TestScheduleStoreRearmNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	mock.ExpectExec("UPDATE schedules").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := scheduleStore.Rearm(context.Background(), "missing", time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrScheduleNotFound)
}

func TestScheduleStoreArmMapsStorageErrors(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	scheduleStore := NewScheduleStore(db)

	mock.ExpectExec("INSERT INTO schedules").
		WillReturnError(errors.New("connection reset"))

	_, err := scheduleStore.Arm(context.Background(), "daily_digest", time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrStorage)
}
