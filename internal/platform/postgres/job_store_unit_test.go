package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/store"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func jobRows(jobs ...*domain.Job) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "job_type", "payload", "priority", "attempts",
		"reserved_at", "available_at", "created_at", "updated_at",
	})
	for _, j := range jobs {
		var reservedAt interface{}
		if j.ReservedAt != nil {
			reservedAt = *j.ReservedAt
		}
		rows.AddRow(j.ID, j.JobType, []byte(j.Payload), j.Priority, j.Attempts,
			reservedAt, j.AvailableAt, j.CreatedAt, j.UpdatedAt)
	}
	return rows
}

func TestJobStorePush(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(domain.JobTypeSourceFetch, []byte(`{"url":"x"}`), sqlmock.AnyArg(),
			5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := jobStore.Push(context.Background(), domain.JobTypeSourceFetch,
		json.RawMessage(`{"url":"x"}`), store.PushOptions{Priority: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStorePushValidation(t *testing.T) {
	t.Parallel()

	db, _ := newMockDB(t)
	jobStore := NewJobStore(db)

	_, err := jobStore.Push(context.Background(), "",
		json.RawMessage(`{}`), store.PushOptions{})
	assert.ErrorIs(t, err, domain.ErrEmptyJobType)

	_, err = jobStore.Push(context.Background(), domain.JobTypeSourceFetch,
		json.RawMessage(`{not json`), store.PushOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidJobPayload)

	_, err = jobStore.Push(context.Background(), domain.JobTypeSourceFetch,
		json.RawMessage(`{}`), store.PushOptions{Delay: -time.Second})
	assert.ErrorIs(t, err, domain.ErrNegativeJobDelay)
}

func TestJobStorePushUniqueReturnsExistingID(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	id, err := jobStore.Push(context.Background(), domain.JobTypeSourceFetch,
		json.RawMessage(`{"url":"x"}`), store.PushOptions{Unique: true})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStorePushUniqueInsertsWhenAbsent(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM jobs").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectCommit()

	id, err := jobStore.Push(context.Background(), domain.JobTypeSourceFetch,
		json.RawMessage(`{"url":"x"}`), store.PushOptions{Unique: true})
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreReserveBatch(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	now := time.Now().UTC()
	reserved := now
	mock.ExpectQuery("UPDATE jobs").
		WithArgs(sqlmock.AnyArg(), 3, 50).
		WillReturnRows(jobRows(&domain.Job{
			ID:          11,
			JobType:     domain.JobTypeContentGeneration,
			Payload:     json.RawMessage(`{"topic":"tea"}`),
			Priority:    2,
			Attempts:    1,
			ReservedAt:  &reserved,
			AvailableAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}))

	jobs, err := jobStore.ReserveBatch(context.Background(), 3, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(11), jobs[0].ID)
	assert.Equal(t, 1, jobs[0].Attempts)
	assert.True(t, jobs[0].IsReserved())
	assert.JSONEq(t, `{"topic":"tea"}`, string(jobs[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreReserveBatchOrdersByPriority(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	now := time.Now().UTC()
	reserved := now
	older := now.Add(-time.Minute)
	base := domain.Job{
		JobType:     domain.JobTypeSourceFetch,
		Payload:     json.RawMessage(`{}`),
		Attempts:    1,
		ReservedAt:  &reserved,
		AvailableAt: now,
		UpdatedAt:   now,
	}
	low := base
	low.ID, low.Priority, low.CreatedAt = 21, 0, now
	highLate := base
	highLate.ID, highLate.Priority, highLate.CreatedAt = 22, 5, now
	highEarly := base
	highEarly.ID, highEarly.Priority, highEarly.CreatedAt = 23, 5, older

	// RETURNING may hand rows back in any order; the batch still comes out
	// highest priority first, oldest first within a priority.
	mock.ExpectQuery("UPDATE jobs").
		WithArgs(sqlmock.AnyArg(), 3, 50).
		WillReturnRows(jobRows(&low, &highLate, &highEarly))

	jobs, err := jobStore.ReserveBatch(context.Background(), 3, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, int64(23), jobs[0].ID)
	assert.Equal(t, int64(22), jobs[1].ID)
	assert.Equal(t, int64(21), jobs[2].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreReserveBatchMapsStorageErrors(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectQuery("UPDATE jobs").
		WillReturnError(errors.New("connection refused"))

	_, err := jobStore.ReserveBatch(context.Background(), 3, 50)
	assert.ErrorIs(t, err, store.ErrStorage)
}

func TestJobStoreComplete(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM jobs").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"job_type"}).
			AddRow(domain.JobTypeContentGeneration))
	mock.ExpectExec("INSERT INTO job_completions").
		WithArgs(int64(11), domain.JobTypeContentGeneration, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := jobStore.Complete(context.Background(), 11, 3*time.Second)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreCompleteIsIdempotent(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM jobs").
		WithArgs(int64(11)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	err := jobStore.Complete(context.Background(), 11, time.Second)
	assert.NoError(t, err, "completing a settled job is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreReleaseForRetryNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectExec("UPDATE jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := jobStore.ReleaseForRetry(context.Background(), 99, time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestJobStoreArchiveFailure(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO failed_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM jobs").
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job := &domain.Job{
		ID:       11,
		JobType:  domain.JobTypeContentGeneration,
		Payload:  json.RawMessage(`{}`),
		Attempts: 3,
	}
	err := jobStore.ArchiveFailure(context.Background(), job, errors.New("model error"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreStats(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	jobStore := NewJobStore(db)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "reserved", "stuck"}).
			AddRow(10, 7, 3, 1))
	mock.ExpectQuery("SELECT job_type").
		WillReturnRows(sqlmock.NewRows([]string{"job_type", "count"}).
			AddRow(domain.JobTypeContentGeneration, 6).
			AddRow(domain.JobTypeSourceFetch, 4))

	stats, err := jobStore.Stats(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 7, stats.Pending)
	assert.Equal(t, 3, stats.Reserved)
	assert.Equal(t, 1, stats.Stuck)
	assert.Equal(t, map[string]int{
		domain.JobTypeContentGeneration: 6,
		domain.JobTypeSourceFetch:       4,
	}, stats.ByType)
}
