package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/platform/logger"
	"github.com/sableword/presswork/internal/queue"
	"github.com/sableword/presswork/internal/store"
)

func TestAnalyticsUpdateHandlerLogsRollup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mockStore := queue.NewMockJobStore()

	// Two completed generation jobs and one archived failure.
	for i := 0; i < 2; i++ {
		jobID, err := mockStore.Push(ctx, domain.JobTypeContentGeneration,
			json.RawMessage(`{}`), store.PushOptions{})
		require.NoError(t, err)
		require.NoError(t, mockStore.Complete(ctx, jobID, time.Second))
	}
	failedID, err := mockStore.Push(ctx, domain.JobTypeContentGeneration,
		json.RawMessage(`{}`), store.PushOptions{})
	require.NoError(t, err)
	failedJob := mockStore.Job(failedID)
	require.NotNil(t, failedJob)
	require.NoError(t, mockStore.ArchiveFailure(ctx, failedJob, errors.New("boom")))

	log, logBuf := logger.GetTestLogger(t)
	handler := NewAnalyticsUpdateHandler(mockStore, log)
	assert.Equal(t, domain.JobTypeAnalyticsUpdate, handler.JobType())

	job := &domain.Job{
		ID:      9,
		JobType: domain.JobTypeAnalyticsUpdate,
		Payload: json.RawMessage(`{"period_days":7}`),
	}
	require.NoError(t, handler.Handle(ctx, job))

	logger.AssertLogContains(t, logBuf, "analytics rollup")
	entries, err := logBuf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(2), entries[0]["jobs_completed"])
	assert.Equal(t, float64(1), entries[0]["jobs_failed"])
	assert.Equal(t, float64(7), entries[0]["period_days"])
	assert.InDelta(t, 2.0/3.0, entries[0]["success_rate"].(float64), 0.001)
}

func TestAnalyticsUpdateHandlerDefaultsPeriod(t *testing.T) {
	t.Parallel()

	log, logBuf := logger.GetTestLogger(t)
	handler := NewAnalyticsUpdateHandler(queue.NewMockJobStore(), log)

	job := &domain.Job{ID: 9, JobType: domain.JobTypeAnalyticsUpdate}
	require.NoError(t, handler.Handle(context.Background(), job))

	entries, err := logBuf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(1), entries[0]["period_days"])
}
