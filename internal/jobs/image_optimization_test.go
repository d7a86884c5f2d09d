package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableword/presswork/internal/domain"
)

// stubOptimizer records calls and returns canned savings.
type stubOptimizer struct {
	saved        int64
	err          error
	lastID       int64
	lastQuality  int
	optimizeRuns int
}

func (o *stubOptimizer) Optimize(ctx context.Context, attachmentID int64, quality int) (int64, error) {
	o.optimizeRuns++
	o.lastID = attachmentID
	o.lastQuality = quality
	return o.saved, o.err
}

func imageJob(t *testing.T, payload ImageOptimizationPayload) *domain.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &domain.Job{ID: 1, JobType: domain.JobTypeImageOptimization, Payload: raw}
}

func TestImageOptimizationHandler(t *testing.T) {
	t.Parallel()

	optimizer := &stubOptimizer{saved: 48_000}
	handler := NewImageOptimizationHandler(optimizer, testLogger())
	assert.Equal(t, domain.JobTypeImageOptimization, handler.JobType())

	job := imageJob(t, ImageOptimizationPayload{AttachmentID: 42, Quality: 80})
	require.NoError(t, handler.Handle(context.Background(), job))

	assert.Equal(t, 1, optimizer.optimizeRuns)
	assert.Equal(t, int64(42), optimizer.lastID)
	assert.Equal(t, 80, optimizer.lastQuality)
}

func TestImageOptimizationHandlerValidatesPayload(t *testing.T) {
	t.Parallel()

	optimizer := &stubOptimizer{}
	handler := NewImageOptimizationHandler(optimizer, testLogger())

	err := handler.Handle(context.Background(),
		imageJob(t, ImageOptimizationPayload{AttachmentID: 0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no attachment id")

	err = handler.Handle(context.Background(),
		imageJob(t, ImageOptimizationPayload{AttachmentID: 1, Quality: 101}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	assert.Equal(t, 0, optimizer.optimizeRuns)
}

func TestImageOptimizationHandlerPropagatesOptimizerError(t *testing.T) {
	t.Parallel()

	optimizer := &stubOptimizer{err: errors.New("corrupt image data")}
	handler := NewImageOptimizationHandler(optimizer, testLogger())

	err := handler.Handle(context.Background(),
		imageJob(t, ImageOptimizationPayload{AttachmentID: 42}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt image data")
}
