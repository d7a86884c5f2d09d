package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/store"
)

// AnalyticsUpdatePayload is the payload of an analytics_update job.
type AnalyticsUpdatePayload struct {
	// PeriodDays is the rollup window. Zero defaults to one day.
	PeriodDays int `json:"period_days,omitempty"`
}

// AnalyticsUpdateHandler rolls the completion log and failure archive up
// into a throughput summary. The summary is logged; downstream reporting
// scrapes it from the structured log stream.
type AnalyticsUpdateHandler struct {
	jobs   store.JobStore
	logger *slog.Logger

	// now is the clock source, injectable for tests.
	now func() time.Time
}

// NewAnalyticsUpdateHandler creates the handler for analytics_update jobs.
func NewAnalyticsUpdateHandler(jobs store.JobStore, logger *slog.Logger) *AnalyticsUpdateHandler {
	return &AnalyticsUpdateHandler{
		jobs:   jobs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (h *AnalyticsUpdateHandler) JobType() string {
	return domain.JobTypeAnalyticsUpdate
}

func (h *AnalyticsUpdateHandler) Handle(ctx context.Context, job *domain.Job) error {
	var payload AnalyticsUpdatePayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid analytics payload: %w", err)
		}
	}
	periodDays := payload.PeriodDays
	if periodDays <= 0 {
		periodDays = 1
	}

	since := h.now().AddDate(0, 0, -periodDays)
	overall, err := h.jobs.CompletionStats(ctx, nil, since)
	if err != nil {
		return fmt.Errorf("failed to load completion stats: %w", err)
	}
	content, err := h.jobs.CompletionStats(ctx,
		[]string{domain.JobTypeContentGeneration}, since)
	if err != nil {
		return fmt.Errorf("failed to load content completion stats: %w", err)
	}

	attempted := overall.Completed + overall.Failed
	successRate := 1.0
	if attempted > 0 {
		successRate = float64(overall.Completed) / float64(attempted)
	}

	h.logger.InfoContext(ctx, "analytics rollup",
		"job_id", job.ID,
		"period_days", periodDays,
		"jobs_completed", overall.Completed,
		"jobs_failed", overall.Failed,
		"success_rate", successRate,
		"articles_completed", content.Completed,
		"articles_failed", content.Failed)
	return nil
}
