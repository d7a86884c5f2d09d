package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/store"
)

// maxSourceBytes caps how much of a source document is read. Fetched text
// ends up inside a job payload, so it has to stay bounded.
const maxSourceBytes = 256 * 1024

// SourceFetchPayload is the payload of a source_fetch job.
type SourceFetchPayload struct {
	// URL of the source document to fetch.
	URL string `json:"url"`

	// Topic for the follow-up content_generation job.
	Topic string `json:"topic"`

	// Keywords forwarded to the follow-up job.
	Keywords []string `json:"keywords,omitempty"`

	// TargetWords forwarded to the follow-up job.
	TargetWords int `json:"target_words,omitempty"`
}

// SourceFetchHandler downloads source material and chains a
// content_generation job carrying the fetched text.
type SourceFetchHandler struct {
	client *http.Client
	jobs   store.JobStore
	logger *slog.Logger
}

// NewSourceFetchHandler creates the handler for source_fetch jobs. Fetches
// are bounded by timeout independently of the dispatcher's job timeout.
func NewSourceFetchHandler(jobs store.JobStore, timeout time.Duration, logger *slog.Logger) *SourceFetchHandler {
	return &SourceFetchHandler{
		client: &http.Client{Timeout: timeout},
		jobs:   jobs,
		logger: logger,
	}
}

func (h *SourceFetchHandler) JobType() string {
	return domain.JobTypeSourceFetch
}

func (h *SourceFetchHandler) Handle(ctx context.Context, job *domain.Job) error {
	var payload SourceFetchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid source fetch payload: %w", err)
	}
	if payload.URL == "" {
		return fmt.Errorf("source fetch payload is missing a url")
	}
	if payload.Topic == "" {
		return fmt.Errorf("source fetch payload is missing a topic")
	}

	sourceText, err := h.fetch(ctx, payload.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch source %s: %w", payload.URL, err)
	}

	followUp, err := json.Marshal(ContentGenerationPayload{
		Topic:       payload.Topic,
		Keywords:    payload.Keywords,
		SourceText:  sourceText,
		TargetWords: payload.TargetWords,
	})
	if err != nil {
		return fmt.Errorf("failed to encode follow-up payload: %w", err)
	}

	followUpID, err := h.jobs.Push(ctx, domain.JobTypeContentGeneration, followUp,
		store.PushOptions{Priority: job.Priority})
	if err != nil {
		return fmt.Errorf("failed to queue follow-up generation job: %w", err)
	}

	h.logger.InfoContext(ctx, "source fetched, generation job queued",
		"job_id", job.ID,
		"url", payload.URL,
		"source_bytes", len(sourceText),
		"follow_up_job_id", followUpID)
	return nil
}

func (h *SourceFetchHandler) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
