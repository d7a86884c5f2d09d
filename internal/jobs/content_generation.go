package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/generation"
)

// ArticleSink receives finished articles. The production implementation
// publishes to the content site; tests use an in-memory sink.
type ArticleSink interface {
	Publish(ctx context.Context, article *generation.Article) error
}

// LogSink is an ArticleSink that only records the article in the structured
// log. Useful as a default until a real publishing target is wired in.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Publish(ctx context.Context, article *generation.Article) error {
	s.Logger.InfoContext(ctx, "article ready for publication",
		"title", article.Title,
		"body_length", len(article.Body),
		"tags", article.Tags)
	return nil
}

// ContentGenerationPayload is the payload of a content_generation job.
type ContentGenerationPayload struct {
	Topic       string   `json:"topic"`
	Keywords    []string `json:"keywords,omitempty"`
	SourceText  string   `json:"source_text,omitempty"`
	TargetWords int      `json:"target_words,omitempty"`
}

// ContentGenerationHandler generates an article for each job and hands it to
// the sink.
type ContentGenerationHandler struct {
	generator generation.Generator
	sink      ArticleSink
	logger    *slog.Logger
}

// NewContentGenerationHandler creates the handler for content_generation jobs.
func NewContentGenerationHandler(
	generator generation.Generator,
	sink ArticleSink,
	logger *slog.Logger,
) *ContentGenerationHandler {
	return &ContentGenerationHandler{
		generator: generator,
		sink:      sink,
		logger:    logger,
	}
}

func (h *ContentGenerationHandler) JobType() string {
	return domain.JobTypeContentGeneration
}

func (h *ContentGenerationHandler) Handle(ctx context.Context, job *domain.Job) error {
	var payload ContentGenerationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid content generation payload: %w", err)
	}

	article, err := h.generator.GenerateArticle(ctx, generation.ArticleRequest{
		Topic:       payload.Topic,
		Keywords:    payload.Keywords,
		SourceText:  payload.SourceText,
		TargetWords: payload.TargetWords,
	})
	if err != nil {
		return fmt.Errorf("article generation failed for topic %q: %w", payload.Topic, err)
	}

	if err := h.sink.Publish(ctx, article); err != nil {
		return fmt.Errorf("failed to publish article %q: %w", article.Title, err)
	}

	h.logger.InfoContext(ctx, "content generation job finished",
		"job_id", job.ID,
		"topic", payload.Topic,
		"title", article.Title)
	return nil
}
