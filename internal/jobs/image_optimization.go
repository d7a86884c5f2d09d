package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sableword/presswork/internal/domain"
)

// ImageOptimizer compresses and resizes a stored image attachment. The media
// library lives in the host application, so the daemon only coordinates the
// work through this interface.
type ImageOptimizer interface {
	// Optimize processes one attachment and returns the bytes saved.
	Optimize(ctx context.Context, attachmentID int64, quality int) (int64, error)
}

// NoopOptimizer acknowledges optimization requests without touching any
// media. It stands in until a media library binding is configured.
type NoopOptimizer struct {
	Logger *slog.Logger
}

func (o *NoopOptimizer) Optimize(ctx context.Context, attachmentID int64, quality int) (int64, error) {
	o.Logger.DebugContext(ctx, "no media library configured, skipping optimization",
		"attachment_id", attachmentID,
		"quality", quality)
	return 0, nil
}

// ImageOptimizationPayload is the payload of an image_optimization job.
type ImageOptimizationPayload struct {
	AttachmentID int64 `json:"attachment_id"`

	// Quality is the target compression quality (1-100). Zero selects the
	// optimizer's default.
	Quality int `json:"quality,omitempty"`
}

// ImageOptimizationHandler runs image_optimization jobs through the
// optimizer collaborator.
type ImageOptimizationHandler struct {
	optimizer ImageOptimizer
	logger    *slog.Logger
}

// NewImageOptimizationHandler creates the handler for image_optimization jobs.
func NewImageOptimizationHandler(optimizer ImageOptimizer, logger *slog.Logger) *ImageOptimizationHandler {
	return &ImageOptimizationHandler{
		optimizer: optimizer,
		logger:    logger,
	}
}

func (h *ImageOptimizationHandler) JobType() string {
	return domain.JobTypeImageOptimization
}

func (h *ImageOptimizationHandler) Handle(ctx context.Context, job *domain.Job) error {
	var payload ImageOptimizationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid image optimization payload: %w", err)
	}
	if payload.AttachmentID <= 0 {
		return fmt.Errorf("image optimization payload has no attachment id")
	}
	if payload.Quality < 0 || payload.Quality > 100 {
		return fmt.Errorf("image quality %d out of range 0-100", payload.Quality)
	}

	saved, err := h.optimizer.Optimize(ctx, payload.AttachmentID, payload.Quality)
	if err != nil {
		return fmt.Errorf("failed to optimize attachment %d: %w", payload.AttachmentID, err)
	}

	h.logger.InfoContext(ctx, "image optimized",
		"job_id", job.ID,
		"attachment_id", payload.AttachmentID,
		"bytes_saved", saved)
	return nil
}
