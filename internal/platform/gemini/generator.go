package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/sableword/presswork/internal/config"
	"github.com/sableword/presswork/internal/generation"
)

// Generator implements generation.Generator using the Gemini API.
type Generator struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client
	model  string
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini-backed article generator.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger: logger,
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// GenerateArticle renders the prompt, calls the API with retry, and parses
// the structured response into an Article.
func (g *Generator) GenerateArticle(
	ctx context.Context,
	req generation.ArticleRequest,
) (*generation.Article, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	response, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	article, err := parseResponse(response)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "article generated",
		"topic", req.Topic,
		"title", article.Title,
		"body_length", len(article.Body))
	return article, nil
}

// callWithRetry calls the Gemini API up to MaxRetries+1 times, backing off
// exponentially with jitter between attempts. Permanent errors (safety
// blocks, malformed responses) are returned immediately. This backoff is
// internal to one generation call; queue-level job retries remain governed
// by the dispatcher's fixed delay.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (*responseSchema, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		g.logger.DebugContext(ctx, "calling Gemini API",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"model", g.model)

		response, err := g.callOnce(ctx, prompt)
		if err == nil {
			return response, nil
		}

		if errors.Is(err, generation.ErrContentBlocked) ||
			errors.Is(err, generation.ErrInvalidResponse) {
			g.logger.WarnContext(ctx, "permanent generation error, not retrying", "error", err)
			return nil, err
		}

		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded %d attempts: %v",
				generation.ErrTransientFailure, maxRetries+1, err)
		}

		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitter := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitter * float64(time.Second))

		g.logger.InfoContext(ctx, "retrying Gemini API call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce makes a single API call and classifies the outcome.
func (g *Generator) callOnce(ctx context.Context, prompt string) (*responseSchema, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		// API transport and quota errors are assumed transient.
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("%w: empty response text", generation.ErrInvalidResponse)
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err)
	}
	return &parsed, nil
}

// parseResponse validates the structured response and converts it into a
// domain article.
func parseResponse(response *responseSchema) (*generation.Article, error) {
	if response == nil {
		return nil, fmt.Errorf("%w: response is nil", generation.ErrInvalidResponse)
	}
	if response.Title == "" {
		return nil, fmt.Errorf("%w: article is missing a title", generation.ErrInvalidResponse)
	}
	if response.Body == "" {
		return nil, fmt.Errorf("%w: article is missing a body", generation.ErrInvalidResponse)
	}

	return &generation.Article{
		Title:   response.Title,
		Body:    response.Body,
		Summary: response.Summary,
		Tags:    response.Tags,
	}, nil
}
