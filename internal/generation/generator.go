package generation

import (
	"context"
	"fmt"
)

// ArticleRequest describes one article to generate.
type ArticleRequest struct {
	// Topic is the subject of the article. Required.
	Topic string `json:"topic"`

	// Keywords steer the model toward specific terms. Optional.
	Keywords []string `json:"keywords,omitempty"`

	// SourceText is fetched source material the article should be grounded
	// on. Optional.
	SourceText string `json:"source_text,omitempty"`

	// TargetWords is the approximate article length. Zero lets the model
	// decide.
	TargetWords int `json:"target_words,omitempty"`
}

// Validate checks the request for the fields the generator cannot work
// without.
func (r ArticleRequest) Validate() error {
	if r.Topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidRequest)
	}
	if r.TargetWords < 0 {
		return fmt.Errorf("%w: target word count cannot be negative", ErrInvalidRequest)
	}
	return nil
}

// Article is a generated piece of content ready for publication.
type Article struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Generator produces articles from requests. Implementations wrap a specific
// LLM provider; callers stay coupled to this interface only.
type Generator interface {
	// GenerateArticle creates one article. Errors are classified with the
	// sentinels in errors.go so callers can distinguish permanent failures
	// (ErrContentBlocked, ErrInvalidResponse) from transient ones.
	GenerateArticle(ctx context.Context, req ArticleRequest) (*Article, error)
}
