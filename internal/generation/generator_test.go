package generation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sableword/presswork/internal/generation"
)

func TestArticleRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     generation.ArticleRequest
		wantErr bool
	}{
		{
			name: "valid minimal request",
			req:  generation.ArticleRequest{Topic: "local SEO trends"},
		},
		{
			name: "valid full request",
			req: generation.ArticleRequest{
				Topic:       "local SEO trends",
				Keywords:    []string{"search", "ranking"},
				SourceText:  "Some fetched source material.",
				TargetWords: 800,
			},
		},
		{
			name:    "missing topic",
			req:     generation.ArticleRequest{Keywords: []string{"search"}},
			wantErr: true,
		},
		{
			name:    "negative target words",
			req:     generation.ArticleRequest{Topic: "x", TargetWords: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, generation.ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
