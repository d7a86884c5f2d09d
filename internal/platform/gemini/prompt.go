package gemini

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"

	"github.com/sableword/presswork/internal/generation"
)

// ErrEmptyTopic is returned when a prompt is requested for a request with no
// topic.
var ErrEmptyTopic = errors.New("article topic cannot be empty")

// articlePromptTemplate instructs the model to answer with a single JSON
// object matching responseSchema. Keeping the template in code (rather than a
// file) means the binary is self-contained.
const articlePromptTemplate = `You are a professional content writer. Write an original article about the following topic.

Topic: {{.Topic}}
{{- if .Keywords}}
Incorporate these keywords naturally: {{range $i, $k := .Keywords}}{{if $i}}, {{end}}{{$k}}{{end}}
{{- end}}
{{- if .TargetWords}}
Target length: approximately {{.TargetWords}} words.
{{- end}}
{{- if .SourceText}}

Ground the article on this source material:
{{.SourceText}}
{{- end}}

Respond with a single JSON object and nothing else, using this shape:
{"title": "...", "body": "...", "summary": "...", "tags": ["..."]}`

// promptData is the template input.
type promptData struct {
	Topic       string
	Keywords    []string
	TargetWords int
	SourceText  string
}

// responseSchema is the JSON document the model is asked to produce.
type responseSchema struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

var promptTemplate = template.Must(template.New("article").Parse(articlePromptTemplate))

// buildPrompt renders the article prompt for one request.
func buildPrompt(req generation.ArticleRequest) (string, error) {
	if req.Topic == "" {
		return "", ErrEmptyTopic
	}

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, promptData{
		Topic:       req.Topic,
		Keywords:    req.Keywords,
		TargetWords: req.TargetWords,
		SourceText:  req.SourceText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
