// Package generation defines the boundary between the job handlers and
// external AI/LLM services used for content generation. Handlers depend on
// the Generator interface only; the Gemini-backed implementation lives in
// internal/platform/gemini.
package generation
