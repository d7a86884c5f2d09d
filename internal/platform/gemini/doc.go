// Package gemini implements the generation.Generator interface on top of
// Google's Gemini API. It owns prompt construction, structured-response
// parsing, and API-level retry with backoff; callers see only the
// generation package's interface and error sentinels.
package gemini
