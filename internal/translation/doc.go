// Package translation defines the boundary between the task pipeline and the
// external language-model services that perform the actual translation. The
// providers live in internal/platform (gemini, ollama); this package holds the
// shared request/result types, the prompt and the response format they agree on.
package translation
