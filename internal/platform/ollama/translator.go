// Package ollama provides a translation.Translator backed by a local Ollama
// server. It shares the prompt and JSON response contract with the Gemini
// translator so the two are interchangeable through configuration.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/translation"
)

// generator is the subset of *api.Client used by the translator.
type generator interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
}

// Translator implements translation.Translator using the Ollama generate API.
type Translator struct {
	logger *slog.Logger
	client generator
	model  string
	policy translation.RetryPolicy
}

// Ensure Translator implements translation.Translator
var _ translation.Translator = (*Translator)(nil)

// NewTranslator creates an Ollama-backed translator from the translation config.
func NewTranslator(logger *slog.Logger, cfg config.TranslationConfig, httpClient *http.Client) (*Translator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", translation.ErrInvalidConfig)
	}

	base, err := url.Parse(cfg.OllamaHost)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid ollama host %q", translation.ErrInvalidConfig, cfg.OllamaHost)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	policy := translation.DefaultRetryPolicy
	policy.MaxRetries = cfg.MaxRetries

	return newTranslator(logger, api.NewClient(base, httpClient), cfg.Model, policy), nil
}

func newTranslator(logger *slog.Logger, client generator, model string, policy translation.RetryPolicy) *Translator {
	return &Translator{
		logger: logger.With("component", "ollama_translator", "model", model),
		client: client,
		model:  model,
		policy: policy,
	}
}

// Translate runs a non-streaming generate request in JSON mode.
func (t *Translator) Translate(ctx context.Context, req translation.Request) (*translation.Result, error) {
	log := logger.FromContextOr(ctx, t.logger)

	prompt, err := translation.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "sending translation request",
		"source_language", req.SourceLanguage,
		"target_language", req.TargetLanguage,
		"prompt_length", len(prompt))

	return translation.WithRetry(ctx, log, t.policy, func(ctx context.Context) (*translation.Result, error) {
		return t.call(ctx, prompt)
	})
}

func (t *Translator) call(ctx context.Context, prompt string) (*translation.Result, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  t.model,
		Prompt: prompt,
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}

	var text strings.Builder
	err := t.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	return translation.ParseResponse(text.String())
}

// classify maps client errors onto the translation errors. Server-side and
// rate-limit statuses are transient; other HTTP statuses are not.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= http.StatusInternalServerError || statusErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", translation.ErrTransientFailure, err)
		}
		return fmt.Errorf("%w: %v", translation.ErrInvalidResponse, err)
	}

	// Connection refused, resets and other transport errors.
	return fmt.Errorf("%w: %v", translation.ErrTransientFailure, err)
}
