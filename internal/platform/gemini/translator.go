package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/translation"
	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models used by the translator.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Translator implements translation.Translator using the Gemini API.
type Translator struct {
	logger *slog.Logger
	models contentGenerator
	model  string
	policy translation.RetryPolicy
}

// Ensure Translator implements translation.Translator
var _ translation.Translator = (*Translator)(nil)

// NewTranslator creates a Gemini-backed translator from the translation config.
func NewTranslator(ctx context.Context, logger *slog.Logger, cfg config.TranslationConfig) (*Translator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", translation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", translation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", translation.ErrInvalidConfig, err)
	}

	policy := translation.DefaultRetryPolicy
	policy.MaxRetries = cfg.MaxRetries

	return newTranslator(logger, client.Models, cfg.Model, policy), nil
}

func newTranslator(logger *slog.Logger, models contentGenerator, model string, policy translation.RetryPolicy) *Translator {
	return &Translator{
		logger: logger.With("component", "gemini_translator", "model", model),
		models: models,
		model:  model,
		policy: policy,
	}
}

// Translate sends the prompt to Gemini, retrying transient failures.
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
	resp, err := t.models.GenerateContent(ctx, t.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", translation.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", translation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", translation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", translation.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	return translation.ParseResponse(text.String())
}
