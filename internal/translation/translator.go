package translation

import (
	"context"
	"fmt"
	"strings"
)

// Translator defines the interface for translating source content.
type Translator interface {
	// Translate converts req.Content from req.SourceLanguage to
	// req.TargetLanguage. Implementations must honour ctx cancellation.
	// Every failure wraps ErrTranslationFailed.
	Translate(ctx context.Context, req Request) (*Result, error)
}

// Request is the input to a translation.
type Request struct {
	Content        string
	SourceLanguage string
	TargetLanguage string
}

// Validate checks that the request can be sent to a provider.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: %w", ErrTranslationFailed, ErrEmptyContent)
	}
	if r.SourceLanguage == "" || r.TargetLanguage == "" {
		return fmt.Errorf("%w: source and target language are required", ErrTranslationFailed)
	}
	return nil
}

// Result is a completed translation.
type Result struct {
	// TranslatedContent is markdown.
	TranslatedContent string `json:"translated_content"`

	// Confidence is the model's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}
