package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/translation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	replies []string
	errs    []error
	calls   int
	last    *api.GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error {
	i := f.calls
	f.calls++
	f.last = req
	if i < len(f.errs) && f.errs[i] != nil {
		return f.errs[i]
	}
	if i < len(f.replies) {
		return fn(api.GenerateResponse{Response: f.replies[i], Done: true})
	}
	return nil
}

func testTranslator(g generator) *Translator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newTranslator(logger, g, "llama-test", translation.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond})
}

var request = translation.Request{Content: "Hello", SourceLanguage: "en", TargetLanguage: "es"}

func TestTranslator_Translate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		g := &fakeGenerator{replies: []string{`{"translated_content": "Hola", "confidence": 0.6}`}}
		result, err := testTranslator(g).Translate(context.Background(), request)
		require.NoError(t, err)
		assert.Equal(t, "Hola", result.TranslatedContent)
		assert.Equal(t, 0.6, result.Confidence)

		require.NotNil(t, g.last)
		assert.Equal(t, "llama-test", g.last.Model)
		require.NotNil(t, g.last.Stream)
		assert.False(t, *g.last.Stream)
		assert.Equal(t, json.RawMessage(`"json"`), g.last.Format)
	})

	t.Run("server error is retried", func(t *testing.T) {
		g := &fakeGenerator{
			errs:    []error{api.StatusError{StatusCode: http.StatusServiceUnavailable, ErrorMessage: "loading model"}},
			replies: []string{"", `{"translated_content": "Hola", "confidence": 0.6}`},
		}
		_, err := testTranslator(g).Translate(context.Background(), request)
		require.NoError(t, err)
		assert.Equal(t, 2, g.calls)
	})

	t.Run("client error is permanent", func(t *testing.T) {
		g := &fakeGenerator{errs: []error{api.StatusError{StatusCode: http.StatusNotFound, ErrorMessage: "model not found"}}}
		_, err := testTranslator(g).Translate(context.Background(), request)
		assert.ErrorIs(t, err, translation.ErrTranslationFailed)
		assert.ErrorIs(t, err, translation.ErrInvalidResponse)
		assert.Equal(t, 1, g.calls)
	})

	t.Run("non json reply", func(t *testing.T) {
		g := &fakeGenerator{replies: []string{"Hola"}}
		_, err := testTranslator(g).Translate(context.Background(), request)
		assert.ErrorIs(t, err, translation.ErrInvalidResponse)
	})
}

func TestNewTranslator_InvalidConfig(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewTranslator(logger, config.TranslationConfig{Model: "m", OllamaHost: "not a url"}, nil)
	assert.ErrorIs(t, err, translation.ErrInvalidConfig)

	_, err = NewTranslator(logger, config.TranslationConfig{OllamaHost: "http://localhost:11434"}, nil)
	assert.ErrorIs(t, err, translation.ErrInvalidConfig)

	tr, err := NewTranslator(logger, config.TranslationConfig{Model: "m", OllamaHost: "http://localhost:11434"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr)
}
