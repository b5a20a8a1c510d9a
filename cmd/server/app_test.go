package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/lingo-api/internal/api"
	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/translation/translationtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "debug",
			ShutdownTimeout: time.Second,
		},
		Database: config.DatabaseConfig{Driver: "memory"},
		Auth: config.AuthConfig{
			JWTSecret:     "thisisasecretkeythatis32charslong!!",
			TokenLifetime: time.Hour,
		},
		Translation: config.TranslationConfig{
			Provider:   "ollama",
			Model:      "llama3",
			OllamaHost: "http://127.0.0.1:11434",
			Timeout:    5 * time.Second,
		},
		Queue: config.QueueConfig{
			Backend:       "memory",
			WorkerCount:   1,
			LeaseDuration: time.Minute,
			SweepInterval: time.Hour,
			PollInterval:  20 * time.Millisecond,
			MaxAttempts:   2,
		},
		Storage: config.StorageConfig{ArtifactDir: t.TempDir()},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApplication_ConfiguredProviders(t *testing.T) {
	t.Parallel()

	app, err := newApplication(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)
	defer app.cleanup()

	assert.NotNil(t, app.translator)
	assert.NotNil(t, app.taskService)
	assert.Empty(t, app.closers)
}

func TestNewApplication_RejectsUnknownBackends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"database driver", func(c *config.Config) { c.Database.Driver = "sqlite" }},
		{"queue backend", func(c *config.Config) { c.Queue.Backend = "kafka" }},
		{"translation provider", func(c *config.Config) { c.Translation.Provider = "openai" }},
		{"short jwt secret", func(c *config.Config) { c.Auth.JWTSecret = "short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := newApplication(context.Background(), cfg, discardLogger())
			assert.Error(t, err)
		})
	}
}

func TestRouter_TaskRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	app, err := buildApplication(ctx, testConfig(t), discardLogger(), &translationtest.Fake{})
	require.NoError(t, err)
	defer app.cleanup()

	require.NoError(t, app.taskRunner.Start(ctx))

	srv := httptest.NewServer(app.setupRouter())
	defer srv.Close()

	token, err := app.jwtService.GenerateToken(ctx, "user-1")
	require.NoError(t, err)

	do := func(method, path string, body []byte) *http.Response {
		req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := do(http.MethodPost, "/api/tasks",
		[]byte(`{"source_language":"en","target_language":"de","content":"hello"}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created api.TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	_ = resp.Body.Close()
	assert.Equal(t, "pending", created.Status)

	require.Eventually(t, func() bool {
		resp := do(http.MethodGet, "/api/tasks/"+created.ID, nil)
		defer func() { _ = resp.Body.Close() }()
		var got api.TaskResponse
		if json.NewDecoder(resp.Body).Decode(&got) != nil {
			return false
		}
		return got.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	resp = do(http.MethodGet, "/api/tasks/"+created.ID+"/result", nil)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HELLO", string(data))

	resp = do(http.MethodDelete, "/api/tasks/"+created.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(http.MethodGet, "/api/tasks/"+created.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	app, err := buildApplication(context.Background(), testConfig(t), discardLogger(), &translationtest.Fake{})
	require.NoError(t, err)
	defer app.cleanup()

	router := app.setupRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
