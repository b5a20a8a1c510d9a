package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/lingo-api/internal/api/shared"
	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func newJWTService(t *testing.T, lifetime time.Duration) auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:     testSecret,
		TokenLifetime: lifetime,
	})
	require.NoError(t, err)
	return svc
}

// echoUser writes the authenticated user id as the response body.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(userID))
})

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	jwtService := newJWTService(t, time.Hour)
	valid, err := jwtService.GenerateToken(context.Background(), "user-42")
	require.NoError(t, err)

	other, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:     "anothersecretkeythatisalso32chars!!",
		TokenLifetime: time.Hour,
	})
	require.NoError(t, err)
	foreign, err := other.GenerateToken(context.Background(), "user-42")
	require.NoError(t, err)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedBody   string
		expectedErrMsg string
	}{
		{
			name:           "valid token",
			header:         "Bearer " + valid,
			expectedStatus: http.StatusOK,
			expectedBody:   "user-42",
		},
		{
			name:           "scheme is case insensitive",
			header:         "bearer " + valid,
			expectedStatus: http.StatusOK,
			expectedBody:   "user-42",
		},
		{
			name:           "missing header",
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Authorization header required",
		},
		{
			name:           "wrong scheme",
			header:         "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Invalid authorization format",
		},
		{
			name:           "garbage token",
			header:         "Bearer not.a.jwt",
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Invalid token",
		},
		{
			name:           "signed with another key",
			header:         "Bearer " + foreign,
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Invalid token",
		},
	}

	handler := NewAuthMiddleware(jwtService).Authenticate(echoUser)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Equal(t, tt.expectedBody, rec.Body.String())
			}
			if tt.expectedErrMsg != "" {
				var resp shared.ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.expectedErrMsg, resp.Error)
			}
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	handler := NewTraceMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Trace-ID"))
}
