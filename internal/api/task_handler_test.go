package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/api/shared"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTaskService is a mock implementation of service.TaskService for testing
type MockTaskService struct {
	CreateTaskFn       func(ctx context.Context, input service.CreateTaskInput) (*domain.Task, error)
	GetTaskFn          func(ctx context.Context, userID string, taskID uuid.UUID) (*domain.Task, error)
	ListTasksForUserFn func(ctx context.Context, userID string) ([]*domain.Task, error)
	DeleteTaskFn       func(ctx context.Context, userID string, taskID uuid.UUID) error
	GetTaskResultFn    func(ctx context.Context, userID string, taskID uuid.UUID) ([]byte, error)
}

func (m *MockTaskService) CreateTask(ctx context.Context, input service.CreateTaskInput) (*domain.Task, error) {
	if m.CreateTaskFn != nil {
		return m.CreateTaskFn(ctx, input)
	}
	return nil, errors.New("CreateTask not mocked")
}

func (m *MockTaskService) GetTask(ctx context.Context, userID string, taskID uuid.UUID) (*domain.Task, error) {
	if m.GetTaskFn != nil {
		return m.GetTaskFn(ctx, userID, taskID)
	}
	return nil, errors.New("GetTask not mocked")
}

func (m *MockTaskService) ListTasksForUser(ctx context.Context, userID string) ([]*domain.Task, error) {
	if m.ListTasksForUserFn != nil {
		return m.ListTasksForUserFn(ctx, userID)
	}
	return []*domain.Task{}, nil
}

func (m *MockTaskService) DeleteTask(ctx context.Context, userID string, taskID uuid.UUID) error {
	if m.DeleteTaskFn != nil {
		return m.DeleteTaskFn(ctx, userID, taskID)
	}
	return nil
}

func (m *MockTaskService) GetTaskResult(ctx context.Context, userID string, taskID uuid.UUID) ([]byte, error) {
	if m.GetTaskResultFn != nil {
		return m.GetTaskResultFn(ctx, userID, taskID)
	}
	return nil, errors.New("GetTaskResult not mocked")
}

const testUserID = "user-1"

var (
	fixedTaskID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	fixedTime   = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
)

// withUser injects the authenticated user the way the auth middleware does.
func withUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != "" {
				r = r.WithContext(shared.SetUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newTestRouter(svc service.TaskService, userID string) http.Handler {
	h := NewTaskHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Use(withUser(userID))
	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.ListTasks)
		r.Get("/{id}", h.GetTask)
		r.Get("/{id}/result", h.GetTaskResult)
		r.Delete("/{id}", h.DeleteTask)
	})
	return r
}

func pendingTask(userID string) *domain.Task {
	return &domain.Task{
		ID:             fixedTaskID,
		UserID:         userID,
		Status:         domain.TaskStatusPending,
		SourceLanguage: "en",
		TargetLanguage: "de",
		SourceContent:  "hello",
		CreatedAt:      fixedTime,
		UpdatedAt:      fixedTime,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestTaskHandler_CreateTaskJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		userID         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedErrMsg string
	}{
		{
			name:           "accepted",
			userID:         testUserID,
			body:           `{"source_language":"en","target_language":"de","content":"hello"}`,
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "missing user",
			body:           `{"source_language":"en","target_language":"de","content":"hello"}`,
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "User ID not found or invalid",
		},
		{
			name:           "malformed json",
			userID:         testUserID,
			body:           `{"source_language":`,
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: "Invalid request format",
		},
		{
			name:           "unknown field",
			userID:         testUserID,
			body:           `{"source_language":"en","target_language":"de","content":"x","priority":1}`,
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: "Invalid request format",
		},
		{
			name:           "missing content",
			userID:         testUserID,
			body:           `{"source_language":"en","target_language":"de"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "same languages",
			userID:         testUserID,
			body:           `{"source_language":"en","target_language":"en","content":"x"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "domain validation error",
			userID:         testUserID,
			body:           `{"source_language":"en","target_language":"de","content":"hello"}`,
			serviceErr:     domain.ErrSameLanguages,
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: domain.ErrSameLanguages.Error(),
		},
		{
			name:           "service failure is not leaked",
			userID:         testUserID,
			body:           `{"source_language":"en","target_language":"de","content":"hello"}`,
			serviceErr:     errors.New("pq: connection refused at 10.0.0.5"),
			expectedStatus: http.StatusInternalServerError,
			expectedErrMsg: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got service.CreateTaskInput
			svc := &MockTaskService{
				CreateTaskFn: func(ctx context.Context, input service.CreateTaskInput) (*domain.Task, error) {
					got = input
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return pendingTask(input.UserID), nil
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newTestRouter(svc, tt.userID).ServeHTTP(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())

			if tt.expectedStatus == http.StatusAccepted {
				var resp TaskResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, fixedTaskID.String(), resp.ID)
				assert.Equal(t, "pending", resp.Status)
				assert.False(t, resp.HasSourceFile)
				assert.Equal(t, testUserID, got.UserID)
				assert.Equal(t, "hello", got.Content)
				assert.Nil(t, got.File)
				return
			}

			if tt.expectedErrMsg != "" {
				assert.Equal(t, tt.expectedErrMsg, decodeError(t, rec).Error)
			}
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")
		})
	}
}

func TestTaskHandler_CreateTaskMultipart(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T, file []byte, withFile bool) (*bytes.Buffer, string) {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("source_language", "en"))
		require.NoError(t, mw.WriteField("target_language", "fr"))
		if withFile {
			fw, err := mw.CreateFormFile("file", "doc.md")
			require.NoError(t, err)
			_, err = fw.Write(file)
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())
		return &buf, mw.FormDataContentType()
	}

	t.Run("file upload accepted", func(t *testing.T) {
		t.Parallel()

		var got service.CreateTaskInput
		svc := &MockTaskService{
			CreateTaskFn: func(ctx context.Context, input service.CreateTaskInput) (*domain.Task, error) {
				got = input
				task := pendingTask(input.UserID)
				task.SourceContent = ""
				task.SourceFilePath = fixedTaskID.String() + "/source.md"
				return task, nil
			},
		}

		body, contentType := build(t, []byte("# Title"), true)
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newTestRouter(svc, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		assert.Equal(t, []byte("# Title"), got.File)
		assert.Equal(t, "en", got.SourceLanguage)
		assert.Equal(t, "fr", got.TargetLanguage)

		var resp TaskResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.HasSourceFile)
	})

	t.Run("missing file part", func(t *testing.T) {
		t.Parallel()

		body, contentType := build(t, nil, false)
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newTestRouter(&MockTaskService{}, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing file part", decodeError(t, rec).Error)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		body, contentType := build(t, []byte{}, true)
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newTestRouter(&MockTaskService{}, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Uploaded file is empty", decodeError(t, rec).Error)
	})
}

func TestTaskHandler_ListTasks(t *testing.T) {
	t.Parallel()

	t.Run("returns the user's tasks", func(t *testing.T) {
		t.Parallel()

		svc := &MockTaskService{
			ListTasksForUserFn: func(ctx context.Context, userID string) ([]*domain.Task, error) {
				assert.Equal(t, testUserID, userID)
				return []*domain.Task{pendingTask(userID)}, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		rec := httptest.NewRecorder()
		newTestRouter(svc, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []TaskResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, fixedTaskID.String(), resp[0].ID)
	})

	t.Run("empty list encodes as array", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		rec := httptest.NewRecorder()
		newTestRouter(&MockTaskService{}, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestTaskHandler_GetTask(t *testing.T) {
	t.Parallel()

	confidence := 0.85
	completedAt := fixedTime.Add(time.Minute)

	tests := []struct {
		name           string
		path           string
		task           *domain.Task
		err            error
		expectedStatus int
		expectedErrMsg string
	}{
		{
			name: "completed task",
			path: "/api/tasks/" + fixedTaskID.String(),
			task: &domain.Task{
				ID:             fixedTaskID,
				UserID:         testUserID,
				Status:         domain.TaskStatusCompleted,
				SourceLanguage: "en",
				TargetLanguage: "de",
				Confidence:     &confidence,
				Attempts:       1,
				CreatedAt:      fixedTime,
				CompletedAt:    &completedAt,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid id",
			path:           "/api/tasks/not-a-uuid",
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: "Invalid task ID",
		},
		{
			name:           "not found",
			path:           "/api/tasks/" + fixedTaskID.String(),
			err:            service.ErrTaskNotFound,
			expectedStatus: http.StatusNotFound,
			expectedErrMsg: "Task not found",
		},
		{
			name:           "owned by someone else",
			path:           "/api/tasks/" + fixedTaskID.String(),
			err:            service.ErrNotOwned,
			expectedStatus: http.StatusForbidden,
			expectedErrMsg: "You do not own this task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &MockTaskService{
				GetTaskFn: func(ctx context.Context, userID string, taskID uuid.UUID) (*domain.Task, error) {
					return tt.task, tt.err
				},
			}

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			newTestRouter(svc, testUserID).ServeHTTP(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedErrMsg != "" {
				assert.Equal(t, tt.expectedErrMsg, decodeError(t, rec).Error)
				return
			}

			var resp TaskResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "completed", resp.Status)
			require.NotNil(t, resp.Confidence)
			assert.InDelta(t, 0.85, *resp.Confidence, 1e-9)
			require.NotNil(t, resp.CompletedAt)
			assert.True(t, completedAt.Equal(*resp.CompletedAt))
		})
	}
}

func TestTaskHandler_GetTaskResult(t *testing.T) {
	t.Parallel()

	t.Run("markdown body", func(t *testing.T) {
		t.Parallel()

		svc := &MockTaskService{
			GetTaskResultFn: func(ctx context.Context, userID string, taskID uuid.UUID) ([]byte, error) {
				return []byte("# Hallo"), nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+fixedTaskID.String()+"/result", nil)
		rec := httptest.NewRecorder()
		newTestRouter(svc, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "# Hallo", rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()

		svc := &MockTaskService{
			GetTaskResultFn: func(ctx context.Context, userID string, taskID uuid.UUID) ([]byte, error) {
				return nil, service.ErrTaskNotReady
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+fixedTaskID.String()+"/result", nil)
		rec := httptest.NewRecorder()
		newTestRouter(svc, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Task result is not available yet", decodeError(t, rec).Error)
	})
}

func TestTaskHandler_DeleteTask(t *testing.T) {
	t.Parallel()

	t.Run("no content", func(t *testing.T) {
		t.Parallel()

		var deleted uuid.UUID
		svc := &MockTaskService{
			DeleteTaskFn: func(ctx context.Context, userID string, taskID uuid.UUID) error {
				deleted = taskID
				return nil
			},
		}

		req := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+fixedTaskID.String(), nil)
		rec := httptest.NewRecorder()
		newTestRouter(svc, testUserID).ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, fixedTaskID, deleted)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("forbidden", func(t *testing.T) {
		t.Parallel()

		svc := &MockTaskService{
			DeleteTaskFn: func(ctx context.Context, userID string, taskID uuid.UUID) error {
				return service.ErrNotOwned
			},
		}

		req := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+fixedTaskID.String(), nil)
		rec := httptest.NewRecorder()
		newTestRouter(svc, testUserID).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+fixedTaskID.String(), nil)
		rec := httptest.NewRecorder()
		newTestRouter(&MockTaskService{}, "").ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
