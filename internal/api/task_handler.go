package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/phrazzld/lingo-api/internal/api/shared"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/service"
)

// MaxUploadBytes bounds the size of a multipart source upload.
const MaxUploadBytes = 10 << 20

var errEmptyUpload = errors.New("uploaded file is empty")

// CreateTaskRequest represents the JSON body for creating a task
type CreateTaskRequest struct {
	SourceLanguage string `json:"source_language" validate:"required,max=32"`
	TargetLanguage string `json:"target_language" validate:"required,max=32,nefield=SourceLanguage"`
	Content        string `json:"content"         validate:"required"`
}

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	HasSourceFile  bool       `json:"has_source_file"`
	Confidence     *float64   `json:"confidence,omitempty"`
	Attempts       int        `json:"attempts"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TaskHandler handles translation task HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /api/tasks. The body is either JSON
// (CreateTaskRequest) or multipart/form-data with source_language,
// target_language and a "file" part.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	input, msg, err := h.parseCreateRequest(w, r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
		return
	}
	input.UserID = userID

	t, err := h.taskService.CreateTask(r.Context(), input)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	// 202: translation happens asynchronously
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(t))
}

// parseCreateRequest reads either body format. On failure it returns the
// message to show the client alongside the underlying error.
func (h *TaskHandler) parseCreateRequest(
	w http.ResponseWriter,
	r *http.Request,
) (service.CreateTaskInput, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.parseMultipart(w, r)
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		return service.CreateTaskInput{}, "Invalid request format", err
	}
	if err := shared.ValidateRequest(req); err != nil {
		return service.CreateTaskInput{}, "Validation error: " + err.Error(), err
	}

	return service.CreateTaskInput{
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Content:        req.Content,
	}, "", nil
}

func (h *TaskHandler) parseMultipart(
	w http.ResponseWriter,
	r *http.Request,
) (service.CreateTaskInput, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return service.CreateTaskInput{}, "Invalid multipart request", err
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return service.CreateTaskInput{}, "Missing file part", err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.CreateTaskInput{}, "Unable to read uploaded file", err
	}
	if len(data) == 0 {
		return service.CreateTaskInput{}, "Uploaded file is empty", errEmptyUpload
	}

	return service.CreateTaskInput{
		SourceLanguage: r.FormValue("source_language"),
		TargetLanguage: r.FormValue("target_language"),
		File:           data,
	}, "", nil
}

// ListTasks handles GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	tasks, err := h.taskService.ListTasksForUser(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTask handles GET /api/tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.taskService.GetTask(r.Context(), userID, taskID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// GetTaskResult handles GET /api/tasks/{id}/result and returns the markdown
// output of a completed task.
func (h *TaskHandler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	data, err := h.taskService.GetTaskResult(r.Context(), userID, taskID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.FromContextOr(r.Context(), h.logger).Error("failed to write task result",
			"task_id", taskID,
			"error", err)
	}
}

// DeleteTask handles DELETE /api/tasks/{id}. Deleting a task that no longer
// exists succeeds.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), userID, taskID); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// taskToResponse converts a domain.Task to a TaskResponse
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:             t.ID.String(),
		Status:         string(t.Status),
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
		HasSourceFile:  t.SourceFilePath != "",
		Confidence:     t.Confidence,
		Attempts:       t.Attempts,
		ErrorMessage:   t.ErrorMessage,
		CreatedAt:      t.CreatedAt,
		StartedAt:      t.StartedAt,
		CompletedAt:    t.CompletedAt,
	}
}
