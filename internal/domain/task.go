package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a translation task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task validation errors. All of them wrap ErrValidation so callers can
// check for the whole class with errors.Is.
var (
	ErrEmptyTaskID         = fmt.Errorf("%w: task ID cannot be empty", ErrValidation)
	ErrEmptyTaskUserID     = fmt.Errorf("%w: task user ID cannot be empty", ErrValidation)
	ErrEmptySourceLanguage = fmt.Errorf("%w: source language cannot be empty", ErrValidation)
	ErrEmptyTargetLanguage = fmt.Errorf("%w: target language cannot be empty", ErrValidation)
	ErrSameLanguages       = fmt.Errorf("%w: source and target language must differ", ErrValidation)
	ErrEmptySource         = fmt.Errorf("%w: source content or source file is required", ErrValidation)
	ErrInvalidTaskStatus   = fmt.Errorf("%w: invalid task status", ErrValidation)
)

// Task is one translation request and its lifecycle state.
//
// The translated output never replaces SourceContent; it lives in a
// separate markdown artifact referenced by MarkdownPath.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"user_id"`
	Status         TaskStatus `json:"status"`
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	SourceContent  string     `json:"source_content,omitempty"`
	SourceFilePath string     `json:"source_file_path,omitempty"`
	MarkdownPath   string     `json:"markdown_path,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	Attempts       int        `json:"attempts"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TaskSpec holds the client supplied fields needed to create a Task.
type TaskSpec struct {
	// ID is generated when zero. Callers that store artifacts before the
	// record exists pick the id up front.
	ID             uuid.UUID
	UserID         string
	SourceLanguage string
	TargetLanguage string
	SourceContent  string
	SourceFilePath string
}

// NewTask creates a pending Task from the given spec.
// It generates a new UUID, sets the creation timestamps and validates the result.
func NewTask(spec TaskSpec) (*Task, error) {
	id := spec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := time.Now().UTC()
	task := &Task{
		ID:             id,
		UserID:         strings.TrimSpace(spec.UserID),
		Status:         TaskStatusPending,
		SourceLanguage: strings.TrimSpace(spec.SourceLanguage),
		TargetLanguage: strings.TrimSpace(spec.TargetLanguage),
		SourceContent:  spec.SourceContent,
		SourceFilePath: spec.SourceFilePath,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error wrapping ErrValidation if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == "" {
		return ErrEmptyTaskUserID
	}

	if t.SourceLanguage == "" {
		return ErrEmptySourceLanguage
	}

	if t.TargetLanguage == "" {
		return ErrEmptyTargetLanguage
	}

	if strings.EqualFold(t.SourceLanguage, t.TargetLanguage) {
		return ErrSameLanguages
	}

	if t.SourceContent == "" && t.SourceFilePath == "" {
		return ErrEmptySource
	}

	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsValid reports whether s is one of the known task statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsQueueable reports whether a task in this status may sit in the queue.
func (s TaskStatus) IsQueueable() bool {
	return s == TaskStatusPending || s == TaskStatusProcessing
}

// Clone returns a deep copy of the task so callers can hand it out
// without sharing pointer fields.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Confidence != nil {
		v := *t.Confidence
		c.Confidence = &v
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
