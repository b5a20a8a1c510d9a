package domain

import "fmt"

// transitions lists every legal status edge. Deletion is not a status
// transition and is allowed from any state.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusProcessing},
	TaskStatusProcessing: {TaskStatusCompleted, TaskStatusFailed},
	TaskStatusFailed:     {TaskStatusPending},
	TaskStatusCompleted:  nil,
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error wrapping ErrInvalidTransition when
// from→to is not an edge of the task state machine.
func ValidateTransition(from, to TaskStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal reports whether no automatic transition leaves this status.
// Failed tasks are terminal unless the retry policy re-queues them.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}
