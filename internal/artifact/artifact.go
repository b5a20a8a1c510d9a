// Package artifact stores the files that belong to a translation task: the
// uploaded source document and the generated markdown output. Every artifact
// lives under a directory named after its task, so a task's files can be
// removed even when the record listing them is already gone.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SourceFile is the name of an uploaded source document.
const SourceFile = "source.txt"

// OutputFile names the markdown written by processing attempt n, counted
// from zero like Task.Attempts. Each attempt owns its file, so a discarded
// report never touches the output another attempt recorded.
func OutputFile(attempt int) string {
	return fmt.Sprintf("output-%d.md", attempt+1)
}

var (
	// ErrNotFound is returned when an artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidPath is returned for paths that are empty, absolute or
	// resolve outside the artifact root, and for names that are not a
	// single path element.
	ErrInvalidPath = errors.New("invalid artifact path")
)

// Store persists task artifacts. Paths returned by Store are opaque
// references relative to the store root.
type Store interface {
	// Store writes data as the file name in the directory of taskID and
	// returns its path. Existing content is replaced atomically.
	Store(ctx context.Context, taskID uuid.UUID, name string, data []byte) (string, error)

	// Read returns the artifact content, or ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes an artifact. A missing artifact is not an error.
	Delete(ctx context.Context, path string) error

	// Purge removes every artifact of taskID. A missing directory is not an error.
	Purge(ctx context.Context, taskID uuid.UUID) error
}
