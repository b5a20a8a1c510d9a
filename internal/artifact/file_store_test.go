package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFileStore_StoreAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	taskID := uuid.New()

	path, err := s.Store(ctx, taskID, OutputFile(0), []byte("# Bonjour"))
	require.NoError(t, err)
	assert.Equal(t, taskID.String()+"/output-1.md", path)

	data, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "# Bonjour", string(data))

	t.Run("overwrite replaces content", func(t *testing.T) {
		again, err := s.Store(ctx, taskID, OutputFile(0), []byte("# Salut"))
		require.NoError(t, err)
		assert.Equal(t, path, again)

		data, err := s.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "# Salut", string(data))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(s.Root(), taskID.String()))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "output-1.md", entries[0].Name())
	})

	t.Run("attempts write separate outputs", func(t *testing.T) {
		second, err := s.Store(ctx, taskID, OutputFile(1), []byte("# Coucou"))
		require.NoError(t, err)
		assert.NotEqual(t, path, second)

		require.NoError(t, s.Delete(ctx, second))

		data, err := s.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "# Salut", string(data))
	})
}

func TestFileStore_RejectsBadNames(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := s.Store(context.Background(), uuid.New(), name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, "name %q", name)
	}
}

func TestFileStore_ReadMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Read(context.Background(), uuid.NewString()+"/"+OutputFile(0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	taskID := uuid.New()

	path, err := s.Store(ctx, taskID, SourceFile, []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, path))
	require.NoError(t, s.Delete(ctx, path), "deleting a missing artifact must succeed")

	_, err = s.Read(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Purge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	taskID := uuid.New()
	other := uuid.New()

	_, err := s.Store(ctx, taskID, SourceFile, []byte("hello"))
	require.NoError(t, err)
	_, err = s.Store(ctx, taskID, OutputFile(0), []byte("bonjour"))
	require.NoError(t, err)
	otherPath, err := s.Store(ctx, other, OutputFile(0), []byte("hola"))
	require.NoError(t, err)

	require.NoError(t, s.Purge(ctx, taskID))
	require.NoError(t, s.Purge(ctx, taskID), "purging twice must succeed")

	_, err = os.Stat(filepath.Join(s.Root(), taskID.String()))
	assert.True(t, os.IsNotExist(err))

	data, err := s.Read(ctx, otherPath)
	require.NoError(t, err, "other tasks must be untouched")
	assert.Equal(t, "hola", string(data))
}

func TestFileStore_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	paths := []string{
		"",
		"..",
		"../etc/passwd",
		"a/../../outside",
		"/etc/passwd",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			_, err := s.Read(ctx, p)
			assert.ErrorIs(t, err, ErrInvalidPath)
			assert.ErrorIs(t, s.Delete(ctx, p), ErrInvalidPath)
		})
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Store(ctx, uuid.New(), OutputFile(0), []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
