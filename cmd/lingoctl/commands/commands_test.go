package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

// setEnv points config.Load at an in-memory deployment. Tests using it cannot
// run in parallel.
func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LINGO_AUTH_JWT_SECRET", testSecret)
	t.Setenv("LINGO_TRANSLATION_GEMINI_API_KEY", "test-key")
	t.Setenv("LINGO_DATABASE_DRIVER", "memory")
	t.Setenv("LINGO_STORAGE_ARTIFACT_DIR", t.TempDir())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.Writer = &out
	cmd.ErrWriter = &out
	err := cmd.Run(context.Background(), append([]string{"lingoctl"}, args...))
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	setEnv(t)

	out, err := run(t, "token", "--user", "user-7")
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:     testSecret,
		TokenLifetime: time.Hour,
	})
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
}

func TestTasksListCommand_Empty(t *testing.T) {
	setEnv(t)

	out, err := run(t, "tasks", "list", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks found.")
}

func TestTasksDeleteCommand(t *testing.T) {
	setEnv(t)

	id := uuid.New()
	out, err := run(t, "tasks", "delete", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, id.String())

	_, err = run(t, "tasks", "delete", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid task id")

	_, err = run(t, "tasks", "delete")
	assert.ErrorContains(t, err, "usage")
}

func TestMigrateCommand_RequiresPostgres(t *testing.T) {
	setEnv(t)

	_, err := run(t, "migrate", "up")
	assert.ErrorContains(t, err, "postgres")
}

func TestCommand_InvalidConfig(t *testing.T) {
	setEnv(t)
	t.Setenv("LINGO_AUTH_JWT_SECRET", "")

	_, err := run(t, "token", "--user", "user-1")
	assert.ErrorContains(t, err, "config validation failed")
}
