package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempStore(t *testing.T) {
	t.Helper()
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "keys.db"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeysLifecycle(t *testing.T) {
	useTempStore(t)

	out, err := execute(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No API keys found")

	out, err = execute(t, "keys", "create", "--name", "ci", "--quiet")
	require.NoError(t, err)
	key := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(key, "up_key_"), key)

	out, err = execute(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ci")
	assert.Contains(t, out, "never")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	id := strings.Fields(lines[1])[0]

	out, err = execute(t, "keys", "revoke", "--id", id)
	require.NoError(t, err)
	assert.Contains(t, out, "API key revoked")

	_, err = execute(t, "keys", "revoke", "--id", "ffffffff")
	assert.ErrorContains(t, err, "key not found")
}

func TestKeysCreate_File(t *testing.T) {
	useTempStore(t)
	path := filepath.Join(t.TempDir(), "secrets", "ci.txt")

	out, err := execute(t, "keys", "create", "--name", "ci", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Written to: "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestKeysCreate_RequiresName(t *testing.T) {
	useTempStore(t)
	_, err := execute(t, "keys", "create")
	assert.ErrorContains(t, err, `required flag(s) "name" not set`)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}
