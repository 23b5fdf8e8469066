package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "plantsim.pid")

	require.NoError(t, pid.Write(path))
	assert.Equal(t, strconv.Itoa(os.Getpid()), readFile(t, path))

	// Our own PID file is rewritten.
	require.NoError(t, pid.Write(path))
}

func TestWriteReplacesStaleFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "not a pid"},
		{name: "empty", content: ""},
		{name: "negative", content: "-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "plantsim.pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			require.NoError(t, pid.Write(path))
			assert.Equal(t, strconv.Itoa(os.Getpid()), readFile(t, path))
		})
	}
}

func TestWriteAlreadyRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantsim.pid")
	parent := strconv.Itoa(os.Getppid())
	require.NoError(t, os.WriteFile(path, []byte(parent+"\n"), 0o600))

	err := pid.Write(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
	assert.Equal(t, parent+"\n", readFile(t, path))
}

func TestWriteUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := pid.Write(filepath.Join(blocker, "plantsim.pid"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrWritePIDFile, errors.CodeOf(err))
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantsim.pid")
	require.NoError(t, pid.Write(path))

	require.NoError(t, pid.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, pid.Remove(path))
}
