package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipalid.pid")

	f, err := Acquire(path)
	require.NoError(t, err)

	pid, err := readPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// A live holder blocks a second acquire.
	_, err = Acquire(path)
	assert.Error(t, err)

	require.NoError(t, f.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStaleFileTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipalid.pid")

	// A PID that cannot be running.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0644))

	f, err := Acquire(path)
	require.NoError(t, err)
	defer f.Release()

	pid, err := readPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReleaseLeavesNewerInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipalid.pid")

	f, err := Acquire(path)
	require.NoError(t, err)

	// Simulate a newer instance overwriting the file.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid()+1)), 0644))

	require.NoError(t, f.Release())
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "newer instance's pidfile must survive")
}
