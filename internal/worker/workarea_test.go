package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkAreaLifecycle(t *testing.T) {
	base := t.TempDir()

	area, err := NewWorkArea(base, "job-1")
	require.NoError(t, err)

	path := area.Path("input.mkv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	assert.Equal(t, filepath.Join(base, "job-1", "input.mkv"), path)

	area.Remove()
	_, err = os.Stat(filepath.Join(base, "job-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorkAreaClearsLeftovers(t *testing.T) {
	base := t.TempDir()

	// Simulate a crashed run that left partial output behind.
	stale := filepath.Join(base, "job-1")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "output.mp4"), []byte("partial"), 0o644))

	area, err := NewWorkArea(base, "job-1")
	require.NoError(t, err)
	defer area.Remove()

	entries, err := os.ReadDir(filepath.Join(base, "job-1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
