package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFileWithAge(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepOnceDeletesOnlyStaleMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFileWithAge(t, filepath.Join(dir, "models", "old.bin"), 48*time.Hour)
	writeFileWithAge(t, filepath.Join(dir, "models", "fresh.bin"), time.Minute)
	writeFileWithAge(t, filepath.Join(dir, "scripts", "old.lua"), 48*time.Hour)

	s := New([]Rule{
		{Root: dir, Glob: "models/*.bin", MaxAge: time.Hour},
	}, nil)
	s.SweepOnce(context.Background())

	_, err := os.Stat(filepath.Join(dir, "models", "old.bin"))
	assert.True(t, os.IsNotExist(err), "stale matching file should be deleted")

	_, err = os.Stat(filepath.Join(dir, "models", "fresh.bin"))
	assert.NoError(t, err, "fresh file should survive")

	_, err = os.Stat(filepath.Join(dir, "scripts", "old.lua"))
	assert.NoError(t, err, "non-matching glob should survive")

	assert.Equal(t, int64(1), s.DeletedCount())
}

func TestSweepOnceIsANoOpForEmptyDir(t *testing.T) {
	dir := t.TempDir()
	s := New([]Rule{{Root: dir, Glob: "**/*", MaxAge: time.Hour}}, nil)
	s.SweepOnce(context.Background())
	assert.Equal(t, int64(0), s.DeletedCount())
}
