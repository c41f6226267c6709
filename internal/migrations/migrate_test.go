package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "000012_stats.up.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000099_dir"), 0o700))

	assert.Equal(t, int64(12), LatestVersion(dir))
	assert.Equal(t, int64(0), LatestVersion(filepath.Join(dir, "missing")))
}

func TestLatestVersionOfRepoMigrations(t *testing.T) {
	assert.GreaterOrEqual(t, LatestVersion("../../migrations"), int64(1))
}

func TestRunRequiresURL(t *testing.T) {
	assert.Error(t, Run("", ""))
}
