package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/berth/internal/constants"
)

func TestGlobalConfigDir_Default(t *testing.T) {
	t.Setenv(constants.EnvHome, "")

	dir, err := GlobalConfigDir()
	require.NoError(t, err)
	assert.Equal(t, constants.BerthHome, filepath.Base(dir))
	assert.True(t, filepath.IsAbs(dir))
}

func TestGlobalConfigDir_EnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv(constants.EnvHome, home)

	dir, err := GlobalConfigDir()
	require.NoError(t, err)
	assert.Equal(t, home, dir)

	path, err := GlobalConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml"), path)
}

func TestProjectConfigPath(t *testing.T) {
	assert.Equal(t, ".berth", ProjectConfigDir())
	assert.Equal(t, filepath.Join(".berth", "config.yaml"), ProjectConfigPath())
}

func TestConfig_DerivedPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv(constants.EnvHome, home)

	t.Run("defaults live under the berth home", func(t *testing.T) {
		cfg := DefaultConfig()

		db, err := cfg.TrackerPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "tracker.db"), db)

		locks, err := cfg.LockDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "locks"), locks)

		root, err := cfg.WorkspaceRoot()
		require.NoError(t, err)
		assert.Empty(t, root)
	})

	t.Run("explicit paths are kept", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tracker.DBPath = "/data/berth.db"
		cfg.Guard.LockDir = "/run/berth"
		cfg.Workspace.Root = "/srv/ws"

		db, err := cfg.TrackerPath()
		require.NoError(t, err)
		assert.Equal(t, "/data/berth.db", db)

		locks, err := cfg.LockDir()
		require.NoError(t, err)
		assert.Equal(t, "/run/berth", locks)

		root, err := cfg.WorkspaceRoot()
		require.NoError(t, err)
		assert.Equal(t, "/srv/ws", root)
	})

	t.Run("tilde expands to the user home", func(t *testing.T) {
		userHome, err := os.UserHomeDir()
		require.NoError(t, err)

		cfg := DefaultConfig()
		cfg.Workspace.Root = "~/ws"

		root, err := cfg.WorkspaceRoot()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(userHome, "ws"), root)
	})
}

func TestExpandHome_LeavesOtherPathsAlone(t *testing.T) {
	for _, p := range []string{"", "relative/dir", "/abs/dir", "~other/dir"} {
		got, err := expandHome(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}
