package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/berth/internal/constants"
)

// isolate points the berth home and the working directory at empty temp dirs.
func isolate(t *testing.T) (home, wd string) {
	t.Helper()
	home = t.TempDir()
	wd = t.TempDir()
	t.Setenv(constants.EnvHome, home)
	t.Chdir(wd)
	return home, wd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "git", cfg.Git.Binary)
	assert.Equal(t, constants.DefaultGitTimeout, cfg.Git.Timeout)
	assert.Equal(t, constants.DefaultBranchSlugMax, cfg.Workspace.BranchSlugMax)
}

func TestLoad_MergesGlobalAndProjectConfigs(t *testing.T) {
	home, wd := isolate(t)

	writeFile(t, filepath.Join(home, "config.yaml"), `
git:
  timeout: 45s
operator: global-op
`)
	writeFile(t, filepath.Join(wd, ".berth", "config.yaml"), `
operator: project-op
workspace:
  branch_slug_max: 30
`)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Git.Timeout, "global value survives")
	assert.Equal(t, "project-op", cfg.Operator, "project overrides global")
	assert.Equal(t, 30, cfg.Workspace.BranchSlugMax)
}

func TestLoad_EnvVarOverridesConfigFile(t *testing.T) {
	_, wd := isolate(t)

	writeFile(t, filepath.Join(wd, ".berth", "config.yaml"), `
git:
  binary: /usr/bin/git
tracker:
  db_path: /from/file.db
`)
	t.Setenv("BERTH_GIT_BINARY", "/opt/git/bin/git")
	t.Setenv("BERTH_GUARD_LOCK_DIR", "/tmp/berth-locks")
	t.Setenv("BERTH_GIT_TIMEOUT", "2m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/opt/git/bin/git", cfg.Git.Binary)
	assert.Equal(t, "/tmp/berth-locks", cfg.Guard.LockDir)
	assert.Equal(t, 2*time.Minute, cfg.Git.Timeout)
	assert.Equal(t, "/from/file.db", cfg.Tracker.DBPath)
}

func TestLoadWithOverrides_AppliesCLIOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("BERTH_OPERATOR", "env-op")

	cfg, err := LoadWithOverrides(context.Background(), &Config{
		Operator:  "flag-op",
		Workspace: WorkspaceConfig{Root: "/flag/root"},
	})
	require.NoError(t, err)

	assert.Equal(t, "flag-op", cfg.Operator)
	assert.Equal(t, "/flag/root", cfg.Workspace.Root)
	assert.Equal(t, "git", cfg.Git.Binary, "zero override leaves value")
}

func TestLoadWithOverrides_NilOverrides(t *testing.T) {
	isolate(t)

	cfg, err := LoadWithOverrides(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Git, cfg.Git)
}

func TestLoadWithOverrides_RevalidatesAfterOverrides(t *testing.T) {
	isolate(t)

	_, err := LoadWithOverrides(context.Background(), &Config{
		Workspace: WorkspaceConfig{BranchSlugMax: 1000},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after overrides")
}

func TestLoadFromPaths_ProjectConfigOverridesGlobal(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	global := filepath.Join(dir, "global.yaml")
	project := filepath.Join(dir, "project.yaml")

	writeFile(t, global, `
workspace:
  root: /global/root
  branch_slug_max: 40
`)
	writeFile(t, project, `
workspace:
  root: /project/root
`)

	cfg, err := LoadFromPaths(context.Background(), project, global)
	require.NoError(t, err)

	assert.Equal(t, "/project/root", cfg.Workspace.Root)
	assert.Equal(t, 40, cfg.Workspace.BranchSlugMax, "nested keys merge")
}

func TestLoadFromPaths_MissingFilesAreSkipped(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := LoadFromPaths(context.Background(),
		filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "also-nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "git", cfg.Git.Binary)
}

func TestLoadFromPaths_InvalidConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "git: [unterminated\n")

	_, err := LoadFromPaths(context.Background(), path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read project config")
}

func TestLoadFromPaths_ValidationFailure(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "git:\n  timeout: 10ms\n")

	_, err := LoadFromPaths(context.Background(), path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
