package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/berth/internal/constants"
)

// isolate points berth at a temporary home and working directory so tests
// never touch the real ~/.berth or the repository under test.
func isolate(t *testing.T) string {
	t.Helper()

	tmp, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	home := filepath.Join(tmp, "home")
	work := filepath.Join(tmp, "work")
	require.NoError(t, os.MkdirAll(home, 0o750))
	require.NoError(t, os.MkdirAll(work, 0o750))

	t.Setenv(constants.EnvHome, home)
	t.Chdir(work)
	t.Cleanup(CloseLogFile)
	return tmp
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&GlobalFlags{Output: OutputText}, BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"})
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// mustRun is runCLI that fails the test on error and returns stdout.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args...)
	require.NoError(t, err, "berth %s\nstderr: %s", strings.Join(args, " "), stderr)
	return out
}

// createTestRepo creates a git repository with one commit under dir.
func createTestRepo(t *testing.T, dir string) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo := filepath.Join(dir, "repo")
	require.NoError(t, os.MkdirAll(repo, 0o750))
	runGit(t, repo, "init", "-b", "main")
	runGit(t, repo, "config", "user.email", "test@test.com")
	runGit(t, repo, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("# Test"), 0o600))
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "Initial commit")
	return repo
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
}
