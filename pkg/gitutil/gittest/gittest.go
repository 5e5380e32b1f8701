// Package gittest creates throwaway git repositories for tests.
package gittest

import (
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// InitRepo creates a repository named name inside a fresh temp directory,
// on branch main with one empty commit, and returns its path. The test is
// skipped when git is not installed.
func InitRepo(t *testing.T, name string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	parent, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	dir := filepath.Join(parent, name)

	Run(t, parent, "init", "-q", "-b", "main", name)
	Run(t, dir, "config", "user.email", "dev@example.com")
	Run(t, dir, "config", "user.name", "Dev")
	Run(t, dir, "config", "commit.gpgsign", "false")
	Run(t, dir, "commit", "-q", "--allow-empty", "-m", "initial")
	return dir
}

// Run executes git in dir and fails the test on error.
func Run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}
