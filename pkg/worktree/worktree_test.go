package worktree

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/agentkit/pkg/gitutil/gittest"
)

type call struct {
	dir  string
	name string
	args []string
}

type recordingRunner struct {
	calls []call
	err   error
}

func (r *recordingRunner) Run(_ context.Context, dir, name string, args ...string) error {
	r.calls = append(r.calls, call{dir: dir, name: name, args: args})
	return r.err
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"feature/auth/login": "feature-auth-login",
		"fix-typo":           "fix-typo",
		"a//b":               "a--b",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestNewPlan(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	sub := filepath.Join(repo, "internal")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	plan, err := NewPlan(context.Background(), Options{Dir: sub, Branch: "feature/auth/login"})
	require.NoError(t, err)

	assert.Equal(t, repo, plan.Root)
	assert.Equal(t, "app", plan.RepoName)
	assert.Equal(t, "feature-auth-login", plan.Slug)
	assert.Equal(t, filepath.Join(filepath.Dir(repo), "app-feature-auth-login"), plan.Path)
	assert.Equal(t, "main", plan.Base)
	assert.False(t, plan.BranchExists)
}

func TestSetup_Preconditions(t *testing.T) {
	ctx := context.Background()

	_, err := Setup(ctx, Options{Dir: t.TempDir(), Branch: ""})
	assert.True(t, errors.Is(err, ErrMissingBranch))

	repo := gittest.InitRepo(t, "app")

	_, err = Setup(ctx, Options{Dir: filepath.Dir(repo), Branch: "feature/x"})
	assert.True(t, errors.Is(err, ErrNotGitRepository))
}

func TestSetup_CreatesBranchFromBase(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	gittest.Run(t, repo, "branch", "develop")
	runner := &recordingRunner{}

	res, err := Setup(context.Background(), Options{Dir: repo, Branch: "feature/x", Base: "develop", Runner: runner})
	require.NoError(t, err)

	assert.DirExists(t, res.Path)
	assert.Equal(t, "develop", res.Base)
	assert.Equal(t, "feature/x", gittest.Run(t, res.Path, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Equal(t,
		gittest.Run(t, repo, "rev-parse", "develop"),
		gittest.Run(t, res.Path, "rev-parse", "HEAD"))
	assert.Nil(t, res.Installer)
	assert.Empty(t, runner.calls)
}

func TestSetup_ReusesExistingBranch(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	gittest.Run(t, repo, "branch", "existing")

	res, err := Setup(context.Background(), Options{Dir: repo, Branch: "existing", NoInstall: true})
	require.NoError(t, err)

	assert.True(t, res.BranchExists)
	assert.Equal(t, "existing", gittest.Run(t, res.Path, "rev-parse", "--abbrev-ref", "HEAD"))
}

func TestSetup_PathExists(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	target := filepath.Join(filepath.Dir(repo), "app-feature-x")
	require.NoError(t, os.MkdirAll(target, 0o755))

	_, err := Setup(context.Background(), Options{Dir: repo, Branch: "feature/x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathExists))

	// git state is untouched
	assert.Empty(t, gittest.Run(t, repo, "branch", "--list", "feature/x"))
	wts, err := List(context.Background(), repo)
	require.NoError(t, err)
	assert.Len(t, wts, 1)
}

func TestSetup_BranchCheckedOut(t *testing.T) {
	repo := gittest.InitRepo(t, "app")

	res, err := Setup(context.Background(), Options{Dir: repo, Branch: "main"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBranchCheckedOut))
	require.NotNil(t, res)
	require.Len(t, res.Worktrees, 1)
	assert.Equal(t, repo, res.Worktrees[0].Path)
	assert.Equal(t, "main", res.Worktrees[0].Branch)
}

func TestSetup_RunsInstaller(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "go.mod"), []byte("module app\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "Cargo.toml"), []byte("[package]\n"), 0o644))
	gittest.Run(t, repo, "add", ".")
	gittest.Run(t, repo, "commit", "-q", "-m", "manifests")

	runner := &recordingRunner{}
	res, err := Setup(context.Background(), Options{Dir: repo, Branch: "feature/deps", Runner: runner})
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, call{dir: res.Path, name: "go", args: []string{"mod", "download"}}, runner.calls[0])
	assert.True(t, res.Installed)
	assert.Equal(t, "go mod download", res.Installer.String())
}

func TestSetup_InstallFailureIsNotFatal(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "package.json"), []byte("{}\n"), 0o644))
	gittest.Run(t, repo, "add", ".")
	gittest.Run(t, repo, "commit", "-q", "-m", "manifest")

	runner := &recordingRunner{err: errors.New("npm: not found")}
	res, err := Setup(context.Background(), Options{Dir: repo, Branch: "feature/npm", Runner: runner})
	require.NoError(t, err)

	assert.False(t, res.Installed)
	require.Error(t, res.InstallErr)
	assert.Contains(t, res.InstallErr.Error(), "npm install failed")
}

func TestSetup_NoInstall(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "package.json"), []byte("{}\n"), 0o644))
	gittest.Run(t, repo, "add", ".")
	gittest.Run(t, repo, "commit", "-q", "-m", "manifest")

	runner := &recordingRunner{}
	res, err := Setup(context.Background(), Options{Dir: repo, Branch: "feature/skip", NoInstall: true, Runner: runner})
	require.NoError(t, err)
	assert.Empty(t, runner.calls)
	assert.Nil(t, res.Installer)
}

func TestExecRunner_MissingCommand(t *testing.T) {
	runner := NewExecRunner(io.Discard, io.Discard)

	err := runner.Run(context.Background(), t.TempDir(), "agentkit-missing-installer", "install")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInstallerNotFound))
	assert.Equal(t, "agentkit-missing-installer: not found on PATH", err.Error())

	assert.NoError(t, runner.Run(context.Background(), t.TempDir(), "sh", "-c", "true"))
}

func TestDetectInstaller_Priority(t *testing.T) {
	manifests := []string{"Cargo.toml", "pyproject.toml", "go.mod", "package.json"}
	want := []string{"cargo fetch", "uv sync", "go mod download", "npm install"}

	dir := t.TempDir()
	_, ok := DetectInstaller(dir)
	assert.False(t, ok)

	// Adding manifests in ascending priority switches the winner each time.
	for i, m := range manifests {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m), nil, 0o644))
		inst, ok := DetectInstaller(dir)
		require.True(t, ok)
		assert.Equal(t, want[i], inst.String())
	}
}

func TestParsePorcelain(t *testing.T) {
	out := `worktree /src/app
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree /src/app-feature-x
HEAD 2222222222222222222222222222222222222222
branch refs/heads/feature/x

worktree /src/app-detached
HEAD 3333333333333333333333333333333333333333
detached
`
	wts := parsePorcelain(out)
	require.Len(t, wts, 3)
	assert.Equal(t, Worktree{Path: "/src/app", Head: "1111111111111111111111111111111111111111", Branch: "main"}, wts[0])
	assert.Equal(t, "feature/x", wts[1].Branch)
	assert.True(t, wts[2].Detached)
	assert.Empty(t, wts[2].Branch)
}
