package worktree

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/osutil"
)

// ErrInstallerNotFound is returned when the installer binary is not on PATH.
var ErrInstallerNotFound = errors.New("not found on PATH")

// Installer fetches dependencies for one kind of project manifest.
type Installer struct {
	Manifest string
	Command  string
	Args     []string
}

func (i Installer) String() string {
	return strings.Join(append([]string{i.Command}, i.Args...), " ")
}

// Installers in priority order. Only the first match runs.
var Installers = []Installer{
	{Manifest: "package.json", Command: "npm", Args: []string{"install"}},
	{Manifest: "go.mod", Command: "go", Args: []string{"mod", "download"}},
	{Manifest: "pyproject.toml", Command: "uv", Args: []string{"sync"}},
	{Manifest: "Cargo.toml", Command: "cargo", Args: []string{"fetch"}},
}

// DetectInstaller returns the highest priority installer whose manifest
// exists in dir.
func DetectInstaller(dir string) (Installer, bool) {
	for _, inst := range Installers {
		if info, err := os.Stat(filepath.Join(dir, inst.Manifest)); err == nil && !info.IsDir() {
			return inst, true
		}
	}
	return Installer{}, false
}

// Runner executes an installer command in a directory.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

type execRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// NewExecRunner runs commands as child processes with their output
// streamed to the given writers.
func NewExecRunner(stdout, stderr io.Writer) Runner {
	return &execRunner{stdout: stdout, stderr: stderr}
}

func (r *execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	if !osutil.HasCommand(name) {
		return errors.Wrap(ErrInstallerNotFound, name)
	}
	return osutil.Stream(ctx, dir, r.stdout, r.stderr, name, args...)
}
