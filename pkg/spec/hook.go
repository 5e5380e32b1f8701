package spec

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// HookMarker identifies our block inside a pre-commit hook.
const HookMarker = "agentkit spec validate"

const hookBody = `# Check if any .spec/ files are staged
staged_spec=$(git diff --cached --name-only | grep -E '^\.spec/' || true)

if [ -n "$staged_spec" ]; then
    echo "Validating .spec/ files..."
    if ! agentkit spec validate 2>&1; then
        echo ""
        echo "ERROR: .spec/ validation failed. Fix issues before committing."
        exit 1
    fi
    echo "✓ .spec/ validation passed"
fi
`

// PreCommitHook is the script installed when no pre-commit hook exists.
const PreCommitHook = "#!/usr/bin/env bash\n# agentkit pre-commit hook - validates .spec/ files before commit\n\n" + hookBody

// HookState describes the pre-commit hook.
type HookState int

const (
	HookMissing HookState = iota
	HookForeign           // a hook exists without our validation
	HookInstalled
)

// ErrNoHooksDir is returned when the repository has no hooks directory.
var ErrNoHooksDir = errors.New("Could not install hook (not in a git repository?)")

func (s *Store) hookPath(ctx context.Context) (string, error) {
	dir, err := s.git().HooksDir(ctx)
	if err != nil {
		return "", ErrNoHooksDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.root, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", ErrNoHooksDir
	}
	return filepath.Join(dir, "pre-commit"), nil
}

// InstallHook writes the pre-commit hook, or appends our block to an
// existing hook. Installing twice is a no-op.
func (s *Store) InstallHook(ctx context.Context) error {
	path, err := s.hookPath(ctx)
	if err != nil {
		return err
	}

	err = lockedfile.Transform(path, func(data []byte) ([]byte, error) {
		existing := string(data)
		switch {
		case strings.Contains(existing, HookMarker):
			return data, nil
		case strings.TrimSpace(existing) == "":
			return []byte(PreCommitHook), nil
		}

		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return []byte(existing + "\n# agentkit spec validation\n" + hookBody), nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to write pre-commit hook")
	}

	return errors.Wrap(os.Chmod(path, 0o755), "failed to make hook executable")
}

// HookStatus reports whether the pre-commit hook runs our validation.
func (s *Store) HookStatus(ctx context.Context) (HookState, error) {
	path, err := s.hookPath(ctx)
	if err != nil {
		return HookMissing, nil
	}
	if !fileExists(path) {
		return HookMissing, nil
	}
	data, err := readFile(path)
	if err != nil {
		return HookMissing, err
	}
	if strings.Contains(string(data), HookMarker) {
		return HookInstalled, nil
	}
	return HookForeign, nil
}
