// Package gitutil wraps the git CLI for the worktree and spec commands.
// Mutating commands are retried when another git process holds the index
// lock, which happens routinely when an editor or a second agent runs git
// in the same repository.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/osutil"
)

const (
	defaultAttempts = 4
	defaultDelay    = 150 * time.Millisecond
)

// CommandError is returned when git exits non-zero.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Git runs git commands in a fixed working directory.
type Git struct {
	dir      string
	attempts uint
	delay    time.Duration
}

// Option configures a Git runner
type Option func(*Git)

// WithRetry overrides the lock-contention retry policy.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(g *Git) {
		g.attempts = attempts
		g.delay = delay
	}
}

// New returns a runner executing git in dir. An empty dir means the
// process working directory.
func New(dir string, opts ...Option) *Git {
	g := &Git{
		dir:      dir,
		attempts: defaultAttempts,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run executes git with args and returns trimmed stdout.
func (g *Git) Run(ctx context.Context, args ...string) (string, error) {
	var out string

	err := retry.Do(
		func() error {
			var runErr error
			out, runErr = g.runOnce(ctx, args...)
			return runErr
		},
		retry.RetryIf(isLockContention),
		retry.Attempts(g.attempts),
		retry.Delay(g.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("git index locked, retrying")
		}),
	)

	return out, err
}

func (g *Git) runOnce(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := osutil.Command(ctx, g.dir, "git", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.G(ctx).WithField("args", args).Debug("running git")

	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}

func isLockContention(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, "Unable to create") && strings.Contains(cmdErr.Stderr, ".lock")
}

// IsRepository reports whether dir is inside a git work tree.
func (g *Git) IsRepository(ctx context.Context) bool {
	out, err := g.runOnce(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// TopLevel returns the absolute path of the work tree root.
func (g *Git) TopLevel(ctx context.Context) (string, error) {
	out, err := g.runOnce(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve repository root")
	}
	return out, nil
}

// BranchExists reports whether refs/heads/<branch> exists.
func (g *Git) BranchExists(ctx context.Context, branch string) bool {
	_, err := g.runOnce(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// ShortHead returns the abbreviated HEAD commit.
func (g *Git) ShortHead(ctx context.Context) (string, error) {
	return g.runOnce(ctx, "rev-parse", "--short", "HEAD")
}

// DiffStat returns `git diff --stat base..HEAD`.
func (g *Git) DiffStat(ctx context.Context, base string) (string, error) {
	return g.runOnce(ctx, "diff", "--stat", base+"..HEAD")
}

// HooksDir returns the directory git reads hooks from. It honours linked
// worktrees and core.hooksPath.
func (g *Git) HooksDir(ctx context.Context) (string, error) {
	out, err := g.runOnce(ctx, "rev-parse", "--path-format=absolute", "--git-path", "hooks")
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve hooks directory")
	}
	return out, nil
}
