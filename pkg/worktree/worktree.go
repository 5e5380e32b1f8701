// Package worktree creates git worktrees for feature branches as sibling
// directories of the main checkout and prepares their dependencies.
package worktree

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/agentkit/pkg/gitutil"
	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/telemetry"
)

// DefaultBase is the branch new branches start from when none is given.
const DefaultBase = "main"

var (
	// ErrMissingBranch is returned when no branch name is given.
	ErrMissingBranch = errors.New("branch name is required")
	// ErrNotGitRepository is returned outside a git work tree.
	ErrNotGitRepository = errors.New("not a git repository")
	// ErrPathExists is returned when the target directory already exists.
	ErrPathExists = errors.New("worktree path already exists")
	// ErrBranchCheckedOut is returned when another worktree has the branch.
	ErrBranchCheckedOut = errors.New("branch is already checked out")
)

// Options describe a worktree to create.
type Options struct {
	Dir       string // any directory inside the repository; empty means cwd
	Branch    string
	Base      string // defaults to DefaultBase
	NoInstall bool
	Runner    Runner // defaults to an exec runner on stdout/stderr
}

// Plan is the resolved layout of a worktree before anything is changed.
type Plan struct {
	Root         string // repository top level
	RepoName     string
	Slug         string
	Path         string
	Branch       string
	Base         string
	BranchExists bool
}

// Result reports what Setup did.
type Result struct {
	Plan
	Installer  *Installer // nil when no manifest was found
	Installed  bool
	InstallErr error      // install failures do not fail Setup
	Worktrees  []Worktree // set when the branch is checked out elsewhere
}

// Slug turns a branch name into a directory suffix.
func Slug(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// NewPlan resolves where the worktree for opts would live.
func NewPlan(ctx context.Context, opts Options) (*Plan, error) {
	if strings.TrimSpace(opts.Branch) == "" {
		return nil, ErrMissingBranch
	}

	git := gitutil.New(opts.Dir)
	if !git.IsRepository(ctx) {
		return nil, ErrNotGitRepository
	}
	root, err := git.TopLevel(ctx)
	if err != nil {
		return nil, err
	}
	root = filepath.Clean(root)

	base := opts.Base
	if base == "" {
		base = DefaultBase
	}

	name := filepath.Base(root)
	slug := Slug(opts.Branch)

	return &Plan{
		Root:         root,
		RepoName:     name,
		Slug:         slug,
		Path:         filepath.Join(filepath.Dir(root), name+"-"+slug),
		Branch:       opts.Branch,
		Base:         base,
		BranchExists: gitutil.New(root).BranchExists(ctx, opts.Branch),
	}, nil
}

// Setup creates the worktree and installs its dependencies. When the
// branch is already checked out the returned Result is non-nil and lists
// the existing worktrees alongside ErrBranchCheckedOut.
func Setup(ctx context.Context, opts Options) (*Result, error) {
	plan, err := NewPlan(ctx, opts)
	if err != nil {
		return nil, err
	}
	log := logger.G(ctx).WithField("branch", plan.Branch).WithField("path", plan.Path)
	telemetry.SetAttributes(ctx,
		attribute.String("worktree.branch", plan.Branch),
		attribute.String("worktree.base", plan.Base),
		attribute.Bool("worktree.branch_exists", plan.BranchExists),
	)

	if _, err := os.Stat(plan.Path); err == nil {
		return nil, errors.Wrapf(ErrPathExists, "%s", plan.Path)
	}

	result := &Result{Plan: *plan}

	worktrees, err := List(ctx, plan.Root)
	if err != nil {
		return nil, err
	}
	for _, wt := range worktrees {
		if wt.Branch == plan.Branch {
			result.Worktrees = worktrees
			return result, errors.Wrapf(ErrBranchCheckedOut, "'%s' in %s", plan.Branch, wt.Path)
		}
	}

	args := []string{"worktree", "add", "-b", plan.Branch, plan.Path, plan.Base}
	if plan.BranchExists {
		args = []string{"worktree", "add", plan.Path, plan.Branch}
	}
	log.WithField("base", plan.Base).WithField("existing_branch", plan.BranchExists).Info("creating worktree")

	if _, err := gitutil.New(plan.Root).Run(ctx, args...); err != nil {
		return nil, errors.Wrap(err, "failed to create worktree")
	}

	if opts.NoInstall {
		return result, nil
	}

	inst, ok := DetectInstaller(plan.Path)
	if !ok {
		log.Debug("no dependency manifest found")
		return result, nil
	}
	result.Installer = &inst

	runner := opts.Runner
	if runner == nil {
		runner = NewExecRunner(os.Stdout, os.Stderr)
	}
	if err := runner.Run(ctx, plan.Path, inst.Command, inst.Args...); err != nil {
		log.WithError(err).WithField("installer", inst.String()).Warn("dependency install failed")
		result.InstallErr = errors.Wrapf(err, "%s failed", inst)
		return result, nil
	}
	result.Installed = true

	return result, nil
}
