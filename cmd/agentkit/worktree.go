package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/presenter"
	"github.com/jingkaihe/agentkit/pkg/worktree"
)

// WorktreeConfig holds configuration for the worktree command
type WorktreeConfig struct {
	Base      string
	NoInstall bool
}

// NewWorktreeConfig creates a new WorktreeConfig from the loaded settings
func NewWorktreeConfig() *WorktreeConfig {
	return &WorktreeConfig{
		Base:      cfg.Worktree.BaseBranch,
		NoInstall: !cfg.Worktree.Install,
	}
}

var worktreeCmd = &cobra.Command{
	Use:   "worktree <branch-name> [base-branch]",
	Short: "Create a git worktree for a branch next to the repository",
	Long: `Create a git worktree for <branch-name> in a sibling directory named
<repo>-<slug>, where the slug is the branch name with every '/' replaced by '-'.

An existing local branch is checked out as is; otherwise the branch is created
from [base-branch] (default: main). Dependencies are then installed with the
first matching tool: package.json (npm install), go.mod (go mod download),
pyproject.toml (uv sync) or Cargo.toml (cargo fetch).

Examples:
  agentkit worktree feature/auth/login
  agentkit worktree fix/typo develop
  agentkit worktree spike --no-install`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		config := getWorktreeConfigFromFlags(cmd)
		if len(args) > 1 {
			config.Base = args[1]
		}
		runWorktreeCmd(cmd, args[0], config)
	},
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List worktrees of the current repository",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		worktrees, err := worktree.List(cmd.Context(), "")
		exitOnError(err, "Failed to list worktrees")
		printWorktrees(worktrees)
	},
}

func init() {
	worktreeCmd.Flags().Bool("no-install", false, "Skip dependency installation")

	worktreeCmd.AddCommand(worktreeListCmd)
	rootCmd.AddCommand(worktreeCmd)
}

func getWorktreeConfigFromFlags(cmd *cobra.Command) *WorktreeConfig {
	config := NewWorktreeConfig()
	if cmd.Flags().Changed("no-install") {
		if noInstall, err := cmd.Flags().GetBool("no-install"); err == nil {
			config.NoInstall = noInstall
		}
	}
	return config
}

func runWorktreeCmd(cmd *cobra.Command, branch string, config *WorktreeConfig) {
	ctx := cmd.Context()

	res, err := worktree.Setup(ctx, worktree.Options{
		Branch:    branch,
		Base:      config.Base,
		NoInstall: config.NoInstall,
		Runner:    worktree.NewExecRunner(os.Stdout, os.Stderr),
	})
	if errors.Is(err, worktree.ErrBranchCheckedOut) && res != nil {
		presenter.Error(err, "Cannot create worktree")
		presenter.Info("\nExisting worktrees:")
		printWorktrees(res.Worktrees)
		exit(1)
	}
	exitOnError(err, "Cannot create worktree")

	presenter.Success(fmt.Sprintf("Worktree ready at %s", res.Path))
	presenter.Info(fmt.Sprintf("  Branch: %s", res.Branch))
	if res.BranchExists {
		presenter.Info("  Base:   (existing branch)")
	} else {
		presenter.Info(fmt.Sprintf("  Base:   %s", res.Base))
	}

	switch {
	case config.NoInstall:
		presenter.Info("  Deps:   skipped (--no-install)")
	case res.Installer == nil:
		presenter.Info("  Deps:   no manifest found")
	case res.InstallErr != nil:
		presenter.Warning(fmt.Sprintf("Dependency install failed: %v", res.InstallErr))
	default:
		presenter.Info(fmt.Sprintf("  Deps:   %s", res.Installer))
	}

	presenter.Info(fmt.Sprintf("\ncd %s", res.Path))
}

func printWorktrees(worktrees []worktree.Worktree) {
	tw := tabwriter.NewWriter(presenter.Output(), 0, 0, 2, ' ', 0)
	for _, wt := range worktrees {
		ref := wt.Branch
		switch {
		case wt.Bare:
			ref = "(bare)"
		case wt.Detached:
			ref = "(detached)"
		}
		head := wt.Head
		if len(head) > 7 {
			head = head[:7]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", wt.Path, head, ref)
	}
	tw.Flush()
}
