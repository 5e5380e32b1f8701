package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/presenter"
	"github.com/jingkaihe/agentkit/pkg/spec"
	"github.com/jingkaihe/agentkit/pkg/spec/specmcp"
	"github.com/jingkaihe/agentkit/pkg/version"
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Track spec-driven work in .spec/",
	Long: `Manage the .spec/ task tracker. Requirements, epics and tasks are markdown
files whose YAML frontmatter holds all state:

  .spec/reqs/REQ-*.md     requirements
  .spec/epics/EPIC-*.md   epics (status, implements, tasks)
  .spec/tasks/TASK-*.md   tasks (status, priority, epic, blocked-by)
  .spec/PROGRESS.md       recent activity
  .spec/SESSION.yaml      the task currently being worked on

Examples:
  agentkit spec init
  agentkit spec ready --epic EPIC-auth
  agentkit spec start TASK-login
  agentkit spec done TASK-login --summary "Added login form" --files src/login.ts
  agentkit spec dep add TASK-b TASK-a
  agentkit spec session handoff --json`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

// newSpecStore opens the store for the repository containing the working
// directory.
func newSpecStore(cmd *cobra.Command) *spec.Store {
	cwd, err := os.Getwd()
	exitOnError(err, "Failed to get working directory")

	root := spec.RepoRoot(cmd.Context(), cwd)
	return spec.New(root, spec.WithDir(cfg.Spec.Dir), spec.WithProgressLimit(cfg.Spec.ProgressLimit))
}

// requireSpecStore is newSpecStore for commands that need .spec/ to exist.
func requireSpecStore(cmd *cobra.Command) *spec.Store {
	store := newSpecStore(cmd)
	if !store.Exists() {
		exitOnError(spec.ErrNotInitialized, "")
	}
	return store
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(presenter.Output())
	exitOnError(enc.Encode(v), "Failed to encode JSON")
}

// outputf writes a data line. Quiet mode does not suppress it.
func outputf(format string, args ...interface{}) {
	fmt.Fprintf(presenter.Output(), format+"\n", args...)
}

func jsonFlag(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

var specInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .spec/ directory structure",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := newSpecStore(cmd)
		res, err := store.Init(cmd.Context())
		exitOnError(err, "Failed to initialize .spec/")

		if !res.Created {
			presenter.Info(fmt.Sprintf(".spec/ already exists at %s", store.Dir()))
			return
		}
		presenter.Success(fmt.Sprintf("Created .spec/ at %s", store.Dir()))
		if res.HookInstalled {
			presenter.Success("Installed git pre-commit hook for .spec/ validation")
		}
		presenter.Info("\nNext steps:")
		presenter.Info("  1. Create a requirement in .spec/reqs/REQ-<name>.md")
		presenter.Info("  2. Or interview for requirements: /spec:interview 'your feature idea'")
	},
}

type readyItem struct {
	ID       string `json:"id"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
}

var specReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Show unblocked tasks in priority order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := requireSpecStore(cmd)
		epic, _ := cmd.Flags().GetString("epic")

		ready, err := store.Ready(epic)
		exitOnError(err, "Failed to load tasks")

		if jsonFlag(cmd) {
			items := make([]readyItem, 0, len(ready))
			for _, t := range ready {
				items = append(items, readyItem{ID: t.ID, Priority: t.Priority, Title: t.Title})
			}
			printJSON(items)
			return
		}

		if len(ready) == 0 {
			presenter.Info("No tasks ready to start.")

			blocked, err := store.Blocked(epic)
			exitOnError(err, "Failed to load tasks")
			if len(blocked) > 0 {
				outputf("\nBlocked tasks:")
				for _, b := range blocked {
					outputf("  %s (waiting for: %s)", b.Task.ID, strings.Join(b.Unmet, ", "))
				}
			}
			return
		}

		outputf("Ready tasks (in priority order):\n")
		for _, t := range ready {
			epicID := t.Epic
			if epicID == "" {
				epicID = "-"
			}
			outputf("  %-30s priority=%-8s epic=%s", t.ID, t.Priority, epicID)
		}
		presenter.Info(fmt.Sprintf("\nStart work: agentkit spec start %s", ready[0].ID))
	},
}

var specStartCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Mark a task in progress and open a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)
		id := args[0]

		res, err := store.Start(cmd.Context(), id)
		exitOnError(err, "")

		if res.AlreadyInProgress {
			presenter.Info(fmt.Sprintf("Task %s is already in_progress", id))
			return
		}
		if res.Other != nil {
			presenter.Warning(fmt.Sprintf("Session existed for %s and was replaced", res.Other.Task))
			presenter.Info("  Use 'agentkit spec session clear' to clear a session before switching tasks")
		}
		presenter.Success(fmt.Sprintf("Started %s", id))
		if res.Session.BaseCommit != "" {
			presenter.Info(fmt.Sprintf("  Base commit: %s", res.Session.BaseCommit))
		}
	},
}

// SpecDoneConfig holds the evidence flags of `spec done`
type SpecDoneConfig struct {
	Summary string
	Files   string
	Commits string
	Tests   string
}

// NewSpecDoneConfig creates a new SpecDoneConfig with default values
func NewSpecDoneConfig() *SpecDoneConfig {
	return &SpecDoneConfig{}
}

func getSpecDoneConfigFromFlags(cmd *cobra.Command) *SpecDoneConfig {
	config := NewSpecDoneConfig()
	if summary, err := cmd.Flags().GetString("summary"); err == nil {
		config.Summary = summary
	}
	if files, err := cmd.Flags().GetString("files"); err == nil {
		config.Files = files
	}
	if commits, err := cmd.Flags().GetString("commits"); err == nil {
		config.Commits = commits
	}
	if tests, err := cmd.Flags().GetString("tests"); err == nil {
		config.Tests = tests
	}
	return config
}

func (c *SpecDoneConfig) evidence() spec.Evidence {
	return spec.Evidence{
		Summary: c.Summary,
		Files:   spec.SplitList(c.Files),
		Commits: spec.SplitList(c.Commits),
		Tests:   c.Tests,
	}
}

var specDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task done with evidence",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)
		config := getSpecDoneConfigFromFlags(cmd)

		res, err := store.Done(cmd.Context(), args[0], config.evidence())
		exitOnError(err, "")

		presenter.Success(fmt.Sprintf("Completed %s", args[0]))
		if len(res.Unblocked) > 0 {
			n := len(res.Unblocked)
			if n > 3 {
				n = 3
			}
			ids := make([]string, 0, n)
			for _, t := range res.Unblocked[:n] {
				ids = append(ids, t.ID)
			}
			presenter.Info(fmt.Sprintf("\nNewly unblocked: %s", strings.Join(ids, ", ")))
		}
	},
}

var specResetCmd = &cobra.Command{
	Use:   "reset <task-id>",
	Short: "Reset a task back to todo",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)

		changed, err := store.Reset(args[0])
		exitOnError(err, "")
		if !changed {
			presenter.Info(fmt.Sprintf("Task %s is already todo", args[0]))
			return
		}
		presenter.Success(fmt.Sprintf("Reset %s to todo", args[0]))
	},
}

var specValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check .spec/ for missing fields, dangling references and cycles",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := requireSpecStore(cmd)

		issues, err := store.Validate()
		exitOnError(err, "Failed to validate .spec/")

		if len(issues) > 0 {
			presenter.List("Validation issues found:\n", issues)
			exit(1)
		}
		presenter.Success("No issues found")
	},
}

var specStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show a progress overview, or the status of one task or epic",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)
		if len(args) == 1 {
			showItemStatus(store, args[0])
			return
		}

		o, err := store.Overview()
		exitOnError(err, "Failed to load .spec/")

		if jsonFlag(cmd) {
			printJSON(o.Counts)
			return
		}
		printOverview(o)
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func showItemStatus(store *spec.Store, id string) {
	if task, err := store.Task(id); err == nil {
		outputf("Task: %s", task.ID)
		outputf("Status: %s", orUnknown(task.Status))
		outputf("Priority: %s", task.Priority)
		outputf("Epic: %s", orDash(task.Epic))
		if len(task.BlockedBy) > 0 {
			outputf("Blocked by: %s", strings.Join(task.BlockedBy, ", "))
		}
		return
	}

	epic, err := store.Epic(id)
	if err != nil {
		exitOnError(&spec.NotFoundError{ID: id}, "")
	}
	outputf("Epic: %s", epic.ID)
	outputf("Status: %s", orUnknown(epic.Status))
	outputf("Implements: %s", orDash(epic.Implements))
	if len(epic.Tasks) > 0 {
		outputf("Tasks: %s", strings.Join(epic.Tasks, ", "))
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func printOverview(o *spec.Overview) {
	rule := strings.Repeat("═", 51)
	outputf("%s", rule)
	outputf("                  SPEC STATUS")
	outputf("%s", rule)
	outputf("Requirements: %d", o.Requirements)
	outputf("Epics:        %d (%d done)", o.Epics, o.EpicsDone)
	outputf("Tasks:        %d (%d done, %d in progress, %d todo)", o.Total, o.Done, o.Counts.InProgress, o.Todo)
	outputf("%s", strings.Repeat("─", 51))

	if len(o.InProgress) > 0 {
		outputf("\nIn Progress:")
		for _, t := range o.InProgress {
			outputf("  → %s", t.ID)
		}
	}

	if len(o.Ready) > 0 {
		outputf("\nReady to Start:")
		for i, t := range o.Ready {
			if i == 5 {
				outputf("  ... and %d more", len(o.Ready)-5)
				break
			}
			outputf("  • %s", t.ID)
		}
	}

	if len(o.Recent) > 0 {
		outputf("\nRecent Activity:")
		for _, line := range o.Recent {
			outputf("  %s", line)
		}
	}
}

var specShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a task, epic or requirement file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)
		content, err := store.Show(args[0])
		exitOnError(err, "")
		fmt.Fprintln(presenter.Output(), content)
	},
}

var specEpicCmd = &cobra.Command{
	Use:   "epic",
	Short: "Manage epics",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var specEpicCloseCmd = &cobra.Command{
	Use:   "close <epic-id>",
	Short: "Mark an epic as done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)
		force, _ := cmd.Flags().GetBool("force")

		closed, err := store.CloseEpic(args[0], force)
		exitOnError(err, "")
		if !closed {
			presenter.Info(fmt.Sprintf("Epic %s is already done", args[0]))
			return
		}
		presenter.Success(fmt.Sprintf("Closed epic %s", args[0]))
	},
}

var specMCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the spec tools to coding agents over MCP (stdio)",
	Long: `Run an MCP server on stdin/stdout exposing spec_ready, spec_status,
spec_show, spec_start, spec_done, spec_dep_add, spec_validate and
spec_handoff for the .spec/ directory of the current repository.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := requireSpecStore(cmd)
		exitOnError(specmcp.Serve(store, version.Get().Version), "MCP server failed")
	},
}

func init() {
	specReadyCmd.Flags().String("epic", "", "Filter by epic ID")
	specReadyCmd.Flags().Bool("json", false, "Output as JSON")

	defaults := NewSpecDoneConfig()
	specDoneCmd.Flags().String("summary", defaults.Summary, "Summary of what was done")
	specDoneCmd.Flags().String("files", defaults.Files, "Comma-separated list of changed files")
	specDoneCmd.Flags().String("commits", defaults.Commits, "Comma-separated list of commit hashes")
	specDoneCmd.Flags().String("tests", defaults.Tests, "Test results")

	specStatusCmd.Flags().Bool("json", false, "Output as JSON")
	specEpicCloseCmd.Flags().Bool("force", false, "Close even if tasks are incomplete")

	specEpicCmd.AddCommand(specEpicCloseCmd)
	specCmd.AddCommand(specInitCmd, specReadyCmd, specStartCmd, specDoneCmd, specResetCmd,
		specValidateCmd, specStatusCmd, specShowCmd, specEpicCmd, specMCPCmd)
	rootCmd.AddCommand(specCmd)
}
