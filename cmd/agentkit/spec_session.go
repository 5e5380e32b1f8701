package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/presenter"
	"github.com/jingkaihe/agentkit/pkg/spec"
)

var specDepCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependencies",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var specDepAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on>",
	Short: "Add a dependency to a task",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)
		kind, _ := cmd.Flags().GetString("type")

		added, err := store.DepAdd(args[0], args[1], kind)
		exitOnError(err, "")
		if !added {
			presenter.Info(fmt.Sprintf("%s already depends on %s", args[0], args[1]))
			return
		}
		if kind == spec.DepDiscoveredFrom {
			presenter.Success(fmt.Sprintf("Added: %s discovered-from %s", args[0], args[1]))
			return
		}
		presenter.Success(fmt.Sprintf("Added: %s blocked-by %s", args[0], args[1]))
	},
}

var specDepRmCmd = &cobra.Command{
	Use:     "rm <task-id> <depends-on>",
	Aliases: []string{"remove"},
	Short:   "Remove a blocking dependency from a task",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)

		removed, err := store.DepRemove(args[0], args[1])
		exitOnError(err, "")
		if !removed {
			presenter.Info(fmt.Sprintf("%s does not depend on %s", args[0], args[1]))
			return
		}
		presenter.Success(fmt.Sprintf("Removed: %s no longer blocked-by %s", args[0], args[1]))
	},
}

var specDepListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "Show the dependencies of a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)

		blockedBy, discoveredFrom, err := store.DepList(args[0])
		exitOnError(err, "")

		outputf("Dependencies for %s:", args[0])
		if len(blockedBy) == 0 && len(discoveredFrom) == 0 {
			outputf("  (none)")
			return
		}
		if len(blockedBy) > 0 {
			outputf("  blocked-by: %s", strings.Join(blockedBy, ", "))
		}
		if len(discoveredFrom) > 0 {
			outputf("  discovered-from: %s", strings.Join(discoveredFrom, ", "))
		}
	},
}

var specHookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-commit hook that validates .spec/",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var specHookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install or extend the pre-commit hook",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := newSpecStore(cmd)

		state, err := store.HookStatus(cmd.Context())
		exitOnError(err, "")
		if state == spec.HookInstalled {
			presenter.Info("Pre-commit hook already validates .spec/")
			return
		}

		exitOnError(store.InstallHook(cmd.Context()), "")
		if state == spec.HookForeign {
			presenter.Success("Added .spec/ validation to existing pre-commit hook")
			return
		}
		presenter.Success("Installed git pre-commit hook for .spec/ validation")
	},
}

var specHookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the pre-commit hook validates .spec/",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := newSpecStore(cmd)

		state, err := store.HookStatus(cmd.Context())
		exitOnError(err, "")
		switch state {
		case spec.HookInstalled:
			presenter.Success("Pre-commit hook installed")
		case spec.HookForeign:
			presenter.Warning("Pre-commit hook exists but does not validate .spec/")
			presenter.Info("  Run: agentkit spec hook install")
		default:
			presenter.Info("No pre-commit hook installed")
			presenter.Info("  Run: agentkit spec hook install")
		}
	},
}

var specSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage the active work session",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var specSessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := requireSpecStore(cmd)
		sess, err := store.Session()
		exitOnError(err, "Failed to read session")

		if jsonFlag(cmd) {
			if sess == nil {
				printJSON(map[string]interface{}{})
				return
			}
			printJSON(sess)
			return
		}
		if sess == nil {
			presenter.Info("No active session")
			return
		}
		printSession(sess)
	},
}

func printSession(sess *spec.Session) {
	outputf("Task:    %s", sess.Task)
	outputf("Step:    %s", sess.Step)
	outputf("Started: %s", sess.Started)
	if sess.BaseCommit != "" {
		outputf("Base:    %s", sess.BaseCommit)
	}
}

var specSessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the active session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := requireSpecStore(cmd)
		sess, err := store.ClearSession()
		exitOnError(err, "Failed to clear session")
		if sess == nil {
			presenter.Info("No active session")
			return
		}
		presenter.Success(fmt.Sprintf("Session cleared (was: %s)", sess.Task))
	},
}

var specSessionStepCmd = &cobra.Command{
	Use:       "step <step>",
	Short:     "Move the active session to a workflow step",
	Long:      "Move the active session to one of: " + strings.Join(spec.Steps, ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: spec.Steps,
	Run: func(cmd *cobra.Command, args []string) {
		store := requireSpecStore(cmd)
		exitOnError(store.SetStep(args[0]), "")
		presenter.Success(fmt.Sprintf("Step: %s", args[0]))
	},
}

var specSessionResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Show the session with the task content to pick up where work stopped",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := requireSpecStore(cmd)
		sess, err := store.Session()
		exitOnError(err, "Failed to read session")

		if sess == nil {
			if jsonFlag(cmd) {
				printJSON(map[string]interface{}{"session": nil})
				return
			}
			presenter.Info("No active session to resume")
			presenter.Info("  Run: agentkit spec ready")
			return
		}

		content, err := store.Show(sess.Task)
		if err != nil {
			content = ""
		}

		if jsonFlag(cmd) {
			printJSON(map[string]interface{}{"session": sess, "task_content": content})
			return
		}

		presenter.Info(fmt.Sprintf("Resuming %s (step: %s)", sess.Task, sess.Step))
		if sess.BaseCommit != "" {
			presenter.Info(fmt.Sprintf("Base commit: %s", sess.BaseCommit))
		}
		if content != "" {
			presenter.Separator()
			fmt.Fprintln(presenter.Output(), content)
		}
	},
}

var specSessionHandoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Summarize the session for handing work over",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		store := requireSpecStore(cmd)
		h, err := store.Handoff(cmd.Context())
		exitOnError(err, "Failed to build handoff")

		if jsonFlag(cmd) {
			printJSON(h)
			return
		}

		presenter.Section("Handoff")
		if h.Task == "" {
			outputf("Task: (no active session)")
		} else {
			outputf("Task: %s (step: %s)", h.Task, h.Step)
		}
		if h.BaseCommit != "" {
			outputf("Base commit: %s", h.BaseCommit)
		}
		if h.DiffStat != "" {
			outputf("\nChanges since base:")
			for _, line := range strings.Split(h.DiffStat, "\n") {
				outputf("  %s", line)
			}
		}
		if len(h.Ready) > 0 {
			outputf("\nNext ready: %s", strings.Join(h.Ready, ", "))
		}
	},
}

func init() {
	specDepAddCmd.Flags().String("type", spec.DepBlocks, "Dependency type: blocks or discovered-from")

	for _, c := range []*cobra.Command{specSessionShowCmd, specSessionResumeCmd, specSessionHandoffCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}

	specDepCmd.AddCommand(specDepAddCmd, specDepRmCmd, specDepListCmd)
	specHookCmd.AddCommand(specHookInstallCmd, specHookStatusCmd)
	specSessionCmd.AddCommand(specSessionShowCmd, specSessionClearCmd, specSessionStepCmd,
		specSessionResumeCmd, specSessionHandoffCmd)
	specCmd.AddCommand(specDepCmd, specHookCmd, specSessionCmd)
}
