package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/commands"
	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/presenter"
)

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Inspect slash-command definitions",
	Long: `List slash commands discovered in ./commands and ~/.claude/commands.
Nested files become namespaced commands: commands/git/commit.md is /git:commit.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var commandListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all discovered commands",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		dirs, err := commands.DefaultDirs()
		exitOnError(err, "Failed to resolve command directories")

		all, err := commands.Discover(dirs...)
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("some commands failed to load")
		}

		if len(all) == 0 {
			presenter.Info("No commands found")
			return
		}

		tw := tabwriter.NewWriter(presenter.Output(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "COMMAND\tARGUMENTS\tTOOLS\tDESCRIPTION")
		fmt.Fprintln(tw, "-------\t---------\t-----\t-----------")
		for _, c := range all {
			hint := c.ArgumentHint
			if hint == "" {
				hint = "-"
			}
			tools := strings.Join(c.AllowedTools, ",")
			if tools == "" {
				tools = "-"
			}
			fmt.Fprintf(tw, "/%s\t%s\t%s\t%s\n", c.Name, hint, truncate(tools, 30), truncate(c.Description, 60))
		}
		tw.Flush()
	},
}

func init() {
	commandCmd.AddCommand(commandListCmd)
	rootCmd.AddCommand(commandCmd)
}
