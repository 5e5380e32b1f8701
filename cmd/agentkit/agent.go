package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/agents"
	"github.com/jingkaihe/agentkit/pkg/presenter"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect agent definitions",
	Long:  `List and show agents discovered in ./agents and ~/.claude/agents.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all discovered agents",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		processor, err := agents.NewAgentProcessor()
		exitOnError(err, "Failed to initialize agent discovery")

		all, err := processor.ListAgents(cmd.Context())
		exitOnError(err, "Failed to list agents")

		if len(all) == 0 {
			presenter.Info("No agents found")
			return
		}

		tw := tabwriter.NewWriter(presenter.Output(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tMODEL\tTOOLS\tDESCRIPTION")
		fmt.Fprintln(tw, "----\t-----\t-----\t-----------")
		for _, a := range all {
			model := a.Metadata.Model
			if model == "" {
				model = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", a.Metadata.Name, model, len(a.Metadata.Tools), truncate(a.Metadata.Description, 60))
		}
		tw.Flush()
	},
}

var agentShowCmd = &cobra.Command{
	Use:   "show <agent-name>",
	Short: "Show an agent's metadata and system prompt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		processor, err := agents.NewAgentProcessor()
		exitOnError(err, "Failed to initialize agent discovery")

		agent, err := processor.LoadAgent(cmd.Context(), args[0])
		exitOnError(err, "Agent not found")

		presenter.Section(agent.Metadata.Name)
		presenter.Info(fmt.Sprintf("Description: %s", agent.Metadata.Description))
		presenter.Info(fmt.Sprintf("Path:        %s", agent.Path))
		if agent.Metadata.Model != "" {
			presenter.Info(fmt.Sprintf("Model:       %s", agent.Metadata.Model))
		}
		presenter.Info(fmt.Sprintf("Tools:       %s", strings.Join(agent.Metadata.Tools, ", ")))
		if err := processor.ValidateAgent(agent); err != nil {
			presenter.Warning(err.Error())
		}
		presenter.Separator()
		fmt.Fprint(presenter.Output(), agent.SystemPrompt)
	},
}

func init() {
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentShowCmd)
	rootCmd.AddCommand(agentCmd)
}
