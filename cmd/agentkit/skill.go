package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/presenter"
	"github.com/jingkaihe/agentkit/pkg/skills"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Inspect skill definitions",
	Long:  `List and show skills discovered in ./skills and ~/.claude/skills.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all discovered skills",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		listSkillsCmd(cmd)
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <skill-name>",
	Short: "Show a skill's metadata and instructions",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		showSkillCmd(args[0])
	},
}

func init() {
	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	rootCmd.AddCommand(skillCmd)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func listSkillsCmd(cmd *cobra.Command) {
	discovery, err := skills.NewDiscovery()
	exitOnError(err, "Failed to initialize skill discovery")

	allSkills, err := discovery.DiscoverSkills()
	if err != nil {
		logger.G(cmd.Context()).WithError(err).Warn("some skills failed to load")
	}

	if len(allSkills) == 0 {
		presenter.Info("No skills found")
		return
	}

	names := make([]string, 0, len(allSkills))
	for name := range allSkills {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(presenter.Output(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINVOCABLE\tDIRECTORY\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t---------\t---------\t-----------")

	for _, name := range names {
		skill := allSkills[name]
		invocable := "-"
		if skill.UserInvocable {
			invocable = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", skill.Name, invocable, skill.Directory, truncate(skill.Description, 60))
	}
	tw.Flush()
}

func showSkillCmd(name string) {
	discovery, err := skills.NewDiscovery()
	exitOnError(err, "Failed to initialize skill discovery")

	skill, err := discovery.GetSkill(name)
	exitOnError(err, "Skill not found")

	presenter.Section(skill.Name)
	presenter.Info(fmt.Sprintf("Description:    %s", skill.Description))
	presenter.Info(fmt.Sprintf("Path:           %s", skill.Path))
	if skill.ArgumentHint != "" {
		presenter.Info(fmt.Sprintf("Argument hint:  %s", skill.ArgumentHint))
	}
	if skill.Context != "" {
		presenter.Info(fmt.Sprintf("Context:        %s", skill.Context))
	}
	presenter.Info(fmt.Sprintf("User-invocable: %t", skill.UserInvocable))
	presenter.List("Allowed tools:", skill.AllowedTools)
	presenter.Separator()
	fmt.Fprint(presenter.Output(), skill.Content)
}
