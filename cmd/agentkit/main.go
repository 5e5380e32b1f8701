package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/agentkit/pkg/config"
	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/presenter"
)

// cfg is loaded before any subcommand runs.
var cfg = &config.Config{}

func init() {
	// Environment variables
	viper.SetEnvPrefix("AGENTKIT")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.agentkit")
	viper.AddConfigPath(".")

	config.SetDefaults(viper.GetViper())

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "agentkit",
	Short: "Tooling for AI coding-assistant configuration repositories",
	Long: `agentkit manages a repository of agent, skill and command definitions for an
AI coding assistant: it validates their frontmatter, lists them, tracks spec
tasks in .spec/, creates feature worktrees and imports credentials.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}
		presenter.SetQuiet(viper.GetBool("quiet"))
		ctx := logger.WithCommand(cmd.Context(), cmd.CommandPath())
		logger.G(ctx).WithField("flags", changedFlags(cmd.Flags())).Debug("running command")
		cmd.SetContext(ctx)
		return initTracing(ctx)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

// osExit is replaced in tests to observe the exit code.
var osExit = os.Exit

// exit flushes pending spans and terminates the process with code.
func exit(code int) {
	flushTracing(context.Background())
	osExit(code)
}

// exitOnError reports err through the presenter and exits with status 1.
func exitOnError(err error, msg string) {
	if err == nil {
		return
	}
	presenter.Error(err, msg)
	exit(1)
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, text, json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output; tables, JSON and errors are still printed")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	withTracing(rootCmd)

	ctx := context.Background()
	err := rootCmd.ExecuteContext(ctx)
	flushTracing(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
