package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/presenter"
	"github.com/jingkaihe/agentkit/pkg/validate"
)

// ValidateConfig holds configuration for the validate command
type ValidateConfig struct {
	Root     string
	Watch    bool
	Debounce int // milliseconds
}

// NewValidateConfig creates a new ValidateConfig with default values
func NewValidateConfig() *ValidateConfig {
	return &ValidateConfig{
		Root:     cfg.Validate.Root,
		Watch:    false,
		Debounce: int(validate.DefaultDebounce / time.Millisecond),
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate agent, skill and command definitions",
	Long: `Check the configuration repository for structural problems:

  - skills/*/SKILL.md, agents/**/*.md and commands/**/*.md carry YAML
    frontmatter with their required fields
  - every skill folder has a SKILL.md
  - user-invocable skills are referenced by the skill enforcer hook
  - command allowed-tools is a YAML list
  - JSON config files parse and carry their expected keys
  - every TOML file parses

Exits 1 when any error is found. Warnings never fail the run.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getValidateConfigFromFlags(cmd)
		runValidateCmd(cmd.Context(), config)
	},
}

func init() {
	validateCmd.Flags().String("root", ".", "Repository root to validate (default from validate.root)")
	validateCmd.Flags().BoolP("watch", "w", false, "Re-run validation whenever files change")
	validateCmd.Flags().IntP("debounce", "d", int(validate.DefaultDebounce/time.Millisecond), "Debounce time in milliseconds for --watch")

	rootCmd.AddCommand(validateCmd)
}

func getValidateConfigFromFlags(cmd *cobra.Command) *ValidateConfig {
	config := NewValidateConfig()
	config.Root = stringOr(cmd.Flags(), "root", config.Root)
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounce, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.Debounce = debounce
	}
	return config
}

func runValidateCmd(ctx context.Context, config *ValidateConfig) {
	v, err := validate.New(config.Root, validate.FromConfig(cfg.Validate)...)
	exitOnError(err, "Invalid validate configuration")

	if !config.Watch {
		report := v.Run(ctx)
		report.Write(presenter.Output())
		if !report.OK() {
			exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	presenter.Info("Watching " + v.Root() + " for changes... Press Ctrl+C to stop")
	err = v.Watch(ctx, time.Duration(config.Debounce)*time.Millisecond, func(report *validate.Report) {
		presenter.Separator()
		report.Write(presenter.Output())
	})
	exitOnError(err, "Watch failed")
}
