// Package config loads agentkit settings from viper (flags, AGENTKIT_*
// environment variables and config.yaml) into a typed Config.
package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the full agentkit configuration tree.
type Config struct {
	LogLevel  string         `mapstructure:"log_level"`
	LogFormat string         `mapstructure:"log_format"`
	Worktree  WorktreeConfig `mapstructure:"worktree"`
	Validate  ValidateConfig `mapstructure:"validate"`
	Spec      SpecConfig     `mapstructure:"spec"`
	Gemini    GeminiConfig   `mapstructure:"gemini"`
	Tracing   TracingConfig  `mapstructure:"tracing"`
}

// WorktreeConfig controls `agentkit worktree`.
type WorktreeConfig struct {
	BaseBranch string `mapstructure:"base_branch"`
	Install    bool   `mapstructure:"install"`
}

// ValidateConfig controls `agentkit validate`.
type ValidateConfig struct {
	Root         string            `mapstructure:"root"`
	Ignore       []string          `mapstructure:"ignore"`
	Enforcer     string            `mapstructure:"enforcer"`
	ExpectedJSON []JSONExpectation `mapstructure:"expected_json"`
}

// JSONExpectation names a JSON config file and the top-level keys it should
// carry. It is a list entry rather than a map because file names contain
// dots, which viper treats as key separators.
type JSONExpectation struct {
	File string   `mapstructure:"file"`
	Keys []string `mapstructure:"keys"`
}

// SpecConfig controls `agentkit spec`.
type SpecConfig struct {
	Dir           string `mapstructure:"dir"`
	ProgressLimit int    `mapstructure:"progress_limit"`
}

// GeminiConfig holds the OAuth client used when importing Gemini CLI
// credentials.
type GeminiConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// Defaults used when neither flags, env nor config file set a key.
const (
	DefaultBaseBranch    = "main"
	DefaultSpecDir       = ".spec"
	DefaultProgressLimit = 10
	DefaultEnforcer      = "hooks/skill-enforcer.sh"
)

// DefaultIgnore lists the paths `validate` never inspects.
var DefaultIgnore = []string{"**/.system/**", ".git/**"}

// DefaultExpectedJSON lists config JSON files and keys they should carry.
var DefaultExpectedJSON = []JSONExpectation{
	{File: "hook-config.json", Keys: []string{"file-protector", "smart-lint"}},
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("worktree.base_branch", DefaultBaseBranch)
	v.SetDefault("worktree.install", true)
	v.SetDefault("validate.root", ".")
	v.SetDefault("validate.ignore", DefaultIgnore)
	v.SetDefault("validate.enforcer", DefaultEnforcer)
	v.SetDefault("spec.dir", DefaultSpecDir)
	v.SetDefault("spec.progress_limit", DefaultProgressLimit)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)

	// The Gemini CLI client is shared with other tools; keep the variable
	// names those tools document.
	_ = v.BindEnv("gemini.client_id", "GEMINI_OAUTH_CLIENT_ID")
	_ = v.BindEnv("gemini.client_secret", "GEMINI_OAUTH_CLIENT_SECRET")
}

// Load decodes the settings held by v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create config decoder")
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	applyFallbacks(cfg)
	return cfg, nil
}

// applyFallbacks fills values that an explicit empty setting would
// otherwise leave unusable.
func applyFallbacks(cfg *Config) {
	if cfg.Worktree.BaseBranch == "" {
		cfg.Worktree.BaseBranch = DefaultBaseBranch
	}
	if cfg.Validate.Root == "" {
		cfg.Validate.Root = "."
	}
	if cfg.Validate.ExpectedJSON == nil {
		cfg.Validate.ExpectedJSON = DefaultExpectedJSON
	}
	if cfg.Spec.Dir == "" {
		cfg.Spec.Dir = DefaultSpecDir
	}
	if cfg.Spec.ProgressLimit <= 0 {
		cfg.Spec.ProgressLimit = DefaultProgressLimit
	}
}
