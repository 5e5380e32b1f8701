package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/credentials"
	"github.com/jingkaihe/agentkit/pkg/presenter"
)

// ImportGeminiConfig holds configuration for the import-gemini command
type ImportGeminiConfig struct {
	Source  string
	AuthDir string
}

// NewImportGeminiConfig creates a new ImportGeminiConfig with default values
func NewImportGeminiConfig() *ImportGeminiConfig {
	return &ImportGeminiConfig{
		Source:  credentials.DefaultSource(),
		AuthDir: credentials.DefaultAuthDir(),
	}
}

var importGeminiCmd = &cobra.Command{
	Use:   "import-gemini",
	Short: "Import Gemini CLI credentials into a CLIProxyAPI auth directory",
	Long: `Convert the OAuth credentials written by 'gemini auth login' into the token
storage format read by CLIProxyAPI.

The account email is taken from the id_token and the output is written to
<auth-dir>/<email>-.json with owner-only permissions. The OAuth client is read
from gemini.client_id / gemini.client_secret or the GEMINI_OAUTH_CLIENT_ID and
GEMINI_OAUTH_CLIENT_SECRET environment variables.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getImportGeminiConfigFromFlags(cmd)

		res, err := credentials.ImportGemini(credentials.ImportOptions{
			Source:       config.Source,
			AuthDir:      config.AuthDir,
			ClientID:     cfg.Gemini.ClientID,
			ClientSecret: cfg.Gemini.ClientSecret,
		})
		if errors.Is(err, credentials.ErrSourceNotFound) {
			presenter.Error(err, "")
			presenter.Info("Run 'gemini auth login' first.")
			exit(1)
		}
		exitOnError(err, "Failed to import Gemini credentials")

		presenter.Success(fmt.Sprintf("Imported Gemini credentials for %s", res.Email))
		presenter.Info(fmt.Sprintf("  Source: %s", res.Source))
		presenter.Info(fmt.Sprintf("  Target: %s", res.Target))
	if res.Expired {
		presenter.Warning("Access token has expired; CLIProxyAPI will refresh it on first use")
	}
	},
}

func getImportGeminiConfigFromFlags(cmd *cobra.Command) *ImportGeminiConfig {
	config := NewImportGeminiConfig()
	config.Source = stringOr(cmd.Flags(), "source", config.Source)
	config.AuthDir = stringOr(cmd.Flags(), "auth-dir", config.AuthDir)
	return config
}

func init() {
	defaults := NewImportGeminiConfig()
	importGeminiCmd.Flags().String("source", defaults.Source, "Path to the Gemini CLI oauth_creds.json")
	importGeminiCmd.Flags().String("auth-dir", defaults.AuthDir, "CLIProxyAPI auth directory")

	rootCmd.AddCommand(importGeminiCmd)
}
