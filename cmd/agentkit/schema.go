package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentkit/pkg/presenter"
	"github.com/jingkaihe/agentkit/pkg/schema"
)

var schemaCmd = &cobra.Command{
	Use:       "schema <kind>",
	Short:     "Print the JSON Schema of a frontmatter kind",
	Long:      "Print the JSON Schema for the YAML frontmatter of one of: " + strings.Join(schema.Kinds(), ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: schema.Kinds(),
	Run: func(_ *cobra.Command, args []string) {
		s, err := schema.For(args[0])
		exitOnError(err, "")

		data, err := json.MarshalIndent(s, "", "  ")
		exitOnError(err, "Failed to encode schema")
		fmt.Fprintln(presenter.Output(), string(data))
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
