package main

import (
	"github.com/spf13/pflag"
)

// stringOr returns the flag value when the user set it, otherwise fallback.
// Flags whose defaults come from configuration use it so that an unset flag
// does not mask config.yaml or AGENTKIT_* values.
func stringOr(fs *pflag.FlagSet, name, fallback string) string {
	if !fs.Changed(name) {
		return fallback
	}
	if v, err := fs.GetString(name); err == nil {
		return v
	}
	return fallback
}

// changedFlags lists the names of flags set on the command line.
func changedFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.Visit(func(f *pflag.Flag) {
		names = append(names, f.Name)
	})
	return names
}
