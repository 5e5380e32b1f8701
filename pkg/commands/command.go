// Package commands discovers slash-command definitions under commands/.
// The command name comes from the path: commands/git/commit.md is
// invoked as /git:commit.
package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/frontmatter"
)

// Frontmatter keys understood in command files
const (
	KeyDescription  = "description"
	KeyAllowedTools = "allowed-tools"
	KeyArgumentHint = "argument-hint"
	KeyModel        = "model"
)

// Pattern matches command files relative to a commands directory.
const Pattern = "**/*.md"

// Command is a loaded slash command.
type Command struct {
	Name         string
	Description  string
	AllowedTools []string
	ArgumentHint string
	Model        string
	Path         string
	Body         string
}

// NameFromPath derives the command name from a path relative to the
// commands directory.
func NameFromPath(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".md")
	return strings.ReplaceAll(rel, "/", ":")
}

// Load reads the command file at dir/rel.
func Load(dir, rel string) (*Command, error) {
	path := filepath.Join(dir, filepath.FromSlash(rel))
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read command file")
	}

	m, body, err := frontmatter.ReadMeta(content)
	if err != nil {
		return nil, err
	}

	cmd := &Command{
		Name: NameFromPath(rel),
		Path: path,
		Body: body,
	}
	if m != nil {
		cmd.Description = m.String(KeyDescription)
		cmd.AllowedTools = m.List(KeyAllowedTools)
		cmd.ArgumentHint = m.String(KeyArgumentHint)
		cmd.Model = m.String(KeyModel)
	}

	return cmd, nil
}

// Discover loads every command under the given directories. Earlier
// directories take precedence on name clashes. Load failures are returned
// as a multierror alongside the commands that did load.
func Discover(dirs ...string) ([]*Command, error) {
	var (
		result   *multierror.Error
		commands []*Command
		seen     = make(map[string]bool)
	)

	for _, dir := range dirs {
		matches, err := doublestar.Glob(os.DirFS(dir), Pattern, doublestar.WithFilesOnly())
		if err != nil {
			continue
		}
		sort.Strings(matches)

		for _, rel := range matches {
			if hidden(rel) {
				continue
			}
			cmd, err := Load(dir, rel)
			if err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "command %s", filepath.Join(dir, rel)))
				continue
			}
			if seen[cmd.Name] {
				continue
			}
			seen[cmd.Name] = true
			commands = append(commands, cmd)
		}
	}

	return commands, result.ErrorOrNil()
}

// DefaultDirs returns ./commands and ~/.claude/commands.
func DefaultDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user home directory")
	}
	return []string{"./commands", filepath.Join(home, ".claude", "commands")}, nil
}

func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
