// Package schema publishes JSON Schemas for the YAML frontmatter of every
// definition and spec file kind, so editors can validate them as they are
// written.
package schema

import (
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ToolList accepts a YAML list of tool names or a comma-separated string.
type ToolList []string

// JSONSchema implements jsonschema.JSONSchema.
func (ToolList) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}

// SkillFrontmatter is the header of skills/<name>/SKILL.md.
type SkillFrontmatter struct {
	Name          string   `json:"name" jsonschema:"required,description=Unique skill name"`
	Description   string   `json:"description" jsonschema:"required,description=When the assistant should use the skill"`
	AllowedTools  ToolList `json:"allowed-tools,omitempty" jsonschema:"description=Tools the skill may call without prompting"`
	ArgumentHint  string   `json:"argument-hint,omitempty" jsonschema:"description=Usage hint shown for user-invocable skills"`
	Context       string   `json:"context,omitempty" jsonschema:"enum=fork,description=Execution context"`
	UserInvocable bool     `json:"user-invocable,omitempty" jsonschema:"description=Expose the skill as a slash command"`
}

// AgentFrontmatter is the header of agents/**/*.md.
type AgentFrontmatter struct {
	Name        string   `json:"name" jsonschema:"required,description=Unique agent name"`
	Description string   `json:"description" jsonschema:"required,description=When the assistant should delegate to the agent"`
	Tools       ToolList `json:"tools" jsonschema:"required,description=Tools the agent may use"`
	Model       string   `json:"model,omitempty" jsonschema:"description=Model override such as sonnet or opus"`
	Color       string   `json:"color,omitempty" jsonschema:"description=Display color"`
}

// CommandFrontmatter is the header of commands/**/*.md.
type CommandFrontmatter struct {
	Description  string   `json:"description" jsonschema:"required,description=One-line summary shown in the command menu"`
	AllowedTools []string `json:"allowed-tools,omitempty" jsonschema:"description=Tools the command may call without prompting"`
	ArgumentHint string   `json:"argument-hint,omitempty" jsonschema:"description=Arguments the command expects"`
	Model        string   `json:"model,omitempty" jsonschema:"description=Model override"`
}

// TaskFrontmatter is the header of .spec/tasks/TASK-*.md.
type TaskFrontmatter struct {
	ID             string   `json:"id,omitempty"`
	Status         string   `json:"status" jsonschema:"required,enum=todo,enum=in_progress,enum=done"`
	Priority       string   `json:"priority,omitempty" jsonschema:"enum=critical,enum=normal,enum=low,default=normal"`
	Epic           string   `json:"epic,omitempty"`
	BlockedBy      []string `json:"blocked-by,omitempty" jsonschema:"description=Tasks that must be done first"`
	DiscoveredFrom []string `json:"discovered-from,omitempty" jsonschema:"description=Tasks whose work surfaced this one"`
	DoneAt         string   `json:"done-at,omitempty" jsonschema:"format=date-time"`
	DoneSummary    string   `json:"done-summary,omitempty"`
	DoneFiles      []string `json:"done-files,omitempty"`
	DoneCommits    []string `json:"done-commits,omitempty"`
	DoneTests      string   `json:"done-tests,omitempty"`
}

// EpicFrontmatter is the header of .spec/epics/EPIC-*.md.
type EpicFrontmatter struct {
	ID         string   `json:"id,omitempty"`
	Status     string   `json:"status" jsonschema:"required,enum=open,enum=done"`
	Implements string   `json:"implements,omitempty" jsonschema:"description=Requirement the epic implements"`
	Tasks      []string `json:"tasks,omitempty"`
}

var kinds = map[string]func() interface{}{
	"skill":   func() interface{} { return &SkillFrontmatter{} },
	"agent":   func() interface{} { return &AgentFrontmatter{} },
	"command": func() interface{} { return &CommandFrontmatter{} },
	"task":    func() interface{} { return &TaskFrontmatter{} },
	"epic":    func() interface{} { return &EpicFrontmatter{} },
}

// Kinds lists the names accepted by For.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For returns the frontmatter schema of kind. Unknown keys are allowed
// since the host tool ignores them.
func For(kind string) (*jsonschema.Schema, error) {
	newValue, ok := kinds[kind]
	if !ok {
		return nil, errors.Errorf("unknown kind %q", kind)
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	s := reflector.Reflect(newValue())
	s.Title = kind + " frontmatter"
	return s, nil
}
