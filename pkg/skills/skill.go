// Package skills discovers skill definitions. A skill is a directory
// holding a SKILL.md whose YAML frontmatter names and describes a
// multi-step workflow for the assistant to follow.
package skills

// Skill represents a discovered skill with its metadata
type Skill struct {
	Name          string   // Unique name from frontmatter
	Description   string   // When the assistant should reach for the skill
	AllowedTools  []string // Tools the skill may call without prompting
	ArgumentHint  string   // Usage hint shown for user-invocable skills
	Context       string   // Execution context, e.g. "fork"
	UserInvocable bool     // Exposed as a slash command
	Directory     string   // Full path to the skill directory
	Path          string   // Full path to SKILL.md
	Content       string   // Body of SKILL.md after the frontmatter
}

// Frontmatter keys understood in SKILL.md
const (
	KeyName          = "name"
	KeyDescription   = "description"
	KeyAllowedTools  = "allowed-tools"
	KeyArgumentHint  = "argument-hint"
	KeyContext       = "context"
	KeyUserInvocable = "user-invocable"
)

// FileName is the file every skill directory must contain.
const FileName = "SKILL.md"
