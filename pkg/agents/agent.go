// Package agents loads agent definitions: markdown files whose frontmatter
// names a persona (name, description, tool allowlist, model) and whose body
// is the system prompt handed to the assistant.
package agents

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/frontmatter"
	"github.com/jingkaihe/agentkit/pkg/logger"
)

// AgentMetadata represents the YAML frontmatter of an agent file
type AgentMetadata struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`           // required: tool allowlist
	Model       string   `yaml:"model,omitempty"` // optional: inherit when empty
	Color       string   `yaml:"color,omitempty"`
}

// Agent represents a loaded agent with its metadata, system prompt, and file path
type Agent struct {
	Metadata     AgentMetadata
	SystemPrompt string
	Path         string
}

// AgentProcessor handles loading agent definitions from disk
type AgentProcessor struct {
	agentDirs []string
}

// AgentProcessorOption configures an AgentProcessor
type AgentProcessorOption func(*AgentProcessor) error

// WithAgentDirs sets custom agent directories
func WithAgentDirs(dirs ...string) AgentProcessorOption {
	return func(ap *AgentProcessor) error {
		if len(dirs) == 0 {
			return errors.New("at least one agent directory must be specified")
		}
		ap.agentDirs = dirs
		return nil
	}
}

// WithDefaultDirs sets the default agent directories (./agents, ~/.claude/agents)
func WithDefaultDirs() AgentProcessorOption {
	return func(ap *AgentProcessor) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		ap.agentDirs = []string{
			"./agents", // Repository-specific (higher precedence)
			filepath.Join(homeDir, ".claude", "agents"),
		}
		return nil
	}
}

// NewAgentProcessor creates a new agent processor with optional configuration
func NewAgentProcessor(opts ...AgentProcessorOption) (*AgentProcessor, error) {
	ap := &AgentProcessor{}

	if len(opts) == 0 {
		opts = []AgentProcessorOption{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(ap); err != nil {
			return nil, errors.Wrap(err, "failed to apply agent processor option")
		}
	}

	return ap, nil
}

// agentFiles lists every markdown file under dir, recursively, as absolute
// paths in lexical order.
func agentFiles(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.md", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	return paths, nil
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".md")
}

// findAgentFile searches the configured directories for <name>.md at any
// depth. Directories are searched in precedence order.
func (ap *AgentProcessor) findAgentFile(agentName string) (string, error) {
	for _, dir := range ap.agentDirs {
		direct := filepath.Join(dir, agentName+".md")
		if info, err := os.Stat(direct); err == nil && !info.IsDir() {
			return direct, nil
		}

		files, err := agentFiles(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if stem(f) == agentName {
				return f, nil
			}
		}
	}

	return "", errors.Errorf("agent '%s' not found in directories: %v", agentName, ap.agentDirs)
}

// Parse builds an Agent from file content. It does not validate.
func Parse(path string, content []byte) (*Agent, error) {
	m, body, err := frontmatter.ReadMeta(content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse frontmatter in agent '%s'", path)
	}

	agent := &Agent{SystemPrompt: body, Path: path}
	if m != nil {
		agent.Metadata = AgentMetadata{
			Name:        m.String("name"),
			Description: m.String("description"),
			Tools:       m.List("tools"),
			Model:       m.String("model"),
			Color:       m.String("color"),
		}
	}
	if agent.Metadata.Name == "" {
		agent.Metadata.Name = stem(path)
	}

	return agent, nil
}

// LoadAgent loads a single agent by file name (without .md)
func (ap *AgentProcessor) LoadAgent(ctx context.Context, agentName string) (*Agent, error) {
	logger.G(ctx).WithField("agent", agentName).Debug("Loading agent")

	agentPath, err := ap.findAgentFile(agentName)
	if err != nil {
		return nil, err
	}

	return ap.loadFile(ctx, agentPath)
}

func (ap *AgentProcessor) loadFile(ctx context.Context, path string) (*Agent, error) {
	logger.G(ctx).WithField("path", path).Debug("Reading agent file")

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read agent file '%s'", path)
	}

	return Parse(path, content)
}

// ListAgents returns all agents from the configured directories. An agent
// name defined in an earlier directory shadows later ones.
func (ap *AgentProcessor) ListAgents(ctx context.Context) ([]*Agent, error) {
	var agents []*Agent
	seen := make(map[string]bool)

	for _, dir := range ap.agentDirs {
		files, err := agentFiles(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.G(ctx).WithField("dir", dir).WithError(err).Debug("Agent directory not readable, skipping")
			}
			continue
		}

		for _, f := range files {
			agent, err := ap.loadFile(ctx, f)
			if err != nil {
				logger.G(ctx).WithField("path", f).WithError(err).Warn("Failed to load agent, skipping")
				continue
			}
			if seen[agent.Metadata.Name] {
				continue
			}
			seen[agent.Metadata.Name] = true
			agents = append(agents, agent)
		}
	}

	logger.G(ctx).WithField("count", len(agents)).Debug("Loaded agents")
	return agents, nil
}

// ValidateAgent checks that an agent carries what the host tool requires
func (ap *AgentProcessor) ValidateAgent(agent *Agent) error {
	if agent.Metadata.Name == "" {
		return errors.New("agent name is required")
	}
	if agent.Metadata.Description == "" {
		return errors.New("agent description is required")
	}
	if len(agent.Metadata.Tools) == 0 {
		return errors.New("agent tools are required")
	}
	if strings.TrimSpace(agent.SystemPrompt) == "" {
		return errors.New("agent system prompt cannot be empty")
	}
	return nil
}
