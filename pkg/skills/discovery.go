package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/frontmatter"
)

// Discovery handles skill discovery from configured directories
type Discovery struct {
	skillDirs []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories, highest precedence first
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithDefaultDirs uses ./skills and ~/.claude/skills
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.skillDirs = []string{
			"./skills", // Repo-local (highest precedence)
			filepath.Join(homeDir, ".claude", "skills"),
		}
		return nil
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// DiscoverSkills finds all skills in the configured directories. The first
// directory defining a name wins. Skills that fail to load are skipped and
// reported through the returned multierror; the map is still usable.
func (d *Discovery) DiscoverSkills() (map[string]*Skill, error) {
	skills := make(map[string]*Skill)
	var result *multierror.Error

	for _, dir := range d.skillDirs {
		if err := d.discoverSkillsFromDir(dir, skills); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return skills, result.ErrorOrNil()
}

func (d *Discovery) discoverSkillsFromDir(dir string, skills map[string]*Skill) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var result *multierror.Error
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		entryPath := filepath.Join(dir, entry.Name())

		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skillPath := filepath.Join(entryPath, FileName)
		if _, err := os.Stat(skillPath); err != nil {
			continue
		}

		skill, err := Load(skillPath)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "skill %s", entryPath))
			continue
		}

		if _, exists := skills[skill.Name]; !exists {
			skills[skill.Name] = skill
		}
	}

	return result.ErrorOrNil()
}

// GetSkill returns a specific skill by name
func (d *Discovery) GetSkill(name string) (*Skill, error) {
	skills, _ := d.DiscoverSkills()

	skill, exists := skills[name]
	if !exists {
		return nil, errors.Errorf("skill '%s' not found", name)
	}

	return skill, nil
}

// ListSkillNames returns the sorted names of all available skills
func (d *Discovery) ListSkillNames() ([]string, error) {
	skills, err := d.DiscoverSkills()

	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, err
}

// Load reads a single SKILL.md.
func Load(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	m, body, err := frontmatter.ReadMeta(content)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("missing frontmatter")
	}

	name := m.String(KeyName)
	description := m.String(KeyDescription)
	if name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}
	if description == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	return &Skill{
		Name:          name,
		Description:   description,
		AllowedTools:  m.List(KeyAllowedTools),
		ArgumentHint:  m.String(KeyArgumentHint),
		Context:       m.String(KeyContext),
		UserInvocable: m.Bool(KeyUserInvocable),
		Directory:     filepath.Dir(path),
		Path:          path,
		Content:       body,
	}, nil
}
