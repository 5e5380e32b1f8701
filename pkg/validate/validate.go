// Package validate checks the structure of an assistant configuration
// repository: definition frontmatter, skill layout, enforcer coverage and
// the JSON/TOML config files shipped next to them.
package validate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/agentkit/pkg/config"
	"github.com/jingkaihe/agentkit/pkg/frontmatter"
	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/skills"
	"github.com/jingkaihe/agentkit/pkg/telemetry"
)

// Kind describes one class of definition file and its required fields.
type Kind struct {
	Name     string
	Pattern  string
	Required []string
}

// Kinds are checked in this order.
var Kinds = []Kind{
	{Name: "skill", Pattern: "skills/*/SKILL.md", Required: []string{"name", "description"}},
	{Name: "agent", Pattern: "agents/**/*.md", Required: []string{"name", "description", "tools"}},
	{Name: "command", Pattern: "commands/**/*.md", Required: []string{"description"}},
}

// Validator runs every check against a repository root.
type Validator struct {
	root         string
	ignore       []glob.Glob
	enforcer     string
	expectedJSON []config.JSONExpectation
}

// Option configures a Validator
type Option func(*Validator) error

// WithIgnore sets glob patterns, relative to the root with '/' separators,
// for files that are never inspected.
func WithIgnore(patterns ...string) Option {
	return func(v *Validator) error {
		v.ignore = v.ignore[:0]
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return errors.Wrapf(err, "invalid ignore pattern %q", p)
			}
			v.ignore = append(v.ignore, g)
		}
		return nil
	}
}

// WithEnforcer sets the hook script that must mention user-invocable skills.
func WithEnforcer(path string) Option {
	return func(v *Validator) error {
		v.enforcer = path
		return nil
	}
}

// WithExpectedJSON sets the JSON files to check and the keys they should carry.
func WithExpectedJSON(expectations ...config.JSONExpectation) Option {
	return func(v *Validator) error {
		v.expectedJSON = expectations
		return nil
	}
}

// FromConfig maps the validate section of the configuration onto options.
func FromConfig(cfg config.ValidateConfig) []Option {
	return []Option{
		WithIgnore(cfg.Ignore...),
		WithEnforcer(cfg.Enforcer),
		WithExpectedJSON(cfg.ExpectedJSON...),
	}
}

// New returns a Validator for root. Without options it uses the defaults
// from the config package.
func New(root string, opts ...Option) (*Validator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve root")
	}

	v := &Validator{root: abs}
	defaults := []Option{
		WithIgnore(config.DefaultIgnore...),
		WithEnforcer(config.DefaultEnforcer),
		WithExpectedJSON(config.DefaultExpectedJSON...),
	}
	for _, opt := range append(defaults, opts...) {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// Root returns the absolute directory being validated.
func (v *Validator) Root() string {
	return v.root
}

// Run executes all checks and returns the combined report.
func (v *Validator) Run(ctx context.Context) *Report {
	report := &Report{}
	log := logger.G(ctx).WithField("root", v.root)

	telemetry.WithSpanFunc(ctx, "validate.run", func(ctx context.Context) {
		for _, kind := range Kinds {
			v.checkFrontmatter(ctx, kind, report)
		}
		v.checkSkillFolders(report)
		v.checkEnforcerCoverage(report)
		v.checkCommandTools(report)
		v.checkJSON(report)
		v.checkTOML(report)

		telemetry.SetAttributes(ctx,
			attribute.Int("validate.errors", len(report.Errors)),
			attribute.Int("validate.warnings", len(report.Warnings)),
		)
	}, attribute.String("validate.root", v.root))

	log.WithField("errors", len(report.Errors)).
		WithField("warnings", len(report.Warnings)).
		Debug("validation finished")
	return report
}

func (v *Validator) ignored(rel string) bool {
	for _, g := range v.ignore {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// glob returns root-relative, slash-separated matches in lexical order.
func (v *Validator) glob(pattern string) []string {
	matches, err := doublestar.Glob(os.DirFS(v.root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

func (v *Validator) read(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(v.root, filepath.FromSlash(rel)))
}

func (v *Validator) checkFrontmatter(ctx context.Context, kind Kind, report *Report) {
	files := v.glob(kind.Pattern)
	if len(files) == 0 {
		report.warnf("", "no %s files found matching %s", kind.Name, kind.Pattern)
		return
	}

	for _, rel := range files {
		if v.ignored(rel) {
			logger.G(ctx).WithField("path", rel).Debug("skipping ignored file")
			continue
		}

		content, err := v.read(rel)
		if err != nil {
			report.errorf(rel, "invalid frontmatter: %v", err)
			continue
		}

		m, _, err := frontmatter.ReadMeta(content)
		if err != nil {
			report.errorf(rel, "%v", err)
			continue
		}
		if len(m) == 0 {
			report.errorf(rel, "no YAML frontmatter found")
			continue
		}

		for _, field := range kind.Required {
			if !m.Has(field) {
				report.errorf(rel, "missing required field '%s'", field)
			}
		}
	}
}

// skillDirs lists non-hidden directories directly under skills/.
func (v *Validator) skillDirs() []string {
	entries, err := os.ReadDir(filepath.Join(v.root, "skills"))
	if err != nil {
		return nil
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dirs = append(dirs, e.Name())
	}
	return dirs
}

func (v *Validator) checkSkillFolders(report *Report) {
	for _, name := range v.skillDirs() {
		if _, err := os.Stat(filepath.Join(v.root, "skills", name, skills.FileName)); err != nil {
			report.errorf("", "skills/%s/ missing %s", name, skills.FileName)
		}
	}
}

func (v *Validator) checkEnforcerCoverage(report *Report) {
	if v.enforcer == "" {
		return
	}
	script, err := v.read(v.enforcer)
	if err != nil {
		return
	}
	text := string(script)
	enforcerName := filepath.Base(v.enforcer)

	for _, name := range v.skillDirs() {
		content, err := v.read("skills/" + name + "/" + skills.FileName)
		if err != nil {
			continue
		}
		m, _, err := frontmatter.ReadMeta(content)
		if err != nil || m == nil {
			continue
		}
		if m.Bool(skills.KeyUserInvocable) && !strings.Contains(text, name) {
			report.warnf("", "user-invocable skill '%s' not found in %s", name, enforcerName)
		}
	}
}

func (v *Validator) checkCommandTools(report *Report) {
	for _, rel := range v.glob("commands/**/*.md") {
		content, err := v.read(rel)
		if err != nil {
			continue
		}
		m, _, err := frontmatter.ReadMeta(content)
		if err != nil || m == nil {
			continue
		}
		if _, isString := m["allowed-tools"].(string); isString {
			report.errorf(rel, "allowed-tools should be a list, got string")
		}
	}
}

func (v *Validator) checkJSON(report *Report) {
	for _, exp := range v.expectedJSON {
		content, err := v.read(exp.File)
		if err != nil {
			continue
		}

		var data map[string]json.RawMessage
		if err := json.Unmarshal(content, &data); err != nil {
			report.errorf(exp.File, "invalid JSON: %v", err)
			continue
		}

		for _, key := range exp.Keys {
			if _, ok := data[key]; !ok {
				report.warnf(exp.File, "missing expected key '%s'", key)
			}
		}
	}
}

func (v *Validator) checkTOML(report *Report) {
	for _, rel := range v.glob("**/*.toml") {
		if v.ignored(rel) {
			continue
		}
		content, err := v.read(rel)
		if err != nil {
			report.errorf(rel, "invalid TOML: %v", err)
			continue
		}

		var doc map[string]interface{}
		if err := toml.Unmarshal(content, &doc); err != nil {
			report.errorf(rel, "invalid TOML: %v", err)
		}
	}
}
