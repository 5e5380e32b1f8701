package validate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/agentkit/pkg/config"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// validRepo lays out a repository that passes every check.
func validRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write(t, root, "skills/tdd/SKILL.md", "---\nname: tdd\ndescription: Test first\nuser-invocable: true\n---\nSteps.\n")
	write(t, root, "agents/go-engineer.md", "---\nname: go-engineer\ndescription: Go\ntools: Read, Edit\n---\nPrompt.\n")
	write(t, root, "commands/git/commit.md", "---\ndescription: Commit\nallowed-tools:\n  - Bash\n---\nBody.\n")
	write(t, root, "hooks/skill-enforcer.sh", "#!/bin/sh\n# tdd\n")
	write(t, root, "hook-config.json", `{"file-protector": {}, "smart-lint": {}}`)
	write(t, root, "codex/config.toml", "model = \"o3\"\n")
	return root
}

func run(t *testing.T, root string, opts ...Option) *Report {
	t.Helper()
	v, err := New(root, opts...)
	require.NoError(t, err)
	return v.Run(context.Background())
}

func strs(fs []Finding) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.String())
	}
	return out
}

func TestRun_ValidRepository(t *testing.T) {
	report := run(t, validRepo(t))

	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
	assert.True(t, report.OK())
	assert.Equal(t, "All checks passed (0 warning(s))", report.Summary())
}

func TestRun_EmptyRepositoryWarnsPerKind(t *testing.T) {
	report := run(t, t.TempDir())

	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{
		"no skill files found matching skills/*/SKILL.md",
		"no agent files found matching agents/**/*.md",
		"no command files found matching commands/**/*.md",
	}, strs(report.Warnings))
}

func TestRun_FrontmatterErrors(t *testing.T) {
	root := validRepo(t)
	write(t, root, "agents/nested/no-tools.md", "---\nname: x\ndescription: y\n---\n")
	write(t, root, "agents/plain.md", "No header here.\n")
	write(t, root, "agents/broken.md", "---\nname: [unclosed\n---\n")
	write(t, root, "skills/.system/vendor/SKILL.md", "no frontmatter at all\n")

	report := run(t, root)

	errs := strs(report.Errors)
	require.Len(t, errs, 3)
	assert.True(t, strings.HasPrefix(errs[0], "agents/broken.md: invalid frontmatter"), errs[0])
	assert.Equal(t, "agents/nested/no-tools.md: missing required field 'tools'", errs[1])
	assert.Equal(t, "agents/plain.md: no YAML frontmatter found", errs[2])
}

func TestRun_SkillFolderWithoutSkillMD(t *testing.T) {
	root := validRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills", "orphan"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills", ".hidden"), 0o755))

	report := run(t, root)
	assert.Equal(t, []string{"skills/orphan/ missing SKILL.md"}, strs(report.Errors))
}

func TestRun_EnforcerCoverage(t *testing.T) {
	root := validRepo(t)
	write(t, root, "skills/review/SKILL.md", "---\nname: review\ndescription: Review\nuser-invocable: true\n---\n")
	write(t, root, "skills/internal/SKILL.md", "---\nname: internal\ndescription: Not invocable\n---\n")

	report := run(t, root)
	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{"user-invocable skill 'review' not found in skill-enforcer.sh"}, strs(report.Warnings))

	require.NoError(t, os.Remove(filepath.Join(root, "hooks", "skill-enforcer.sh")))
	report = run(t, root)
	assert.Empty(t, report.Warnings)
}

func TestRun_CommandAllowedToolsString(t *testing.T) {
	root := validRepo(t)
	write(t, root, "commands/deploy.md", "---\ndescription: Deploy\nallowed-tools: Bash, Read\n---\n")

	report := run(t, root)
	assert.Equal(t, []string{"commands/deploy.md: allowed-tools should be a list, got string"}, strs(report.Errors))
}

func TestRun_JSON(t *testing.T) {
	root := validRepo(t)
	write(t, root, "hook-config.json", `{"file-protector": {}}`)

	report := run(t, root)
	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{"hook-config.json: missing expected key 'smart-lint'"}, strs(report.Warnings))

	write(t, root, "hook-config.json", `{"file-protector": `)
	report = run(t, root)
	require.Len(t, report.Errors, 1)
	assert.True(t, strings.HasPrefix(report.Errors[0].String(), "hook-config.json: invalid JSON"))
}

func TestRun_CustomExpectedJSON(t *testing.T) {
	root := validRepo(t)
	write(t, root, "settings.json", `{"hooks": {}}`)

	report := run(t, root, WithExpectedJSON(config.JSONExpectation{File: "settings.json", Keys: []string{"hooks", "permissions"}}))
	assert.Equal(t, []string{"settings.json: missing expected key 'permissions'"}, strs(report.Warnings))
}

func TestRun_TOML(t *testing.T) {
	root := validRepo(t)
	write(t, root, "codex/broken.toml", "model = \n")
	write(t, root, ".git/config.toml", "not = [valid\n")

	report := run(t, root)
	require.Len(t, report.Errors, 1)
	assert.True(t, strings.HasPrefix(report.Errors[0].String(), "codex/broken.toml: invalid TOML"))
}

func TestWithIgnore(t *testing.T) {
	root := validRepo(t)
	write(t, root, "agents/drafts/wip.md", "no header\n")

	report := run(t, root, WithIgnore("agents/drafts/**"))
	assert.Empty(t, report.Errors)

	_, err := New(root, WithIgnore("[unterminated"))
	require.Error(t, err)
}

func TestReport_Write(t *testing.T) {
	report := &Report{}
	report.warnf("", "no agent files found matching agents/**/*.md")
	report.errorf("skills/x/SKILL.md", "missing required field 'name'")

	var buf bytes.Buffer
	report.Write(&buf)

	assert.Equal(t, "WARNING: no agent files found matching agents/**/*.md\n\n"+
		"ERROR: skills/x/SKILL.md: missing required field 'name'\n\n"+
		"1 error(s), 1 warning(s)\n", buf.String())
}

func TestWatch_RerunsOnChange(t *testing.T) {
	root := validRepo(t)
	v, err := New(root)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reports := make(chan *Report, 4)
	done := make(chan error, 1)
	go func() {
		done <- v.Watch(ctx, 50*time.Millisecond, func(r *Report) { reports <- r })
	}()

	first := <-reports
	assert.True(t, first.OK())

	write(t, root, "agents/plain.md", "No header here.\n")

	select {
	case second := <-reports:
		assert.False(t, second.OK())
	case <-ctx.Done():
		t.Fatal("timed out waiting for re-validation")
	}

	cancel()
	assert.NoError(t, <-done)
}
