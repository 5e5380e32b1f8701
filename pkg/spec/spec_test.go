package spec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/agentkit/pkg/gitutil/gittest"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func clock() time.Time { return fixedNow }

// newStore returns a store with an empty, initialised layout outside git.
func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{TasksDir, EpicsDir, ReqsDir} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, DefaultDir, sub), 0o755))
	}
	return New(root, append([]Option{WithClock(clock)}, opts...)...)
}

func writeTask(t *testing.T, s *Store, id, header, body string) {
	t.Helper()
	content := "---\nid: " + id + "\n" + header + "---\n" + body
	require.NoError(t, os.WriteFile(s.taskPath(id), []byte(content), 0o644))
}

func writeEpic(t *testing.T, s *Store, id, header string) {
	t.Helper()
	content := "---\nid: " + id + "\n" + header + "---\n# " + id + "\n"
	require.NoError(t, os.WriteFile(s.epicPath(id), []byte(content), 0o644))
}

func ids(tasks []*Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestNotInitialized(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Ready("")
	assert.True(t, errors.Is(err, ErrNotInitialized))
	_, err = s.Overview()
	assert.True(t, errors.Is(err, ErrNotInitialized))
	_, err = s.Validate()
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestInit(t *testing.T) {
	s := New(t.TempDir(), WithClock(clock))

	res, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.HookInstalled)

	for _, sub := range []string{ReqsDir, EpicsDir, TasksDir} {
		assert.DirExists(t, filepath.Join(s.Dir(), sub))
	}
	progress, err := s.Progress()
	require.NoError(t, err)
	assert.Equal(t, []string{fixedNow.Local().Format("15:04") + " INIT .spec/"}, progress)

	res, err = s.Init(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Created)
}

func TestInit_InstallsHookInGitRepository(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	s := New(repo)

	res, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, res.HookInstalled)

	hook, err := os.ReadFile(filepath.Join(repo, ".git", "hooks", "pre-commit"))
	require.NoError(t, err)
	assert.Equal(t, PreCommitHook, string(hook))

	state, err := s.HookStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HookInstalled, state)
}

func TestInstallHook_AppendsToExistingHook(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	s := New(repo)
	ctx := context.Background()
	hookPath := filepath.Join(repo, ".git", "hooks", "pre-commit")
	require.NoError(t, os.WriteFile(hookPath, []byte("#!/bin/sh\nmake lint"), 0o755))

	state, err := s.HookStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, HookForeign, state)

	require.NoError(t, s.InstallHook(ctx))
	require.NoError(t, s.InstallHook(ctx))

	hook, err := os.ReadFile(hookPath)
	require.NoError(t, err)
	text := string(hook)
	assert.True(t, strings.HasPrefix(text, "#!/bin/sh\nmake lint\n\n# agentkit spec validation\n"))
	assert.Equal(t, 1, strings.Count(text, HookMarker))

	info, err := os.Stat(hookPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestInstallHook_OutsideGit(t *testing.T) {
	s := newStore(t)
	assert.ErrorIs(t, s.InstallHook(context.Background()), ErrNoHooksDir)

	state, err := s.HookStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HookMissing, state)
}

func TestReady(t *testing.T) {
	s := newStore(t)
	writeTask(t, s, "TASK-a", "status: done\n", "# A\n")
	writeTask(t, s, "TASK-b", "status: todo\npriority: low\nblocked-by:\n  - TASK-a\n", "# Build B\n\nDetails.\n")
	writeTask(t, s, "TASK-c", "status: todo\nblocked-by: [TASK-d]\n", "# C\n")
	writeTask(t, s, "TASK-d", "status: in_progress\n", "# D\n")
	writeTask(t, s, "TASK-e", "status: todo\npriority: critical\nepic: EPIC-x\n", "# E\n")
	writeTask(t, s, "TASK-f", "status: todo\n", "# F\n")

	ready, err := s.Ready("")
	require.NoError(t, err)
	assert.Equal(t, []string{"TASK-e", "TASK-f", "TASK-b"}, ids(ready))
	assert.Equal(t, "Build B", ready[2].Title)
	assert.Equal(t, PriorityNormal, ready[1].Priority)

	ready, err = s.Ready("EPIC-x")
	require.NoError(t, err)
	assert.Equal(t, []string{"TASK-e"}, ids(ready))

	blocked, err := s.Blocked("")
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "TASK-c", blocked[0].Task.ID)
	assert.Equal(t, []string{"TASK-d"}, blocked[0].Unmet)
}

func TestReady_EmptyAndUnknownPriority(t *testing.T) {
	s := newStore(t)
	ready, err := s.Ready("")
	require.NoError(t, err)
	assert.Empty(t, ready)

	writeTask(t, s, "TASK-test-smoke", "status: todo\npriority: high\n", "# Smoke test task\n\nA task for testing.\n")
	ready, err = s.Ready("")
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "TASK-test-smoke", ready[0].ID)
}

func TestStartAndDone(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	writeTask(t, s, "TASK-a", "status: todo\nepic: EPIC-x\n", "# A\n")
	writeTask(t, s, "TASK-b", "status: todo\nepic: EPIC-x\nblocked-by: [TASK-a]\n", "# B\n")

	res, err := s.Start(ctx, "TASK-a")
	require.NoError(t, err)
	assert.False(t, res.AlreadyInProgress)
	assert.Nil(t, res.Other)
	require.NotNil(t, res.Session)
	assert.Equal(t, "planning", res.Session.Step)
	assert.Equal(t, "2026-03-14T09:26:53Z", res.Session.Started)
	assert.NotEmpty(t, res.Session.ID)
	assert.Empty(t, res.Session.BaseCommit)

	task, err := s.Task("TASK-a")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, task.Status)

	sess, err := s.Session()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "TASK-a", sess.Task)

	again, err := s.Start(ctx, "TASK-a")
	require.NoError(t, err)
	assert.True(t, again.AlreadyInProgress)

	done, err := s.Done(ctx, "TASK-a", Evidence{
		Summary: "Added login form",
		Files:   SplitList("src/login.ts, src/login.test.ts"),
		Commits: SplitList("abc123"),
		Tests:   "12 passed",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"TASK-b"}, ids(done.Unblocked))

	content, err := s.Show("TASK-a")
	require.NoError(t, err)
	assert.Contains(t, content, "status: done\n")
	assert.Contains(t, content, "done-at: \"2026-03-14T09:26:53Z\"\n")
	assert.Contains(t, content, "done-summary: Added login form\n")
	assert.Contains(t, content, "done-files:\n  - src/login.ts\n  - src/login.test.ts\n")
	assert.Contains(t, content, "done-commits:\n  - abc123\n")
	assert.Contains(t, content, "done-tests: 12 passed\n")
	assert.True(t, strings.HasSuffix(content, "---\n\n# A\n"))

	sess, err = s.Session()
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = s.Start(ctx, "TASK-a")
	require.Error(t, err)
	assert.Equal(t, "Task TASK-a is already done", err.Error())

	progress, err := s.Progress()
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.True(t, strings.HasSuffix(progress[0], " START TASK-a"))
	assert.True(t, strings.HasSuffix(progress[1], " DONE TASK-a"))
}

func TestStart_ReportsOtherSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	writeTask(t, s, "TASK-a", "status: todo\n", "# A\n")
	writeTask(t, s, "TASK-b", "status: todo\n", "# B\n")

	_, err := s.Start(ctx, "TASK-a")
	require.NoError(t, err)
	res, err := s.Start(ctx, "TASK-b")
	require.NoError(t, err)
	require.NotNil(t, res.Other)
	assert.Equal(t, "TASK-a", res.Other.Task)
	assert.Equal(t, "TASK-b", res.Session.Task)
}

func TestStart_RecordsBaseCommit(t *testing.T) {
	repo := gittest.InitRepo(t, "app")
	s := New(repo)
	ctx := context.Background()
	_, err := s.Init(ctx)
	require.NoError(t, err)
	writeTask(t, s, "TASK-a", "status: todo\n", "# A\n")

	res, err := s.Start(ctx, "TASK-a")
	require.NoError(t, err)
	assert.Equal(t, gittest.Run(t, repo, "rev-parse", "--short", "HEAD"), res.Session.BaseCommit)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n"), 0o644))
	gittest.Run(t, repo, "add", "main.go")
	gittest.Run(t, repo, "commit", "-q", "-m", "add main")

	h, err := s.Handoff(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TASK-a", h.Task)
	assert.Equal(t, "planning", h.Step)
	assert.Contains(t, h.DiffStat, "main.go")
	assert.Empty(t, h.Ready)
}

func TestTaskNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Start(context.Background(), "TASK-missing")
	require.Error(t, err)
	assert.Equal(t, "Task not found: TASK-missing", err.Error())

	_, err = s.Show("NOPE")
	assert.Equal(t, "Not found: NOPE", err.Error())
}

func TestIDsCannotEscapeSpecDir(t *testing.T) {
	s := newStore(t)
	readme := filepath.Join(s.root, "README.md")
	original := "# Project\n"
	require.NoError(t, os.WriteFile(readme, []byte(original), 0o644))
	writeTask(t, s, "TASK-a", "status: todo\n", "# A\n")

	ctx := context.Background()
	for _, id := range []string{"../../README", "../tasks/TASK-a", "..", ".hidden", "a/b", `..\README`, ""} {
		_, err := s.Start(ctx, id)
		var nf *NotFoundError
		assert.True(t, errors.As(err, &nf), "start %q: %v", id, err)

		_, err = s.Show(id)
		assert.True(t, errors.As(err, &nf), "show %q: %v", id, err)

		_, err = s.Epic(id)
		assert.True(t, errors.As(err, &nf), "epic %q: %v", id, err)

		_, err = s.DepAdd("TASK-a", id, DepBlocks)
		assert.True(t, errors.As(err, &nf), "dep add %q: %v", id, err)
	}

	content, err := os.ReadFile(readme)
	require.NoError(t, err)
	assert.Equal(t, original, string(content))
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("TASK-auth-login"))
	assert.True(t, validID("REQ-001"))
	assert.False(t, validID(""))
	assert.False(t, validID(".."))
	assert.False(t, validID("../../README"))
	assert.False(t, validID("tasks/TASK-a"))
	assert.False(t, validID(`tasks\TASK-a`))
	assert.False(t, validID(".TASK-a"))
}

func TestReset(t *testing.T) {
	s := newStore(t)
	writeTask(t, s, "TASK-a", "status: done\npriority: critical\ndone-at: 2026-01-01T00:00:00Z\ndone-files:\n  - a.go\n", "# A\n")

	changed, err := s.Reset("TASK-a")
	require.NoError(t, err)
	assert.True(t, changed)

	content, err := s.Show("TASK-a")
	require.NoError(t, err)
	assert.Equal(t, "---\nid: TASK-a\nstatus: todo\npriority: critical\n---\n\n# A\n", content)

	changed, err = s.Reset("TASK-a")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDeps(t *testing.T) {
	s := newStore(t)
	writeTask(t, s, "TASK-a", "status: todo\n", "# A\n")
	writeTask(t, s, "TASK-b", "status: todo\n", "# B\n")
	writeTask(t, s, "TASK-c", "status: todo\n", "# C\n")

	added, err := s.DepAdd("TASK-b", "TASK-a", DepBlocks)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.DepAdd("TASK-c", "TASK-b", DepBlocks)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.DepAdd("TASK-b", "TASK-a", DepBlocks)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.DepAdd("TASK-a", "TASK-c", DepBlocks)
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"TASK-a", "TASK-c", "TASK-b", "TASK-a"}, cycle.Path)
	assert.Equal(t, "Cannot add dependency: would create cycle: TASK-a → TASK-c → TASK-b → TASK-a", err.Error())

	// informational links skip the cycle check
	added, err = s.DepAdd("TASK-a", "TASK-c", DepDiscoveredFrom)
	require.NoError(t, err)
	assert.True(t, added)

	blockedBy, discovered, err := s.DepList("TASK-a")
	require.NoError(t, err)
	assert.Empty(t, blockedBy)
	assert.Equal(t, []string{"TASK-c"}, discovered)

	_, err = s.DepAdd("TASK-a", "TASK-zzz", DepBlocks)
	assert.Equal(t, "Dependency not found: TASK-zzz", err.Error())

	removed, err := s.DepRemove("TASK-b", "TASK-a")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.DepRemove("TASK-b", "TASK-a")
	require.NoError(t, err)
	assert.False(t, removed)

	content, err := s.Show("TASK-b")
	require.NoError(t, err)
	assert.Contains(t, content, "blocked-by: []\n")
}

func TestValidate(t *testing.T) {
	s := newStore(t)
	issues, err := s.Validate()
	require.NoError(t, err)
	assert.Empty(t, issues)

	writeTask(t, s, "TASK-a", "status: todo\nblocked-by: [TASK-b]\n", "")
	writeTask(t, s, "TASK-b", "status: todo\nblocked-by: [TASK-a]\n", "")
	writeTask(t, s, "TASK-c", "blocked-by: [TASK-ghost]\n", "")
	writeEpic(t, s, "EPIC-x", "tasks:\n  - TASK-a\n  - TASK-gone\n")

	issues, err = s.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"TASK-c: missing 'status' field",
		"TASK-c: blocked-by references non-existent task 'TASK-ghost'",
		"EPIC-x: missing 'status' field",
		"EPIC-x: references non-existent task 'TASK-gone'",
		"TASK-a: part of a dependency cycle",
	}, issues)
}

func TestCloseEpic(t *testing.T) {
	s := newStore(t)
	writeTask(t, s, "TASK-a", "status: done\n", "")
	writeTask(t, s, "TASK-b", "status: todo\n", "")
	writeEpic(t, s, "EPIC-x", "status: open\ntasks: [TASK-a, TASK-b, TASK-missing]\n")

	_, err := s.CloseEpic("EPIC-x", false)
	require.Error(t, err)
	assert.Equal(t, "Epic has incomplete tasks: TASK-b. Use --force to close anyway.", err.Error())

	closed, err := s.CloseEpic("EPIC-x", true)
	require.NoError(t, err)
	assert.True(t, closed)

	epic, err := s.Epic("EPIC-x")
	require.NoError(t, err)
	assert.Equal(t, EpicDone, epic.Status)

	closed, err = s.CloseEpic("EPIC-x", false)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestOverview(t *testing.T) {
	s := newStore(t)
	o, err := s.Overview()
	require.NoError(t, err)
	assert.Equal(t, Counts{}, o.Counts)

	writeTask(t, s, "TASK-a", "status: done\n", "")
	writeTask(t, s, "TASK-b", "status: in_progress\n", "")
	writeTask(t, s, "TASK-c", "status: todo\n", "")
	writeEpic(t, s, "EPIC-x", "status: done\n")
	require.NoError(t, os.WriteFile(s.reqPath("REQ-auth"), []byte("# Auth\n"), 0o644))

	o, err = s.Overview()
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 3, Done: 1, InProgress: 1, Todo: 1}, o.Counts)
	assert.Equal(t, 1, o.Requirements)
	assert.Equal(t, 1, o.EpicsDone)
	assert.Equal(t, []string{"TASK-b"}, ids(o.InProgress))
	assert.Equal(t, []string{"TASK-c"}, ids(o.Ready))
}

func TestProgressIsTruncated(t *testing.T) {
	s := newStore(t, WithProgressLimit(3))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.logProgress(ActionStart, string(rune('a'+i))))
	}

	progress, err := s.Progress()
	require.NoError(t, err)
	require.Len(t, progress, 3)
	assert.True(t, strings.HasSuffix(progress[0], "START c"))
	assert.True(t, strings.HasSuffix(progress[2], "START e"))
}

func TestSessionSteps(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SetStep("testing"), ErrNoSession)
	writeTask(t, s, "TASK-a", "status: todo\n", "")
	_, err := s.Start(ctx, "TASK-a")
	require.NoError(t, err)

	err = s.SetStep("dancing")
	require.Error(t, err)
	assert.Equal(t, "Invalid step: dancing. Valid: planning, implementing, testing, reviewing, completing", err.Error())

	require.NoError(t, s.SetStep("testing"))
	sess, err := s.Session()
	require.NoError(t, err)
	assert.Equal(t, "testing", sess.Step)

	cleared, err := s.ClearSession()
	require.NoError(t, err)
	assert.Equal(t, "TASK-a", cleared.Task)

	cleared, err = s.ClearSession()
	require.NoError(t, err)
	assert.Nil(t, cleared)
}
