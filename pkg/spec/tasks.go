package spec

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/agentkit/pkg/frontmatter"
	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/telemetry"
)

// InitResult reports what Init did.
type InitResult struct {
	Created       bool // false when the directory already existed
	HookInstalled bool
}

// Init creates the spec directory layout and installs the pre-commit hook.
func (s *Store) Init(ctx context.Context) (*InitResult, error) {
	if s.Exists() {
		return &InitResult{}, nil
	}

	for _, sub := range []string{ReqsDir, EpicsDir, TasksDir} {
		if err := os.MkdirAll(s.path(sub), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", sub)
		}
	}

	entry := s.now().Local().Format("15:04") + " " + ActionInit + " " + s.dir + "/\n"
	if err := lockedfile.Write(s.path(ProgressFile), strings.NewReader(entry), 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to create progress log")
	}

	res := &InitResult{Created: true}
	if err := s.InstallHook(ctx); err != nil {
		logger.G(ctx).WithError(err).Debug("pre-commit hook not installed")
	} else {
		res.HookInstalled = true
	}
	return res, nil
}

// BlockedTask is a todo task waiting on unfinished dependencies.
type BlockedTask struct {
	Task  *Task
	Unmet []string
}

func doneSet(tasks []*Task) map[string]bool {
	done := make(map[string]bool)
	for _, t := range tasks {
		if t.Status == StatusDone {
			done[t.ID] = true
		}
	}
	return done
}

func unmet(t *Task, done map[string]bool) []string {
	var out []string
	for _, dep := range t.BlockedBy {
		if !done[dep] {
			out = append(out, dep)
		}
	}
	return out
}

// classify splits the todo tasks of epic (all epics when empty) into ready
// and blocked. Blockers are resolved against every task.
func (s *Store) classify(epic string) ([]*Task, []BlockedTask, error) {
	all, err := s.Tasks("")
	if err != nil {
		return nil, nil, err
	}
	done := doneSet(all)

	var (
		ready   []*Task
		blocked []BlockedTask
	)
	for _, t := range all {
		if t.Status != StatusTodo || (epic != "" && t.Epic != epic) {
			continue
		}
		if missing := unmet(t, done); len(missing) > 0 {
			blocked = append(blocked, BlockedTask{Task: t, Unmet: missing})
			continue
		}
		ready = append(ready, t)
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return priorityRank(ready[i].Priority) < priorityRank(ready[j].Priority)
	})
	return ready, blocked, nil
}

// Ready returns todo tasks whose blockers are all done, most urgent first.
// Tasks of equal priority keep file name order.
func (s *Store) Ready(epic string) ([]*Task, error) {
	ready, _, err := s.classify(epic)
	return ready, err
}

// Blocked returns todo tasks with at least one unfinished blocker.
func (s *Store) Blocked(epic string) ([]BlockedTask, error) {
	_, blocked, err := s.classify(epic)
	return blocked, err
}

// StartResult reports what Start did.
type StartResult struct {
	Task              *Task
	AlreadyInProgress bool
	Other             *Session // session of a different task that was replaced
	Session           *Session
}

// Start marks a task in progress and opens a session for it.
func (s *Store) Start(ctx context.Context, id string) (*StartResult, error) {
	task, err := s.Task(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &StartResult{Task: task}
	switch task.Status {
	case StatusInProgress:
		res.AlreadyInProgress = true
		return res, nil
	case StatusDone:
		return nil, errors.Errorf("Task %s is already done", id)
	}

	existing, err := s.loadSession()
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Task != id {
		res.Other = existing
	}

	if err := updateDocument(task.Path, func(doc *frontmatter.Document) error {
		return doc.Set(KeyStatus, StatusInProgress)
	}); err != nil {
		return nil, err
	}
	task.Status = StatusInProgress

	if err := s.logProgress(ActionStart, id); err != nil {
		return nil, err
	}

	res.Session, err = s.startSession(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.G(ctx).WithField("task", id).WithField("base_commit", res.Session.BaseCommit).Info("task started")
	return res, nil
}

// Evidence records how a task was completed.
type Evidence struct {
	Summary string
	Files   []string
	Commits []string
	Tests   string
}

// SplitList splits a comma-separated flag value, dropping empty items.
func SplitList(s string) []string {
	return frontmatter.StringList(s)
}

// DoneResult reports what Done did.
type DoneResult struct {
	Task      *Task
	Unblocked []*Task // ready tasks in the same epic after completion
}

// Done marks a task done with its evidence and ends the session.
func (s *Store) Done(ctx context.Context, id string, ev Evidence) (*DoneResult, error) {
	task, err := s.Task(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = updateDocument(task.Path, func(doc *frontmatter.Document) error {
		set := []struct {
			key   string
			value interface{}
			when  bool
		}{
			{KeyStatus, StatusDone, true},
			{KeyDoneAt, s.isoNow(), true},
			{KeyDoneSummary, ev.Summary, ev.Summary != ""},
			{KeyDoneFiles, ev.Files, len(ev.Files) > 0},
			{KeyDoneCommits, ev.Commits, len(ev.Commits) > 0},
			{KeyDoneTests, ev.Tests, ev.Tests != ""},
		}
		for _, kv := range set {
			if !kv.when {
				continue
			}
			if err := doc.Set(kv.key, kv.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	task.Status = StatusDone

	if err := s.logProgress(ActionDone, id); err != nil {
		return nil, err
	}
	if err := s.removeSession(); err != nil {
		return nil, err
	}

	ready, _, err := s.classify(task.Epic)
	if err != nil {
		return nil, err
	}
	logger.G(ctx).WithField("task", id).WithField("ready", len(ready)).Info("task done")
	telemetry.SetAttributes(ctx, attribute.String("spec.task", id), attribute.Int("spec.ready", len(ready)))

	return &DoneResult{Task: task, Unblocked: ready}, nil
}

// Reset moves a task back to todo and drops its done-* evidence. It
// reports false when the task already was todo.
func (s *Store) Reset(id string) (bool, error) {
	task, err := s.Task(id)
	if err != nil {
		return false, err
	}
	if task.Status == StatusTodo || task.Status == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = updateDocument(task.Path, func(doc *frontmatter.Document) error {
		for _, key := range doc.Keys() {
			if strings.HasPrefix(key, donePrefix) {
				doc.Delete(key)
			}
		}
		return doc.Set(KeyStatus, StatusTodo)
	})
	if err != nil {
		return false, err
	}

	return true, s.logProgress(ActionReset, id)
}

// CloseEpic marks an epic done. Without force it refuses while any of the
// epic's existing tasks is unfinished. It reports false when the epic was
// already done.
func (s *Store) CloseEpic(id string, force bool) (bool, error) {
	epic, err := s.Epic(id)
	if err != nil {
		return false, err
	}
	if epic.Status == EpicDone {
		return false, nil
	}

	var incomplete []string
	for _, ref := range epic.Tasks {
		path := s.taskPath(ref)
		if !fileExists(path) {
			continue
		}
		t, err := s.loadTask(path)
		if err != nil {
			return false, err
		}
		if t.Status != StatusDone {
			incomplete = append(incomplete, ref)
		}
	}
	if len(incomplete) > 0 && !force {
		return false, errors.Errorf("Epic has incomplete tasks: %s. Use --force to close anyway.", strings.Join(incomplete, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := updateDocument(epic.Path, func(doc *frontmatter.Document) error {
		return doc.Set(KeyStatus, EpicDone)
	}); err != nil {
		return false, err
	}
	return true, s.logProgress(ActionClose, id)
}

// Counts summarises task statuses.
type Counts struct {
	Total      int `json:"total"`
	Done       int `json:"done"`
	InProgress int `json:"in_progress"`
	Todo       int `json:"todo"`
}

// Overview is the project-wide status report.
type Overview struct {
	Counts
	Requirements int
	Epics        int
	EpicsDone    int
	InProgress   []*Task
	Ready        []*Task
	Recent       []string // last progress lines, oldest first
}

// Overview collects counts, in-progress and ready tasks, and the last five
// progress entries.
func (s *Store) Overview() (*Overview, error) {
	tasks, err := s.Tasks("")
	if err != nil {
		return nil, err
	}
	epics, err := s.Epics()
	if err != nil {
		return nil, err
	}
	reqs, err := s.list(ReqsDir, "REQ")
	if err != nil {
		return nil, err
	}

	o := &Overview{Requirements: len(reqs), Epics: len(epics)}
	o.Counts.Total = len(tasks)
	for _, t := range tasks {
		switch t.Status {
		case StatusDone:
			o.Counts.Done++
		case StatusInProgress:
			o.Counts.InProgress++
			o.InProgress = append(o.InProgress, t)
		case StatusTodo:
			o.Counts.Todo++
		}
	}
	for _, e := range epics {
		if e.Status == EpicDone {
			o.EpicsDone++
		}
	}

	if o.Ready, err = s.Ready(""); err != nil {
		return nil, err
	}

	progress, err := s.Progress()
	if err != nil {
		return nil, err
	}
	if len(progress) > 5 {
		progress = progress[len(progress)-5:]
	}
	o.Recent = progress

	return o, nil
}
