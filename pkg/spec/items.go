package spec

import (
	"path/filepath"
	"strings"

	"github.com/jingkaihe/agentkit/pkg/frontmatter"
)

// Task statuses
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Epic statuses
const (
	EpicOpen = "open"
	EpicDone = "done"
)

// Task priorities, most urgent first.
const (
	PriorityCritical = "critical"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

// Task frontmatter keys
const (
	KeyID             = "id"
	KeyStatus         = "status"
	KeyPriority       = "priority"
	KeyEpic           = "epic"
	KeyBlockedBy      = "blocked-by"
	KeyDiscoveredFrom = "discovered-from"
	KeyTasks          = "tasks"
	KeyImplements     = "implements"

	KeyDoneAt      = "done-at"
	KeyDoneSummary = "done-summary"
	KeyDoneFiles   = "done-files"
	KeyDoneCommits = "done-commits"
	KeyDoneTests   = "done-tests"

	donePrefix = "done-"
)

// Task is a unit of work under .spec/tasks.
type Task struct {
	ID             string
	Status         string // empty when the file has no status
	Priority       string
	Epic           string
	BlockedBy      []string
	DiscoveredFrom []string
	Title          string
	Path           string
	Body           string
}

// Epic groups tasks under .spec/epics.
type Epic struct {
	ID         string
	Status     string
	Implements string
	Tasks      []string
	Path       string
}

func priorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// title is the first line of the body without heading markers.
func title(body string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	return strings.TrimLeft(strings.TrimSpace(first), "# ")
}

func taskFromDocument(path string, doc *frontmatter.Document) *Task {
	t := &Task{
		ID:             doc.String(KeyID),
		Status:         doc.String(KeyStatus),
		Priority:       doc.String(KeyPriority),
		Epic:           doc.String(KeyEpic),
		BlockedBy:      doc.List(KeyBlockedBy),
		DiscoveredFrom: doc.List(KeyDiscoveredFrom),
		Path:           path,
		Body:           doc.Body(),
	}
	if t.ID == "" {
		t.ID = stem(path)
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	t.Title = title(t.Body)
	return t
}

func epicFromDocument(path string, doc *frontmatter.Document) *Epic {
	e := &Epic{
		ID:         doc.String(KeyID),
		Status:     doc.String(KeyStatus),
		Implements: doc.String(KeyImplements),
		Tasks:      doc.List(KeyTasks),
		Path:       path,
	}
	if e.ID == "" {
		e.ID = stem(path)
	}
	return e
}

// validID reports whether id names a file directly inside an item
// directory. Ids never contain separators and never start with a dot.
func validID(id string) bool {
	return id != "" &&
		filepath.Base(id) == id &&
		!strings.ContainsAny(id, `/\`) &&
		!strings.HasPrefix(id, ".")
}

// itemPath returns "" for an invalid id, which no file matches.
func (s *Store) itemPath(dir, id string) string {
	if !validID(id) {
		return ""
	}
	return s.path(dir, id+".md")
}

func (s *Store) taskPath(id string) string {
	return s.itemPath(TasksDir, id)
}

func (s *Store) epicPath(id string) string {
	return s.itemPath(EpicsDir, id)
}

func (s *Store) reqPath(id string) string {
	return s.itemPath(ReqsDir, id)
}

func (s *Store) loadTask(path string) (*Task, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return taskFromDocument(path, doc), nil
}

// Task loads a task by id.
func (s *Store) Task(id string) (*Task, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	path := s.taskPath(id)
	if !fileExists(path) {
		return nil, &NotFoundError{Kind: "Task", ID: id}
	}
	return s.loadTask(path)
}

// Epic loads an epic by id.
func (s *Store) Epic(id string) (*Epic, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	path := s.epicPath(id)
	if !fileExists(path) {
		return nil, &NotFoundError{Kind: "Epic", ID: id}
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return epicFromDocument(path, doc), nil
}

// Tasks loads every task, optionally restricted to one epic, in file
// name order.
func (s *Store) Tasks(epic string) ([]*Task, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	paths, err := s.list(TasksDir, "TASK")
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(paths))
	for _, p := range paths {
		t, err := s.loadTask(p)
		if err != nil {
			return nil, err
		}
		if epic != "" && t.Epic != epic {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Epics loads every epic in file name order.
func (s *Store) Epics() ([]*Epic, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	paths, err := s.list(EpicsDir, "EPIC")
	if err != nil {
		return nil, err
	}

	epics := make([]*Epic, 0, len(paths))
	for _, p := range paths {
		doc, err := readDocument(p)
		if err != nil {
			return nil, err
		}
		epics = append(epics, epicFromDocument(p, doc))
	}
	return epics, nil
}

// Show returns the raw content of a task, epic or requirement, looked up
// in that order.
func (s *Store) Show(id string) (string, error) {
	if err := s.ensure(); err != nil {
		return "", err
	}
	for _, path := range []string{s.taskPath(id), s.epicPath(id), s.reqPath(id)} {
		if !fileExists(path) {
			continue
		}
		content, err := readFile(path)
		if err != nil {
			return "", err
		}
		return string(content), nil
	}
	return "", &NotFoundError{ID: id}
}
