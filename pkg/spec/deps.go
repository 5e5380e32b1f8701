package spec

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/frontmatter"
)

// Dependency kinds
const (
	DepBlocks         = "blocks"
	DepDiscoveredFrom = "discovered-from"
)

// CycleError is returned when a blocks dependency would close a loop.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "Cannot add dependency: would create cycle: " + strings.Join(e.Path, " → ")
}

func blockGraph(tasks []*Task) map[string][]string {
	graph := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		graph[t.ID] = t.BlockedBy
	}
	return graph
}

// findPath returns a blocked-by chain from start to target, or nil.
func findPath(graph map[string][]string, start, target string) []string {
	visited := make(map[string]bool)
	var walk func(id string, path []string) []string
	walk = func(id string, path []string) []string {
		path = append(path, id)
		if id == target {
			return path
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		for _, dep := range graph[id] {
			if found := walk(dep, path); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(start, nil)
}

// DepAdd records that task depends on dep. Kind DepBlocks adds dep to
// blocked-by after checking for cycles; DepDiscoveredFrom adds an
// informational link. It reports false when the link already existed.
func (s *Store) DepAdd(taskID, depID, kind string) (bool, error) {
	task, err := s.Task(taskID)
	if err != nil {
		return false, err
	}
	if !fileExists(s.taskPath(depID)) {
		return false, &NotFoundError{Kind: "Dependency", ID: depID}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case DepDiscoveredFrom:
		if contains(task.DiscoveredFrom, depID) {
			return false, nil
		}
		return true, updateDocument(task.Path, func(doc *frontmatter.Document) error {
			return doc.Set(KeyDiscoveredFrom, append(task.DiscoveredFrom, depID))
		})
	case DepBlocks, "":
	default:
		return false, errors.Errorf("invalid dependency type %q (want %s or %s)", kind, DepBlocks, DepDiscoveredFrom)
	}

	if contains(task.BlockedBy, depID) {
		return false, nil
	}

	all, err := s.Tasks("")
	if err != nil {
		return false, err
	}
	if path := findPath(blockGraph(all), depID, taskID); path != nil {
		return false, &CycleError{Path: append([]string{taskID}, path...)}
	}

	return true, updateDocument(task.Path, func(doc *frontmatter.Document) error {
		return doc.Set(KeyBlockedBy, append(task.BlockedBy, depID))
	})
}

// DepRemove drops dep from the task's blocked-by list. It reports false
// when the task did not depend on dep.
func (s *Store) DepRemove(taskID, depID string) (bool, error) {
	task, err := s.Task(taskID)
	if err != nil {
		return false, err
	}
	if !contains(task.BlockedBy, depID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := make([]string, 0, len(task.BlockedBy))
	for _, d := range task.BlockedBy {
		if d != depID {
			remaining = append(remaining, d)
		}
	}
	return true, updateDocument(task.Path, func(doc *frontmatter.Document) error {
		return doc.Set(KeyBlockedBy, remaining)
	})
}

// DepList returns the blocked-by and discovered-from links of a task.
func (s *Store) DepList(taskID string) (blockedBy, discoveredFrom []string, err error) {
	task, err := s.Task(taskID)
	if err != nil {
		return nil, nil, err
	}
	return task.BlockedBy, task.DiscoveredFrom, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
