package spec

import (
	"fmt"
)

// Validate returns every consistency issue in the spec directory: missing
// status fields, references to tasks that do not exist, and the first
// task found on a dependency cycle.
func (s *Store) Validate() ([]string, error) {
	tasks, err := s.Tasks("")
	if err != nil {
		return nil, err
	}
	epics, err := s.Epics()
	if err != nil {
		return nil, err
	}

	var issues []string
	for _, t := range tasks {
		if t.Status == "" {
			issues = append(issues, fmt.Sprintf("%s: missing 'status' field", t.ID))
		}
		for _, dep := range t.BlockedBy {
			if !fileExists(s.taskPath(dep)) {
				issues = append(issues, fmt.Sprintf("%s: blocked-by references non-existent task '%s'", t.ID, dep))
			}
		}
	}

	for _, e := range epics {
		if e.Status == "" {
			issues = append(issues, fmt.Sprintf("%s: missing 'status' field", e.ID))
		}
		for _, ref := range e.Tasks {
			if !fileExists(s.taskPath(ref)) {
				issues = append(issues, fmt.Sprintf("%s: references non-existent task '%s'", e.ID, ref))
			}
		}
	}

	graph := blockGraph(tasks)
	for _, t := range tasks {
		if onCycle(graph, t.ID) {
			issues = append(issues, fmt.Sprintf("%s: part of a dependency cycle", t.ID))
			break
		}
	}

	return issues, nil
}

// onCycle reports whether a cycle is reachable from id.
func onCycle(graph map[string][]string, id string) bool {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)

	var visit func(string) bool
	visit = func(n string) bool {
		if onPath[n] {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		onPath[n] = true
		for _, dep := range graph[n] {
			if visit(dep) {
				return true
			}
		}
		onPath[n] = false
		return false
	}
	return visit(id)
}
