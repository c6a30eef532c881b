package spec

import (
	"sort"

	"github.com/beacon-works/beacon/internal/errors"
)

// ValidationResult collects every structural problem found in a single
// pass over the graph, rather than stopping at the first.
type ValidationResult struct {
	// MissingDeps maps task id -> referenced dependency ids that do not
	// exist in the graph.
	MissingDeps map[string][]string

	// Cycles holds every dependency cycle found, each as the ordered list
	// of task ids forming the cycle.
	Cycles [][]string
}

// OK reports whether the graph passed validation.
func (r *ValidationResult) OK() bool {
	return len(r.MissingDeps) == 0 && len(r.Cycles) == 0
}

// Validate checks the dependency graph for broken edges and cycles.
// Deleted tasks are excluded: they neither contribute edges nor count as
// valid dependency targets. The traversal does not short-circuit, so the
// result names every offending task.
func (s *Spec) Validate() *ValidationResult {
	result := &ValidationResult{MissingDeps: make(map[string][]string)}

	live := make(map[string]*Task, len(s.Tasks))
	for id, task := range s.Tasks {
		if task.Status != StatusDeleted {
			live[id] = task
		}
	}

	ids := make([]string, 0, len(live))
	for id := range live {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, dep := range live[id].DependsOn {
			if _, ok := live[dep]; !ok {
				result.MissingDeps[id] = append(result.MissingDeps[id], dep)
			}
		}
	}

	result.Cycles = findCycles(live, ids)
	return result
}

// findCycles runs a DFS with an explicit recursion stack over the live
// graph and reports each cycle once, as the path segment from the first
// revisited node.
func findCycles(live map[string]*Task, ids []string) [][]string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(live))

	var cycles [][]string
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)

		deps := append([]string(nil), live[id].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := live[dep]; !ok {
				continue
			}
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				// Found a back edge: the cycle is the stack from the
				// first occurrence of dep onward.
				for i, node := range stack {
					if node == dep {
						cycle := append([]string(nil), stack[i:]...)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles
}

// TopologicalSort returns all live task ids in dependency order:
// every task appears after all of its dependencies. Ties are broken
// lexicographically so the order is deterministic. Fails fast with
// ErrDependencyCycle if the graph is cyclic.
func (s *Spec) TopologicalSort() ([]string, error) {
	live := make(map[string]*Task, len(s.Tasks))
	for id, task := range s.Tasks {
		if task.Status != StatusDeleted {
			live[id] = task
		}
	}

	indegree := make(map[string]int, len(live))
	dependents := make(map[string][]string, len(live))
	for id := range live {
		indegree[id] = 0
	}
	for id, task := range live {
		for _, dep := range task.DependsOn {
			if _, ok := live[dep]; !ok {
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var frontier []string
	for id, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(live))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		next := append([]string(nil), dependents[id]...)
		sort.Strings(next)
		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				frontier = append(frontier, dependent)
			}
		}
		sort.Strings(frontier)
	}

	if len(order) != len(live) {
		return nil, errors.Wrap(errors.ErrDependencyCycle, "topological sort")
	}
	return order, nil
}
