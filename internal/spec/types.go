// Package spec implements the task graph plane: the declarative set of
// tasks, their dependency edges and status state machine, structural
// validation, and atomic persistence of the whole document.
package spec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the task status in the graph plane. Claimed is deliberately
// not a status here: claims live in the runtime plane as leases.
type Status string

const (
	// StatusTodo is the initial state for drafted tasks.
	StatusTodo Status = "todo"

	// StatusReady marks a task eligible for claiming once its
	// dependencies are verified.
	StatusReady Status = "ready"

	// StatusBlocked is an alternate pre-ready state for tasks waiting on
	// something outside the graph.
	StatusBlocked Status = "blocked"

	// StatusDone means work finished, pending verification.
	StatusDone Status = "done"

	// StatusVerified means the task is confirmed complete; only verified
	// tasks satisfy dependents' dependencies.
	StatusVerified Status = "verified"

	// StatusDeleted is the terminal soft-delete state.
	StatusDeleted Status = "deleted"
)

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

var validStatuses = map[Status]bool{
	StatusTodo:     true,
	StatusReady:    true,
	StatusBlocked:  true,
	StatusDone:     true,
	StatusVerified: true,
	StatusDeleted:  true,
}

// ParseStatus validates a status string at the boundary and returns the
// closed enum value. The comparison is case-insensitive.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !validStatuses[status] {
		return "", fmt.Errorf("invalid task status %q (valid: todo, ready, blocked, done, verified, deleted)", s)
	}
	return status, nil
}

// DefaultPriority is assigned to tasks created without an explicit
// priority. Lower values are higher priority.
const DefaultPriority = 100

// Task is a unit of work in the graph plane.
type Task struct {
	ID                 string    `yaml:"-"`
	Title              string    `yaml:"title"`
	Description        string    `yaml:"description,omitempty"`
	AcceptanceCriteria []string  `yaml:"acceptance_criteria,omitempty"`
	DependsOn          []string  `yaml:"depends_on,omitempty"`
	Labels             []string  `yaml:"labels,omitempty"`
	Locks              []string  `yaml:"locks,omitempty"`
	Priority           int       `yaml:"priority"`
	Status             Status    `yaml:"status"`
	CreatedAt          time.Time `yaml:"created_at"`
	UpdatedAt          time.Time `yaml:"updated_at"`
}

// IsClaimable reports whether the task can be claimed given the set of
// verified task ids: status must be ready and every dependency verified.
func (t *Task) IsClaimable(verified map[string]bool) bool {
	if t.Status != StatusReady {
		return false
	}
	for _, dep := range t.DependsOn {
		if !verified[dep] {
			return false
		}
	}
	return true
}

// HasLabel reports whether the task carries the given label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Project holds project-level configuration in the graph document.
type Project struct {
	Name          string         `yaml:"name"`
	DefaultBranch string         `yaml:"default_branch,omitempty"`
	Conventions   map[string]any `yaml:"conventions,omitempty"`
}

// Spec is the complete task graph document. Persistence is whole-document:
// every save atomically replaces the entire serialized representation.
type Spec struct {
	Project  Project             `yaml:"project"`
	Tasks    map[string]*Task    `yaml:"tasks,omitempty"`
	Features map[string][]string `yaml:"features,omitempty"`
}

// NewSpec creates an empty spec for the named project.
func NewSpec(projectName string) *Spec {
	return &Spec{
		Project:  Project{Name: projectName, DefaultBranch: "main"},
		Tasks:    make(map[string]*Task),
		Features: make(map[string][]string),
	}
}

// GetTask returns the task with the given id, or nil.
func (s *Spec) GetTask(id string) *Task {
	return s.Tasks[id]
}

// VerifiedSet returns the set of verified task ids.
func (s *Spec) VerifiedSet() map[string]bool {
	verified := make(map[string]bool)
	for id, task := range s.Tasks {
		if task.Status == StatusVerified {
			verified[id] = true
		}
	}
	return verified
}

// ClaimableTasks returns every task satisfying the claimability predicate,
// sorted by priority ascending with ties broken lexicographically on id
// for deterministic ordering. The result reflects graph state only; lease
// filtering is a second stage owned by the coordinator.
func (s *Spec) ClaimableTasks() []*Task {
	verified := s.VerifiedSet()

	var claimable []*Task
	for _, task := range s.Tasks {
		if task.IsClaimable(verified) {
			claimable = append(claimable, task)
		}
	}
	sort.Slice(claimable, func(i, j int) bool {
		if claimable[i].Priority != claimable[j].Priority {
			return claimable[i].Priority < claimable[j].Priority
		}
		return claimable[i].ID < claimable[j].ID
	})
	return claimable
}

// DependencyGraph returns the inverse adjacency: task id -> ids of tasks
// that depend on it. Recomputed on demand so it always reflects the
// current graph.
func (s *Spec) DependencyGraph() map[string][]string {
	graph := make(map[string][]string, len(s.Tasks))
	for id := range s.Tasks {
		graph[id] = []string{}
	}
	ids := s.sortedIDs()
	for _, id := range ids {
		for _, dep := range s.Tasks[id].DependsOn {
			if _, ok := graph[dep]; ok {
				graph[dep] = append(graph[dep], id)
			}
		}
	}
	return graph
}

// Dependents returns the ids of tasks that directly depend on the given
// task, in lexicographic order.
func (s *Spec) Dependents(id string) []string {
	return s.DependencyGraph()[id]
}

// NextTaskID generates the next id for the given prefix using a
// monotonically increasing numeric suffix scoped to that prefix:
// T001, T002, ... Existing ids with non-numeric suffixes are ignored.
func (s *Spec) NextTaskID(prefix string) string {
	maxNum := 0
	for id := range s.Tasks {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(id[len(prefix):])
		if err != nil {
			continue
		}
		if n > maxNum {
			maxNum = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, maxNum+1)
}

// sortedIDs returns all task ids in lexicographic order, giving map
// iteration a stable order wherever output is user-visible.
func (s *Spec) sortedIDs() []string {
	ids := make([]string, 0, len(s.Tasks))
	for id := range s.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
