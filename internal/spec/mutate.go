package spec

import (
	"fmt"
	"sort"
	"time"

	"github.com/beacon-works/beacon/internal/errors"
)

// CreateTaskParams carries the caller-supplied fields for a new task.
// Zero values get defaults: status todo, priority DefaultPriority, id
// autogenerated from the prefix.
type CreateTaskParams struct {
	ID                 string
	Title              string
	Description        string
	AcceptanceCriteria []string
	DependsOn          []string
	Labels             []string
	Locks              []string
	Priority           *int
	Status             string
	IDPrefix           string
}

// CreateTask adds a task to the graph. Every referenced dependency must
// already exist and not be deleted; a duplicate explicit id is rejected.
func (s *Spec) CreateTask(p CreateTaskParams) (*Task, error) {
	if p.Title == "" {
		return nil, errors.NewValidationError("task title is required").WithField("title")
	}

	prefix := p.IDPrefix
	if prefix == "" {
		prefix = "T"
	}
	id := p.ID
	if id == "" {
		id = s.NextTaskID(prefix)
	} else if existing := s.Tasks[id]; existing != nil {
		return nil, errors.Wrapf(errors.ErrDuplicateTask, "task %s already exists", id)
	}

	status := StatusTodo
	if p.Status != "" {
		parsed, err := ParseStatus(p.Status)
		if err != nil {
			return nil, errors.NewValidationError(err.Error()).WithField("status").WithValue(p.Status)
		}
		if parsed == StatusDeleted {
			return nil, errors.NewValidationError("cannot create a task in deleted status").WithField("status")
		}
		status = parsed
	}

	if unknown := s.unknownDeps(p.DependsOn); len(unknown) > 0 {
		return nil, errors.Wrapf(errors.ErrUnknownDependency, "task %s references unknown dependencies %v", id, unknown)
	}

	priority := DefaultPriority
	if p.Priority != nil {
		priority = *p.Priority
	}

	now := time.Now().UTC()
	task := &Task{
		ID:                 id,
		Title:              p.Title,
		Description:        p.Description,
		AcceptanceCriteria: append([]string(nil), p.AcceptanceCriteria...),
		DependsOn:          append([]string(nil), p.DependsOn...),
		Labels:             append([]string(nil), p.Labels...),
		Locks:              append([]string(nil), p.Locks...),
		Priority:           priority,
		Status:             status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if s.Tasks == nil {
		s.Tasks = make(map[string]*Task)
	}
	s.Tasks[id] = task
	return task, nil
}

// UpdateTaskParams carries partial updates; nil fields are left alone.
type UpdateTaskParams struct {
	Title              *string
	Description        *string
	AcceptanceCriteria *[]string
	DependsOn          *[]string
	Labels             *[]string
	Locks              *[]string
	Priority           *int
	Status             *string
}

// UpdateTask applies a partial update to an existing task. A depends_on
// change is validated against the live graph, including a cycle check
// over the would-be result, before anything is committed.
func (s *Spec) UpdateTask(id string, p UpdateTaskParams) (*Task, error) {
	task := s.Tasks[id]
	if task == nil {
		return nil, errors.NewNotFoundError("task", id)
	}
	if task.Status == StatusDeleted {
		return nil, errors.Wrapf(errors.ErrAlreadyDeleted, "task %s is deleted", id)
	}

	var status *Status
	if p.Status != nil {
		parsed, err := ParseStatus(*p.Status)
		if err != nil {
			return nil, errors.NewValidationError(err.Error()).WithField("status").WithValue(*p.Status)
		}
		if parsed == StatusDeleted {
			return nil, errors.NewValidationError("use delete to remove a task").WithField("status")
		}
		status = &parsed
	}

	if p.DependsOn != nil {
		if unknown := s.unknownDeps(*p.DependsOn); len(unknown) > 0 {
			return nil, errors.Wrapf(errors.ErrUnknownDependency, "task %s references unknown dependencies %v", id, unknown)
		}
		// Trial the edge change on a shallow copy so a cycle leaves the
		// graph untouched.
		trial := *task
		trial.DependsOn = *p.DependsOn
		saved := s.Tasks[id]
		s.Tasks[id] = &trial
		result := s.Validate()
		s.Tasks[id] = saved
		if len(result.Cycles) > 0 {
			return nil, errors.Wrapf(errors.ErrDependencyCycle, "updating %s would create cycle %v", id, result.Cycles[0])
		}
	}

	if p.Title != nil {
		if *p.Title == "" {
			return nil, errors.NewValidationError("task title cannot be empty").WithField("title")
		}
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.AcceptanceCriteria != nil {
		task.AcceptanceCriteria = append([]string(nil), (*p.AcceptanceCriteria)...)
	}
	if p.DependsOn != nil {
		task.DependsOn = append([]string(nil), (*p.DependsOn)...)
	}
	if p.Labels != nil {
		task.Labels = append([]string(nil), (*p.Labels)...)
	}
	if p.Locks != nil {
		task.Locks = append([]string(nil), (*p.Locks)...)
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if status != nil {
		task.Status = *status
	}
	task.UpdatedAt = time.Now().UTC()
	return task, nil
}

// MarkDone transitions a task to done. Lenient about the prior state so
// an agent whose lease expired mid-work can still report completion.
func (s *Spec) MarkDone(id string) (*Task, error) {
	task := s.Tasks[id]
	if task == nil {
		return nil, errors.NewNotFoundError("task", id)
	}
	if task.Status == StatusDeleted {
		return nil, errors.Wrapf(errors.ErrAlreadyDeleted, "task %s is deleted", id)
	}
	task.Status = StatusDone
	task.UpdatedAt = time.Now().UTC()
	return task, nil
}

// Verify transitions a done task to verified. Strict: only done tasks
// can be verified.
func (s *Spec) Verify(id string) (*Task, error) {
	task := s.Tasks[id]
	if task == nil {
		return nil, errors.NewNotFoundError("task", id)
	}
	if task.Status == StatusDeleted {
		return nil, errors.Wrapf(errors.ErrAlreadyDeleted, "task %s is deleted", id)
	}
	if task.Status != StatusDone {
		return nil, errors.Wrapf(errors.ErrNotDone, "task %s is %s, not done", id, task.Status)
	}
	task.Status = StatusVerified
	task.UpdatedAt = time.Now().UTC()
	return task, nil
}

// DeleteTask soft-deletes a task. Without cascade the delete is refused
// if any live task depends on it, and the error names every dependent.
// With cascade the whole transitive dependent closure is deleted too;
// the returned slice lists every id deleted, sorted.
func (s *Spec) DeleteTask(id string, cascade bool) ([]string, error) {
	task := s.Tasks[id]
	if task == nil {
		return nil, errors.NewNotFoundError("task", id)
	}
	if task.Status == StatusDeleted {
		return nil, errors.Wrapf(errors.ErrAlreadyDeleted, "task %s is already deleted", id)
	}

	dependents := s.liveDependents(id)
	if len(dependents) > 0 && !cascade {
		return nil, errors.NewDependentsError(id, dependents)
	}

	// BFS over live dependents for the transitive closure.
	toDelete := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range s.liveDependents(current) {
			if !toDelete[dep] {
				toDelete[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	now := time.Now().UTC()
	deleted := make([]string, 0, len(toDelete))
	for tid := range toDelete {
		s.Tasks[tid].Status = StatusDeleted
		s.Tasks[tid].UpdatedAt = now
		deleted = append(deleted, tid)
	}
	sort.Strings(deleted)
	return deleted, nil
}

// unknownDeps returns the referenced dependency ids that are absent or
// deleted, sorted.
func (s *Spec) unknownDeps(deps []string) []string {
	var unknown []string
	for _, dep := range deps {
		target := s.Tasks[dep]
		if target == nil || target.Status == StatusDeleted {
			unknown = append(unknown, dep)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// liveDependents returns the non-deleted direct dependents of a task.
func (s *Spec) liveDependents(id string) []string {
	var dependents []string
	for _, did := range s.Dependents(id) {
		if s.Tasks[did].Status != StatusDeleted {
			dependents = append(dependents, did)
		}
	}
	return dependents
}

// StatusCounts returns the number of tasks per status, for stats output.
func (s *Spec) StatusCounts() map[Status]int {
	counts := make(map[Status]int)
	for _, task := range s.Tasks {
		counts[task.Status]++
	}
	return counts
}

// Summary renders a one-line progress summary.
func (s *Spec) Summary() string {
	counts := s.StatusCounts()
	total := len(s.Tasks) - counts[StatusDeleted]
	return fmt.Sprintf("%d tasks: %d verified, %d done, %d ready, %d todo, %d blocked",
		total, counts[StatusVerified], counts[StatusDone], counts[StatusReady], counts[StatusTodo], counts[StatusBlocked])
}
