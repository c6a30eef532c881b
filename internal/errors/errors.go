// Package errors provides centralized error definitions for the beacon
// codebase: sentinel errors for the task-graph and lease domains, semantic
// error types carrying structured detail, and classification helpers that
// separate transient (retriable) failures from permanent logical-state
// failures.
//
// The taxonomy follows the coordination model: validation errors are never
// retried; logical-state errors (not found, not claimable, already claimed,
// lease mismatch) are permanent relative to the current state; lock and
// store-busy timeouts are transient and explicitly marked retriable.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions so callers can import only this
// package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Graph and task sentinel errors.
var (
	// ErrTaskNotFound indicates the referenced task does not exist in the spec.
	ErrTaskNotFound = New("task not found")
	// ErrDuplicateTask indicates a create with an id that already exists.
	ErrDuplicateTask = New("task already exists")
	// ErrUnknownDependency indicates depends_on references a missing task.
	ErrUnknownDependency = New("unknown dependency")
	// ErrInvalidStatus indicates a status string outside the closed enum.
	ErrInvalidStatus = New("invalid task status")
	// ErrAlreadyDeleted indicates a delete of a task already soft-deleted.
	ErrAlreadyDeleted = New("task already deleted")
	// ErrHasDependents indicates a delete blocked by live dependent tasks.
	ErrHasDependents = New("task has dependents")
	// ErrNotDone indicates a verify on a task that is not in done status.
	ErrNotDone = New("task is not done")
	// ErrDependencyCycle indicates the dependency graph contains a cycle.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrSpecNotFound indicates the spec document does not exist on disk.
	ErrSpecNotFound = New("spec not found")
)

// Lease sentinel errors.
var (
	// ErrNotClaimable indicates the task's status or dependencies block a claim.
	ErrNotClaimable = New("task is not claimable")
	// ErrAlreadyClaimed indicates an active lease exists for the task.
	ErrAlreadyClaimed = New("task already claimed")
	// ErrNoActiveLease indicates a release with no active lease on the task.
	ErrNoActiveLease = New("no active lease")
	// ErrLeaseMismatch indicates the lease is held by a different agent.
	ErrLeaseMismatch = New("lease held by another agent")
	// ErrAgentNotFound indicates the agent is not registered.
	ErrAgentNotFound = New("agent not found")
)

// Infrastructure sentinel errors. Both are transient.
var (
	// ErrLockTimeout indicates the spec advisory lock was not acquired in time.
	ErrLockTimeout = New("spec lock timeout")
	// ErrStoreBusy indicates the runtime store write timed out behind a writer.
	ErrStoreBusy = New("runtime store busy")
)

// BeaconError extends error with retry classification.
type BeaconError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// IsRetryable reports whether the operation may succeed if simply
	// retried, without any state change by another actor.
	IsRetryable() bool
}

// baseError provides common functionality for the semantic error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) IsRetryable() bool { return e.retryable }

// ValidationError represents malformed input: empty ids, out-of-enum
// values, oversized message bodies. Never retriable.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{baseError: baseError{message: message}}
}

// WithField records which input field failed validation.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError identifies a missing resource by type and id.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a NotFoundError for the named resource.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError:    baseError{message: fmt.Sprintf("%s %s not found", resourceType, resourceID)},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause attaches the underlying error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %s not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	switch e.ResourceType {
	case "task":
		if errors.Is(target, ErrTaskNotFound) {
			return true
		}
	case "agent":
		if errors.Is(target, ErrAgentNotFound) {
			return true
		}
	}
	return e.baseError.Is(target)
}

// ClaimConflictError reports a claim that lost to an existing active
// lease. It carries the winner's identity and remaining TTL so the caller
// can report a precise reason without a follow-up query.
type ClaimConflictError struct {
	baseError
	TaskID    string
	HolderID  string
	ExpiresAt time.Time
	Remaining time.Duration
}

// NewClaimConflictError creates a ClaimConflictError naming the current holder.
func NewClaimConflictError(taskID, holderID string, expiresAt time.Time) *ClaimConflictError {
	return &ClaimConflictError{
		baseError: baseError{
			message: fmt.Sprintf("task %s already claimed by %s", taskID, holderID),
			cause:   ErrAlreadyClaimed,
		},
		TaskID:    taskID,
		HolderID:  holderID,
		ExpiresAt: expiresAt,
		Remaining: time.Until(expiresAt),
	}
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("task %s already claimed by %s (expires in %s)",
		e.TaskID, e.HolderID, e.Remaining.Round(time.Second))
}

func (e *ClaimConflictError) Is(target error) bool {
	if _, ok := target.(*ClaimConflictError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotClaimableError reports why a task cannot be claimed: its current
// status and the dependency ids that are not yet verified.
type NotClaimableError struct {
	baseError
	TaskID    string
	Status    string
	UnmetDeps []string
}

// NewNotClaimableError creates a NotClaimableError with unmet dependency detail.
func NewNotClaimableError(taskID, status string, unmetDeps []string) *NotClaimableError {
	return &NotClaimableError{
		baseError: baseError{
			message: fmt.Sprintf("task %s is not claimable", taskID),
			cause:   ErrNotClaimable,
		},
		TaskID:    taskID,
		Status:    status,
		UnmetDeps: unmetDeps,
	}
}

func (e *NotClaimableError) Error() string {
	if len(e.UnmetDeps) > 0 {
		return fmt.Sprintf("task %s is not claimable (status: %s, unmet dependencies: %s)",
			e.TaskID, e.Status, strings.Join(e.UnmetDeps, ", "))
	}
	return fmt.Sprintf("task %s is not claimable (status: %s)", e.TaskID, e.Status)
}

func (e *NotClaimableError) Is(target error) bool {
	if _, ok := target.(*NotClaimableError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DependentsError reports a delete blocked by live dependents, listing
// every blocking task id so the caller can fix the graph in one pass.
type DependentsError struct {
	baseError
	TaskID     string
	Dependents []string
}

// NewDependentsError creates a DependentsError listing the blocking ids.
func NewDependentsError(taskID string, dependents []string) *DependentsError {
	return &DependentsError{
		baseError: baseError{
			message: fmt.Sprintf("task %s has dependents", taskID),
			cause:   ErrHasDependents,
		},
		TaskID:     taskID,
		Dependents: dependents,
	}
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("task %s has dependents: %s (use cascade to delete them)",
		e.TaskID, strings.Join(e.Dependents, ", "))
}

func (e *DependentsError) Is(target error) bool {
	if _, ok := target.(*DependentsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TransientError wraps an infrastructure failure that is safe to retry
// immediately: advisory-lock timeouts, store busy-timeouts, file-sharing
// violations during atomic rename.
type TransientError struct {
	baseError
	Operation string
}

// NewTransientError creates a retriable TransientError for the named operation.
func NewTransientError(operation string, cause error) *TransientError {
	return &TransientError{
		baseError: baseError{
			message:   fmt.Sprintf("%s failed transiently", operation),
			cause:     cause,
			retryable: true,
		},
		Operation: operation,
	}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed transiently (retry suggested): %v", e.Operation, e.cause)
}

func (e *TransientError) Is(target error) bool {
	if _, ok := target.(*TransientError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IsRetryable reports whether the error represents a transient condition
// that may succeed on an immediate retry. Logical-state errors return
// false even though the caller may legitimately retry after another actor
// changes the state.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var be BeaconError
	if As(err, &be) {
		return be.IsRetryable()
	}
	return Is(err, ErrLockTimeout) || Is(err, ErrStoreBusy)
}

// Wrap wraps an error with additional context, preserving the chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
