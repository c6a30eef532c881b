package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClaimConflictError(t *testing.T) {
	expires := time.Now().Add(15 * time.Minute)
	err := NewClaimConflictError("T001", "A1234ABCD", expires)

	if !Is(err, ErrAlreadyClaimed) {
		t.Error("ClaimConflictError should match ErrAlreadyClaimed")
	}
	if err.HolderID != "A1234ABCD" {
		t.Errorf("HolderID = %q", err.HolderID)
	}
	if err.Remaining <= 14*time.Minute {
		t.Errorf("Remaining = %s, want close to 15m", err.Remaining)
	}
	if !strings.Contains(err.Error(), "A1234ABCD") {
		t.Errorf("Error() = %q, want holder id included", err.Error())
	}

	var conflict *ClaimConflictError
	if !As(err, &conflict) {
		t.Error("As should find *ClaimConflictError")
	}
}

func TestNotClaimableError(t *testing.T) {
	err := NewNotClaimableError("T002", "ready", []string{"T001"})

	if !Is(err, ErrNotClaimable) {
		t.Error("NotClaimableError should match ErrNotClaimable")
	}
	msg := err.Error()
	if !strings.Contains(msg, "T001") || !strings.Contains(msg, "ready") {
		t.Errorf("Error() = %q, want status and unmet deps included", msg)
	}

	noDeps := NewNotClaimableError("T003", "todo", nil)
	if strings.Contains(noDeps.Error(), "unmet") {
		t.Errorf("Error() = %q, should not mention unmet deps when empty", noDeps.Error())
	}
}

func TestDependentsError(t *testing.T) {
	err := NewDependentsError("T006", []string{"T007", "T008"})

	if !Is(err, ErrHasDependents) {
		t.Error("DependentsError should match ErrHasDependents")
	}
	if len(err.Dependents) != 2 {
		t.Errorf("Dependents = %v", err.Dependents)
	}
	if !strings.Contains(err.Error(), "T007, T008") {
		t.Errorf("Error() = %q, want every blocking id listed", err.Error())
	}
}

func TestNotFoundErrorMatchesSentinels(t *testing.T) {
	taskErr := NewNotFoundError("task", "T404")
	if !Is(taskErr, ErrTaskNotFound) {
		t.Error("task NotFoundError should match ErrTaskNotFound")
	}
	if Is(taskErr, ErrAgentNotFound) {
		t.Error("task NotFoundError should not match ErrAgentNotFound")
	}

	agentErr := NewNotFoundError("agent", "A1")
	if !Is(agentErr, ErrAgentNotFound) {
		t.Error("agent NotFoundError should match ErrAgentNotFound")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("id cannot be empty").WithField("task_id").WithValue("")

	if IsRetryable(err) {
		t.Error("validation errors are never retryable")
	}
	if !strings.Contains(err.Error(), "field=task_id") {
		t.Errorf("Error() = %q", err.Error())
	}

	var verr *ValidationError
	if !As(err, &verr) {
		t.Error("As should find *ValidationError")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", NewTransientError("spec save", ErrLockTimeout), true},
		{"lock timeout sentinel", ErrLockTimeout, true},
		{"store busy wrapped", fmt.Errorf("write: %w", ErrStoreBusy), true},
		{"conflict", NewClaimConflictError("T001", "A1", time.Now()), false},
		{"not found", NewNotFoundError("task", "T1"), false},
		{"plain", New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientErrorUnwraps(t *testing.T) {
	err := NewTransientError("spec save", ErrLockTimeout)
	if !Is(err, ErrLockTimeout) {
		t.Error("TransientError should unwrap to its cause")
	}
	if !IsRetryable(err) {
		t.Error("TransientError must be retryable")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	err := Wrap(ErrTaskNotFound, "claiming")
	if !Is(err, ErrTaskNotFound) {
		t.Error("wrapped error should preserve chain")
	}
	err = Wrapf(ErrNotDone, "verifying %s", "T001")
	if !Is(err, ErrNotDone) || !strings.Contains(err.Error(), "T001") {
		t.Errorf("Wrapf = %v", err)
	}
}
