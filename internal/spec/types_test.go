package spec

import (
	"testing"
	"time"
)

func newTask(id string, status Status, priority int, deps ...string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		Title:     "task " + id,
		DependsOn: deps,
		Priority:  priority,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testSpec(tasks ...*Task) *Spec {
	s := NewSpec("test")
	for _, t := range tasks {
		s.Tasks[t.ID] = t
	}
	return s
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"todo", StatusTodo, false},
		{"READY", StatusReady, false},
		{"  verified  ", StatusVerified, false},
		{"deleted", StatusDeleted, false},
		{"claimed", "", true},
		{"", "", true},
		{"in-progress", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseStatus(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsClaimable(t *testing.T) {
	verified := map[string]bool{"T001": true}

	tests := []struct {
		name string
		task *Task
		want bool
	}{
		{"ready no deps", newTask("T002", StatusReady, 100), true},
		{"ready deps verified", newTask("T002", StatusReady, 100, "T001"), true},
		{"ready deps unverified", newTask("T002", StatusReady, 100, "T003"), false},
		{"todo", newTask("T002", StatusTodo, 100), false},
		{"blocked", newTask("T002", StatusBlocked, 100), false},
		{"done", newTask("T002", StatusDone, 100), false},
		{"deleted", newTask("T002", StatusDeleted, 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.IsClaimable(verified); got != tt.want {
				t.Errorf("IsClaimable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaimableTasksOrdering(t *testing.T) {
	s := testSpec(
		newTask("T003", StatusReady, 50),
		newTask("T001", StatusReady, 100),
		newTask("T002", StatusReady, 50),
		newTask("T004", StatusTodo, 1),
	)

	got := s.ClaimableTasks()
	want := []string{"T002", "T003", "T001"}
	if len(got) != len(want) {
		t.Fatalf("ClaimableTasks() returned %d tasks, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("ClaimableTasks()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestClaimableTasksDependencyGating(t *testing.T) {
	dep := newTask("T001", StatusDone, 100)
	s := testSpec(dep, newTask("T002", StatusReady, 100, "T001"))

	if got := s.ClaimableTasks(); len(got) != 0 {
		t.Fatalf("done (unverified) dependency should gate claimability, got %d claimable", len(got))
	}

	dep.Status = StatusVerified
	got := s.ClaimableTasks()
	if len(got) != 1 || got[0].ID != "T002" {
		t.Fatalf("expected T002 claimable after dependency verified, got %v", got)
	}
}

func TestDependencyGraph(t *testing.T) {
	s := testSpec(
		newTask("T001", StatusReady, 100),
		newTask("T002", StatusTodo, 100, "T001"),
		newTask("T003", StatusTodo, 100, "T001", "T002"),
	)

	graph := s.DependencyGraph()
	if got := graph["T001"]; len(got) != 2 || got[0] != "T002" || got[1] != "T003" {
		t.Errorf("dependents of T001 = %v, want [T002 T003]", got)
	}
	if got := graph["T003"]; len(got) != 0 {
		t.Errorf("dependents of T003 = %v, want empty", got)
	}
}

func TestNextTaskID(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"empty", nil, "T001"},
		{"sequential", []string{"T001", "T002"}, "T003"},
		{"gap", []string{"T001", "T007"}, "T008"},
		{"non numeric ignored", []string{"T001", "Tfix"}, "T002"},
		{"other prefix ignored", []string{"X005"}, "T001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSpec("test")
			for _, id := range tt.ids {
				s.Tasks[id] = newTask(id, StatusTodo, 100)
			}
			if got := s.NextTaskID("T"); got != tt.want {
				t.Errorf("NextTaskID() = %s, want %s", got, tt.want)
			}
		})
	}
}
