package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beacon-works/beacon/internal/errors"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "spec.yaml"))
}

func TestStoreRoundTrip(t *testing.T) {
	st := tempStore(t)

	spec := NewSpec("demo")
	if _, err := spec.CreateTask(CreateTaskParams{Title: "first", Labels: []string{"infra"}}); err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	if _, err := spec.CreateTask(CreateTaskParams{Title: "second", DependsOn: []string{"T001"}}); err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	if err := st.Save(spec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := st.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Project.Name != "demo" {
		t.Errorf("Project.Name = %s, want demo", loaded.Project.Name)
	}
	if len(loaded.Tasks) != 2 {
		t.Fatalf("loaded %d tasks, want 2", len(loaded.Tasks))
	}
	task := loaded.GetTask("T002")
	if task == nil {
		t.Fatal("T002 missing after round trip")
	}
	if task.ID != "T002" {
		t.Errorf("task id not stamped from map key: %q", task.ID)
	}
	if len(task.DependsOn) != 1 || task.DependsOn[0] != "T001" {
		t.Errorf("DependsOn = %v, want [T001]", task.DependsOn)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	st := tempStore(t)
	if _, err := st.Load(); !errors.Is(err, errors.ErrSpecNotFound) {
		t.Fatalf("expected ErrSpecNotFound, got %v", err)
	}
}

func TestStoreSaveAtomic(t *testing.T) {
	st := tempStore(t)
	if _, err := st.CreateDefault("demo"); err != nil {
		t.Fatalf("CreateDefault() error: %v", err)
	}

	// No temp files should survive a save.
	if err := st.Save(NewSpec("demo")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(st.Path()))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "spec.yaml" {
			t.Errorf("stray file after save: %s", e.Name())
		}
	}
}

func TestStoreUpdate(t *testing.T) {
	st := tempStore(t)
	if _, err := st.CreateDefault("demo"); err != nil {
		t.Fatalf("CreateDefault() error: %v", err)
	}

	if _, err := st.Update(func(s *Spec) error {
		_, err := s.CreateTask(CreateTaskParams{Title: "added under lock"})
		return err
	}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	loaded, err := st.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.GetTask("T001") == nil {
		t.Fatal("update was not persisted")
	}
}

func TestStoreUpdateAbortsOnError(t *testing.T) {
	st := tempStore(t)
	if _, err := st.CreateDefault("demo"); err != nil {
		t.Fatalf("CreateDefault() error: %v", err)
	}

	if _, err := st.Update(func(s *Spec) error {
		_, _ = s.CreateTask(CreateTaskParams{Title: "should not persist"})
		return errors.New("abort")
	}); err == nil {
		t.Fatal("expected error from Update")
	}

	loaded, err := st.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded.Tasks) != 0 {
		t.Fatal("aborted update was persisted")
	}
}

func TestCreateDefaultRefusesOverwrite(t *testing.T) {
	st := tempStore(t)
	if _, err := st.CreateDefault("demo"); err != nil {
		t.Fatalf("CreateDefault() error: %v", err)
	}
	if _, err := st.CreateDefault("demo"); err == nil {
		t.Fatal("expected error on second CreateDefault")
	}
}
