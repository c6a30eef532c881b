// Package workspace locates and describes a beacon-initialized repository.
//
// A repository is initialized when it contains a .beacon directory holding
// the spec document and the runtime store. All path knowledge lives here;
// callers receive an explicit Workspace value and pass it to constructors
// rather than relying on ambient process state.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// Dir is the marker directory created by Init.
	Dir = ".beacon"

	specFile    = "spec.yaml"
	runtimeFile = "runtime.db"
	logFile     = "beacon.log"
)

// ErrNotFound is returned by Find when no .beacon directory exists between
// the start directory and the filesystem root.
var ErrNotFound = fmt.Errorf("not a beacon repository (no %s directory found); run 'beacon init' first", Dir)

// Workspace is an initialized repository root.
type Workspace struct {
	// Root is the absolute path of the directory containing .beacon.
	Root string
}

// Find walks upward from start looking for a .beacon directory.
// An empty start means the current working directory.
func Find(start string) (Workspace, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Workspace{}, fmt.Errorf("determine working directory: %w", err)
		}
		start = wd
	}

	current, err := filepath.Abs(start)
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		info, err := os.Stat(filepath.Join(current, Dir))
		if err == nil && info.IsDir() {
			return Workspace{Root: current}, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return Workspace{}, ErrNotFound
		}
		current = parent
	}
}

// Init creates the .beacon directory under root. It is idempotent.
func Init(root string) (Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(filepath.Join(abs, Dir), 0o755); err != nil {
		return Workspace{}, fmt.Errorf("create %s: %w", Dir, err)
	}
	return Workspace{Root: abs}, nil
}

// BeaconDir returns the .beacon directory path.
func (w Workspace) BeaconDir() string { return filepath.Join(w.Root, Dir) }

// SpecPath returns the path of the task graph document.
func (w Workspace) SpecPath() string { return filepath.Join(w.BeaconDir(), specFile) }

// SpecLockPath returns the path of the advisory lock guarding spec writes.
func (w Workspace) SpecLockPath() string { return w.SpecPath() + ".lock" }

// RuntimePath returns the path of the SQLite runtime store.
func (w Workspace) RuntimePath() string { return filepath.Join(w.BeaconDir(), runtimeFile) }

// LogPath returns the path of the structured log file.
func (w Workspace) LogPath() string { return filepath.Join(w.BeaconDir(), logFile) }
