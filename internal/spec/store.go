package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beacon-works/beacon/internal/errors"
	"github.com/beacon-works/beacon/internal/flock"
	"github.com/beacon-works/beacon/internal/retry"
)

// DefaultLockTimeout bounds how long a writer waits for the spec lock.
const DefaultLockTimeout = 5 * time.Second

// Store persists the spec document as YAML. Writes go through an
// advisory file lock and an atomic temp-file rename so concurrent
// processes never observe a torn document.
type Store struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
}

// NewStore creates a store for the spec file at path. The lock file
// lives beside it at path + ".lock".
func NewStore(path string) *Store {
	return &Store{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: DefaultLockTimeout,
	}
}

// SetLockTimeout overrides the write-lock wait bound.
func (st *Store) SetLockTimeout(d time.Duration) { st.lockTimeout = d }

// Path returns the spec file path.
func (st *Store) Path() string { return st.path }

// Exists reports whether the spec file is present.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.path)
	return err == nil
}

// Load reads and parses the spec document. Task ids come from the map
// keys and are stamped back onto each task.
func (st *Store) Load() (*Spec, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrSpecNotFound, "%s", st.path)
		}
		return nil, fmt.Errorf("read spec: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse spec %s: %w", st.path, err)
	}
	if spec.Tasks == nil {
		spec.Tasks = make(map[string]*Task)
	}
	for id, task := range spec.Tasks {
		task.ID = id
	}
	return &spec, nil
}

// Save writes the spec document atomically: serialize to a temp file in
// the same directory, fsync, then rename over the target. The rename is
// retried on transient sharing errors so a reader briefly holding the
// file does not fail the write.
func (st *Store) Save(spec *Spec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	dir := filepath.Dir(st.path)
	tmp, err := os.CreateTemp(dir, ".spec-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("create temp spec: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp spec: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp spec: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp spec: %w", err)
	}

	err = retry.Do(retry.DefaultAttempts, retry.DefaultBaseDelay, retry.IsTransientFileError, func() error {
		return os.Rename(tmpPath, st.path)
	})
	if err != nil {
		return errors.NewTransientError("rename spec", err)
	}
	return nil
}

// Update runs a read-modify-write cycle under the advisory lock: load
// the current document, apply fn, and save the result. fn returning an
// error aborts without writing. Other writers block for at most the
// configured lock timeout.
func (st *Store) Update(fn func(*Spec) error) (*Spec, error) {
	lock := flock.New(st.lockPath)
	if err := lock.LockTimeout(st.lockTimeout); err != nil {
		if errors.Is(err, flock.ErrTimeout) {
			return nil, errors.Wrap(errors.ErrLockTimeout, st.lockPath)
		}
		return nil, err
	}
	defer lock.Unlock()

	spec, err := st.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(spec); err != nil {
		return nil, err
	}
	if err := st.Save(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// CreateDefault writes a fresh empty spec for the named project.
// Refuses to overwrite an existing file.
func (st *Store) CreateDefault(projectName string) (*Spec, error) {
	if st.Exists() {
		return nil, fmt.Errorf("spec already exists at %s", st.path)
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return nil, fmt.Errorf("create spec directory: %w", err)
	}
	spec := NewSpec(projectName)
	if err := st.Save(spec); err != nil {
		return nil, err
	}
	return spec, nil
}
