// Package flock provides cross-process mutual exclusion using flock(2).
// It guards the write path of the spec document when multiple beacon
// processes operate on the same repository.
package flock

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrTimeout is returned by LockTimeout when the lock could not be
// acquired within the deadline. It is a transient condition: the holder
// is expected to release within milliseconds and callers may retry.
var ErrTimeout = errors.New("timed out waiting for file lock")

// pollInterval is how often LockTimeout re-attempts a non-blocking acquire.
const pollInterval = 25 * time.Millisecond

// FileLock is an advisory lock backed by a lock file.
type FileLock struct {
	path string
	file *os.File
}

// New creates a FileLock for the given lock file path. The file is
// created on first acquire. Call Lock or LockTimeout, then Unlock.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires an exclusive lock, blocking until available.
func (fl *FileLock) Lock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return fmt.Errorf("flock: %w", err)
	}
	fl.file = f
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another process holds it.
func (fl *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}

	fl.file = f
	return true, nil
}

// LockTimeout acquires the lock, waiting at most timeout. It polls
// TryLock rather than blocking in flock so the wait stays bounded.
// Returns ErrTimeout (wrapped) when the deadline passes.
func (fl *FileLock) LockTimeout(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := fl.TryLock()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, fl.path, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// Unlock releases the lock and closes the lock file. Unlocking a lock
// that was never acquired is a no-op.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}
	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return fmt.Errorf("funlock: %w", err)
	}
	err := fl.file.Close()
	fl.file = nil
	return err
}
