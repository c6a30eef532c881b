package flock

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	fl := New(path)
	if err := fl.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := fl.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestTryLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := New(path)
	if err := first.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = first.Unlock() }()

	second := New(path)
	ok, err := second.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("TryLock acquired a lock held by another handle")
	}
}

func TestLockTimeoutExpires(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	holder := New(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = holder.Unlock() }()

	waiter := New(path)
	start := time.Now()
	err := waiter.LockTimeout(100 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("LockTimeout err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("LockTimeout returned after %s, want >= 100ms", elapsed)
	}
}

func TestLockTimeoutAcquiresAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	holder := New(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = holder.Unlock()
	}()

	waiter := New(path)
	if err := waiter.LockTimeout(2 * time.Second); err != nil {
		t.Fatalf("LockTimeout after release: %v", err)
	}
	_ = waiter.Unlock()
}

func TestUnlockWithoutLock(t *testing.T) {
	fl := New(filepath.Join(t.TempDir(), "test.lock"))
	if err := fl.Unlock(); err != nil {
		t.Fatalf("Unlock on unheld lock: %v", err)
	}
}

func TestRelockAfterUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	fl := New(path)

	for i := 0; i < 3; i++ {
		if err := fl.Lock(); err != nil {
			t.Fatalf("Lock round %d: %v", i, err)
		}
		if err := fl.Unlock(); err != nil {
			t.Fatalf("Unlock round %d: %v", i, err)
		}
	}
}
