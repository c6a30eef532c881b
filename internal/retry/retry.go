// Package retry provides a small retry-with-backoff combinator for
// transient infrastructure errors, kept separate from business logic.
package retry

import (
	"errors"
	"syscall"
	"time"
)

// Defaults used by the spec persistence path for atomic-rename retries.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 50 * time.Millisecond
)

// Do invokes fn up to attempts times, sleeping baseDelay, 2*baseDelay,
// 4*baseDelay, ... between attempts. A non-retriable error (per the
// predicate) is returned immediately; the last error is returned when
// attempts are exhausted.
func Do(attempts int, baseDelay time.Duration, retriable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var last error
	delay := baseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		last = fn()
		if last == nil {
			return nil
		}
		if retriable != nil && !retriable(last) {
			return last
		}
		if attempt == attempts-1 {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	return last
}

// IsTransientFileError reports whether err looks like a transient
// file-sharing failure: another process briefly holding a handle on a file
// being renamed or removed. On Windows these surface as access-denied or
// sharing-violation errors; on POSIX systems the same class shows up as
// EACCES/EBUSY/EAGAIN.
func IsTransientFileError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EAGAIN)
}
