package ledger

import (
	"fmt"
	"os"
	"time"
)

// DefaultLockTimeout is how long Lock waits before giving up: 300s.
const DefaultLockTimeout = 300 * time.Second

// FileLock is an advisory lock implemented with an O_EXCL sibling
// lockfile and exponential-backoff polling
// for systems lacking flock: "implement with O_EXCL lockfile + timeout".
// It is safe across processes (unlike in-process-only flock semantics)
// and is what every JSONLAppender append uses; checkpoint saves rely on
// atomic rename instead and take no lock.
type FileLock struct {
	path    string
	timeout time.Duration
	held    *os.File
}

// NewFileLock returns a lock guarding the given lockfile path (by
// convention, "<target>.lock").
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, timeout: DefaultLockTimeout}
}

// WithTimeout overrides the default 300s acquisition timeout.
func (l *FileLock) WithTimeout(d time.Duration) *FileLock {
	l.timeout = d
	return l
}

// Lock blocks (with exponential backoff, capped) until the lockfile is
// created or the timeout elapses.
func (l *FileLock) Lock() error {
	deadline := time.Now().Add(l.timeout)
	backoff := 5 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			l.held = f
			return nil
		}
		if !os.IsExist(err) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out acquiring lock %s after %s", l.path, l.timeout)
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// TryLock attempts to acquire the lock once, non-blocking, returning
// false rather than waiting if another holder already has it.
func (l *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	l.held = f
	return true, nil
}

// Unlock releases the lock by closing and removing the lockfile.
func (l *FileLock) Unlock() error {
	if l.held == nil {
		return nil
	}
	l.held.Close()
	err := os.Remove(l.path)
	l.held = nil
	return err
}
