// Package runlock guarantees at most one orchestration pass per host.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned by Acquire when another pass holds the lock.
var ErrHeld = errors.New("another pass is already running")

// Lock is an advisory file lock.
type Lock struct {
	path string
	lock *flock.Flock
}

func New(path string) *Lock {
	return &Lock{path: path, lock: flock.New(path)}
}

// TryLock acquires the lock without blocking and reports whether it did.
func (l *Lock) TryLock() (bool, error) {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("ensure lock directory: %w", err)
		}
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return ok, nil
}

// Acquire is TryLock returning ErrHeld when the lock is taken.
func (l *Lock) Acquire() error {
	ok, err := l.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

func (l *Lock) Unlock() error {
	return l.lock.Unlock()
}

func (l *Lock) Path() string {
	return l.path
}
