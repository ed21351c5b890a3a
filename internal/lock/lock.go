// Package lock provides a PID-file lock so only one agent instance runs
// per user.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrHeld reports that a live process already holds the lock.
var ErrHeld = errors.New("agent already running")

// Lock is a PID file with liveness checking. A file left behind by a
// crashed process is detected as stale and reclaimed.
type Lock struct {
	path string
}

func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire claims the lock for the current process. Returns ErrHeld
// (wrapped with the owning PID) when another live process owns it.
func (l *Lock) Acquire() error {
	if pid, ok := l.ReadOwner(); ok {
		if processAlive(pid) {
			return fmt.Errorf("%w (pid %d)", ErrHeld, pid)
		}
		// Stale lock from a dead process.
		_ = os.Remove(l.path)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return fmt.Errorf("writing lock file: %w", err)
	}
	return nil
}

// Release removes the lock file if this process still owns it.
func (l *Lock) Release() {
	if pid, ok := l.ReadOwner(); ok && pid == os.Getpid() {
		_ = os.Remove(l.path)
	}
}

// ReadOwner returns the PID recorded in the lock file, if any.
func (l *Lock) ReadOwner() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// OwnerAlive reports whether the lock file names a running process.
func (l *Lock) OwnerAlive() (int, bool) {
	pid, ok := l.ReadOwner()
	if !ok {
		return 0, false
	}
	return pid, processAlive(pid)
}
