package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")
	lk := New(path)

	if err := lk.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pid, ok := lk.ReadOwner()
	if !ok || pid != os.Getpid() {
		t.Errorf("owner = %d/%v, want own pid", pid, ok)
	}

	lk.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still present after Release")
	}
}

func TestAcquireBlockedByLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")

	// The current process is trivially alive.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		t.Fatal(err)
	}

	err := New(path).Acquire()
	if !errors.Is(err, ErrHeld) {
		t.Errorf("Acquire = %v, want ErrHeld", err)
	}
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")

	// PID 1 is init, but an out-of-range PID is reliably dead.
	if err := os.WriteFile(path, []byte("999999999"), 0o600); err != nil {
		t.Fatal(err)
	}

	lk := New(path)
	if err := lk.Acquire(); err != nil {
		t.Fatalf("stale lock not reclaimed: %v", err)
	}
	if pid, _ := lk.ReadOwner(); pid != os.Getpid() {
		t.Errorf("owner = %d, want own pid", pid)
	}
}

func TestAcquireIgnoresGarbageLockfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")
	if err := os.WriteFile(path, []byte("not a pid"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := New(path).Acquire(); err != nil {
		t.Fatalf("garbage lockfile not overwritten: %v", err)
	}
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")
	if err := os.WriteFile(path, []byte("999999999"), 0o600); err != nil {
		t.Fatal(err)
	}

	New(path).Release()
	if _, err := os.Stat(path); err != nil {
		t.Error("Release removed a lock owned by another pid")
	}
}
