//go:build unix

package lock

import (
	"errors"
	"os"
	"syscall"
)

// processAlive probes the PID with signal 0. EPERM still means the
// process exists, just owned by someone else.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
