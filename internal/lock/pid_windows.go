//go:build windows

package lock

import "os"

// processAlive reports whether the PID maps to a running process.
// FindProcess only fails on Windows when the process does not exist.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}
