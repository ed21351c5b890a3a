//go:build unix

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Listen binds the agent's Unix domain socket. A socket file left over
// from a previous run is removed first; the lockfile already guarantees
// no live owner.
func Listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("restricting socket permissions: %w", err)
	}
	return ln, nil
}

// Dial connects to a running agent's socket.
func Dial(socketPath string) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, dialTimeout)
}

// CleanupSocket removes the socket file after the listener is closed.
func CleanupSocket(socketPath string) {
	_ = os.Remove(socketPath)
}
