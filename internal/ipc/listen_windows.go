//go:build windows

package ipc

import "net"

// Windows has no Unix domain socket support we can rely on across
// versions, so the agent listens on a fixed loopback port instead. The
// socketPath argument is accepted for interface parity and ignored.
const loopbackAddr = "127.0.0.1:48215"

func Listen(_ string) (net.Listener, error) {
	return net.Listen("tcp", loopbackAddr)
}

func Dial(_ string) (net.Conn, error) {
	return net.DialTimeout("tcp", loopbackAddr, dialTimeout)
}

func CleanupSocket(_ string) {}
