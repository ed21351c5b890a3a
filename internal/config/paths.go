package config

import (
	"os"
	"path/filepath"
)

const appDirName = "opencode-token-meter"

// BaseDir returns the directory holding the database, socket, lockfile,
// and trigger marker.
func BaseDir() string {
	if dir := os.Getenv("OCTM_DATA_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appDirName)
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appDirName)
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DBPath returns the index database path.
func DBPath() string {
	return filepath.Join(BaseDir(), "index.db")
}

// SocketPath returns the agent IPC socket path.
func SocketPath() string {
	return filepath.Join(BaseDir(), "agent.sock")
}

// LockPath returns the single-instance lockfile path.
func LockPath() string {
	return filepath.Join(BaseDir(), "agent.lock")
}

// TriggerPath returns the refresh trigger marker path. The marker is
// written by the UI process and consumed by the agent.
func TriggerPath() string {
	return filepath.Join(BaseDir(), "refresh_trigger")
}

// DefaultMessageRoot returns the OpenCode per-session message storage tree.
func DefaultMessageRoot() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "opencode", "storage", "message")
}

// MessageRoot resolves the message root, honoring the config override.
func (c Config) MessageRoot() string {
	if c.General.MessageRoot != "" {
		return c.General.MessageRoot
	}
	return DefaultMessageRoot()
}
