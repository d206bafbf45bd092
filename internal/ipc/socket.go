package ipc

import (
	"path/filepath"

	"mailroom/internal/config"
)

// SocketPath returns the daemon control socket location for a config.
func SocketPath(cfg *config.Config) string {
	if cfg == nil {
		return "mailroomd.sock"
	}
	return filepath.Join(cfg.Paths.DataDir, "mailroomd.sock")
}
