// Package volume manages the per-session workspace directories bind-mounted
// into session containers at /workspace.
package volume

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kandev/raworc/internal/common/logger"
)

// Manager creates and removes per-session workspace directories under a
// shared root.
type Manager struct {
	root   string
	logger *logger.Logger
}

// NewManager returns a Manager rooted at root (spec §6's volumesRoot,
// default /var/lib/raworc/volumes).
func NewManager(root string, log *logger.Logger) *Manager {
	return &Manager{root: root, logger: log}
}

// PathFor returns the host path for a session's workspace directory,
// whether or not it exists yet.
func (m *Manager) PathFor(sessionID string) string {
	return filepath.Join(m.root, sessionID)
}

// Ensure creates the session's workspace directory if absent and returns its
// host path, ready to be bind-mounted to /workspace.
func (m *Manager) Ensure(sessionID string) (string, error) {
	path := m.PathFor(sessionID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create workspace volume for session %s: %w", sessionID, err)
	}
	return path, nil
}

// Remove deletes the session's workspace directory and its contents.
// Removal is idempotent: a missing directory is not an error.
func (m *Manager) Remove(sessionID string) error {
	path := m.PathFor(sessionID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove workspace volume for session %s: %w", sessionID, err)
	}
	return nil
}
