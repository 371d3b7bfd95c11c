// Package pidfile guards long-running commands against a second instance
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrRunning is returned by Create when a live process owns the PID file
var ErrRunning = errors.New("already running")

// PIDFile represents a PID file for process management
type PIDFile struct {
	Path string
}

// New creates a PID file manager for path
func New(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Check reports whether the PID file names a live process. Stale or
// unreadable PID files are removed.
func (p *PIDFile) Check() (bool, int, error) {
	data, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read PID file %s: %w", p.Path, err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		os.Remove(p.Path)
		return false, 0, nil
	}

	if !processAlive(pid) {
		os.Remove(p.Path)
		return false, pid, nil
	}
	return true, pid, nil
}

// Create writes the current process ID, failing with ErrRunning when another
// live process holds the file
func (p *PIDFile) Create() error {
	running, existingPID, err := p.Check()
	if err != nil {
		return err
	}
	if running && existingPID != os.Getpid() {
		return fmt.Errorf("%w with PID %d (%s)", ErrRunning, existingPID, p.Path)
	}

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create PID directory %s: %w", dir, err)
	}

	content := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(p.Path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", p.Path, err)
	}
	return nil
}

// Remove removes the PID file
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", p.Path, err)
	}
	return nil
}
