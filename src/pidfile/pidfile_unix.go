//go:build !windows

package pidfile

import (
	"errors"
	"os"
	"syscall"
)

// processAlive sends signal 0, which checks existence without delivering anything
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	// EPERM means the process exists but belongs to someone else
	return err == nil || errors.Is(err, syscall.EPERM)
}
