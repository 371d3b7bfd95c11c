//go:build windows

package pidfile

import "os"

// processAlive relies on FindProcess opening a handle, which fails for exited processes
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	process.Release()
	return true
}
