//go:build !windows

package client

import (
	"os"
	"syscall"
)

// reloadSignals are the signals that make watch re-read its config file
func reloadSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP}
}
