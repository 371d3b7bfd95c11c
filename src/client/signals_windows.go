//go:build windows

package client

import "os"

// reloadSignals is empty on Windows, which has no SIGHUP
func reloadSignals() []os.Signal {
	return nil
}
