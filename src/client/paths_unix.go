//go:build !windows

package client

import "os"

// setDirPermissions restricts directories to the owner on Unix systems
func setDirPermissions(dir string) error {
	return os.Chmod(dir, 0700)
}
