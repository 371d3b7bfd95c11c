//go:build windows

package client

// setDirPermissions is a no-op on Windows: %APPDATA% and %LOCALAPPDATA%
// already restrict access to the user and children inherit their ACLs
func setDirPermissions(dir string) error {
	return nil
}
