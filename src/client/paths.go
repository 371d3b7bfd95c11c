package client

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Platform-specific directory paths for probe configuration and logs

const (
	projectOrg  = "apimgr"
	projectName = "weather-probe"
)

// CLIConfigDir returns the config directory:
// ~/.config/apimgr/weather-probe/ (Unix) or %APPDATA%\apimgr\weather-probe\ (Windows)
func CLIConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), projectOrg, projectName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, projectOrg, projectName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", projectOrg, projectName)
}

// CLILogDir returns the log directory:
// ~/.local/log/apimgr/weather-probe/ (Unix) or %LOCALAPPDATA%\apimgr\weather-probe\log\ (Windows)
func CLILogDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), projectOrg, projectName, "log")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "log", projectOrg, projectName)
}

// CLIConfigFile returns the default config file path
func CLIConfigFile() string {
	return filepath.Join(CLIConfigDir(), "cli.yml")
}

// CLILogFile returns the default log file path
func CLILogFile() string {
	return filepath.Join(CLILogDir(), "probe.log")
}

// EnsureDir creates dir with user-only permissions
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return NewConfigError(fmt.Sprintf("failed to create directory %s: %v", dir, err))
	}
	if err := setDirPermissions(dir); err != nil {
		return NewConfigError(fmt.Sprintf("failed to set permissions on %s: %v", dir, err))
	}
	return nil
}
