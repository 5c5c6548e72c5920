// Package paths resolves the on-disk locations used by the bootstrap:
// the install directory holding the application payload, the isolated
// Python environment under it, the completion marker, and the log
// directory. Every location honors an environment-variable override so
// tests and portable installs can relocate the whole tree.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/team-slide/y1setup/internal/branding"
)

// Directory and file name constants for the install-tree convention.
const (
	VenvDir      = "venv"
	LogsDir      = "logs"
	MarkerFile   = ".provisioned.json"
	PayloadEntry = "firmware_downloader.py"
)

// InstallRoot returns the install directory holding the application
// payload and the isolated interpreter environment. It checks the
// Y1SETUP_HOME environment variable first, then falls back to the
// platform convention: ~/Library/Application Support/Innioasis Updater
// on macOS, ~/.local/share/innioasis-updater elsewhere.
func InstallRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", branding.AppDisplayDir()), nil
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, branding.AppDirName()), nil
}

// VenvRoot returns the isolated Python environment directory under the
// install root.
func VenvRoot() (string, error) {
	root, err := InstallRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, VenvDir), nil
}

// MarkerPath returns the completion marker path. The marker lives under
// the venv so that destroying the environment also invalidates it.
func MarkerPath() (string, error) {
	venv, err := VenvRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(venv, MarkerFile), nil
}

// ConfigDir returns the tool's own config directory (~/.y1setup).
// Distinct from the install root: it survives uninstall of the payload.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// LogDir returns the directory for persistent provisioning logs.
// It checks Y1SETUP_LOGS first, then falls back to ~/.y1setup/logs.
func LogDir() string {
	if v := os.Getenv(branding.EnvVar("LOGS")); v != "" {
		return v
	}
	return filepath.Join(ConfigDir(), LogsDir)
}

// VenvPython returns the path of the venv's interpreter binary.
func VenvPython(venvRoot string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvRoot, "Scripts", "python.exe")
	}
	return filepath.Join(venvRoot, "bin", "python3")
}

// VenvPip returns the path of the venv's pip binary.
func VenvPip(venvRoot string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvRoot, "Scripts", "pip.exe")
	}
	return filepath.Join(venvRoot, "bin", "pip")
}

// LauncherScriptPath returns where the shell launcher is written
// (~/.local/bin/y1setup-launch on Linux, ~/bin on macOS).
func LauncherScriptPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "bin", branding.CLIName()+"-launch"), nil
	}
	return filepath.Join(home, ".local", "bin", branding.CLIName()+"-launch"), nil
}

// DesktopEntryPath returns the freedesktop .desktop file location for
// the current user. Only meaningful on Linux.
func DesktopEntryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "applications", branding.AppDirName()+".desktop"), nil
}
