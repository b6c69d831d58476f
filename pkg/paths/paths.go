package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Environment variable names
const (
	// EnvConfigDir overrides the XDG config directory for plugdeploy
	EnvConfigDir = "PLUGDEPLOY_CONFIG_DIR"

	// EnvStateDir overrides the XDG state directory for plugdeploy
	EnvStateDir = "PLUGDEPLOY_STATE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default names inside a target tree. They can be overridden through
// configuration but must stay stable across releases, since the marker of
// an existing install is found by name.
const (
	AppDirName = "plugdeploy"

	DefaultMarkerFile = ".plugdeploy-install.json"
	DefaultLockFile   = ".plugdeploy.lock"
	DefaultBackupsDir = ".plugdeploy-backups"

	// ProjectConfigFile is the per-target configuration file
	ProjectConfigFile = ".plugdeploy.toml"

	// UserConfigFile is the configuration file under the XDG config dir
	UserConfigFile = "config.toml"

	// AuditLogFile is the audit trail under the XDG state dir
	AuditLogFile = "audit.log"
)

// Layout names the orchestrator's bookkeeping files inside a target tree.
type Layout struct {
	MarkerFile string
	LockFile   string
	BackupsDir string
}

// DefaultLayout returns the layout with the default names.
func DefaultLayout() Layout {
	return Layout{
		MarkerFile: DefaultMarkerFile,
		LockFile:   DefaultLockFile,
		BackupsDir: DefaultBackupsDir,
	}
}

// WithDefaults fills empty fields with the default names.
func (l Layout) WithDefaults() Layout {
	d := DefaultLayout()
	if l.MarkerFile == "" {
		l.MarkerFile = d.MarkerFile
	}
	if l.LockFile == "" {
		l.LockFile = d.LockFile
	}
	if l.BackupsDir == "" {
		l.BackupsDir = d.BackupsDir
	}
	return l
}

// MarkerPath returns the installation marker path for target.
func (l Layout) MarkerPath(target string) string {
	return filepath.Join(target, l.MarkerFile)
}

// LockPath returns the lock sentinel path for target.
func (l Layout) LockPath(target string) string {
	return filepath.Join(target, l.LockFile)
}

// BackupsPath returns the directory holding snapshots for target.
func (l Layout) BackupsPath(target string) string {
	return filepath.Join(target, l.BackupsDir)
}

// Reserved returns the relative names the scanner must never report as
// package or user content.
func (l Layout) Reserved() []string {
	return []string{l.MarkerFile, l.LockFile, l.BackupsDir}
}

// ConfigDir returns the XDG config directory for plugdeploy
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(xdg.ConfigHome, AppDirName)
}

// StateDir returns the XDG state directory for plugdeploy
func StateDir() string {
	if dir := os.Getenv(EnvStateDir); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(xdg.StateHome, AppDirName)
}

// UserConfigPath returns the user-level configuration file path.
func UserConfigPath() string {
	return filepath.Join(ConfigDir(), UserConfigFile)
}

// AuditLogPath returns the default audit trail path.
func AuditLogPath() string {
	return filepath.Join(StateDir(), AuditLogFile)
}

// ExpandHome expands ~ to the home directory
func ExpandHome(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = os.Getenv(EnvHome)
			if homeDir == "" {
				return path
			}
		}

		if len(path) == 1 {
			return homeDir
		}

		if path[1] == '/' || path[1] == filepath.Separator {
			return filepath.Join(homeDir, path[2:])
		}

		// ~something (not the user's home)
		return path
	}

	return path
}
