package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/paths"
)

// Config is the decoded configuration.
type Config struct {
	Lock     LockConfig     `koanf:"lock"`
	Coverage CoverageConfig `koanf:"coverage"`
	Scan     ScanConfig     `koanf:"scan"`
	Target   TargetConfig   `koanf:"target"`
	Audit    AuditConfig    `koanf:"audit"`
	Output   OutputConfig   `koanf:"output"`
}

// LockConfig controls lock acquisition.
type LockConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	StaleAfter   time.Duration `koanf:"stale_after"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// CoverageConfig controls the acceptance threshold.
type CoverageConfig struct {
	Threshold float64 `koanf:"threshold"`
}

// ScanConfig controls the tree scanner.
type ScanConfig struct {
	Ignore []string `koanf:"ignore"`
}

// TargetConfig names the bookkeeping files inside a target tree.
type TargetConfig struct {
	MarkerFile string `koanf:"marker_file"`
	LockFile   string `koanf:"lock_file"`
	BackupsDir string `koanf:"backups_dir"`
}

// AuditConfig controls the audit sink.
type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Format string `koanf:"format"`
}

// Layout returns the target layout described by the configuration.
func (c *Config) Layout() paths.Layout {
	return paths.Layout{
		MarkerFile: c.Target.MarkerFile,
		LockFile:   c.Target.LockFile,
		BackupsDir: c.Target.BackupsDir,
	}.WithDefaults()
}

// AuditPath returns the configured audit log path or the XDG default.
func (c *Config) AuditPath() string {
	if c.Audit.Path != "" {
		return paths.ExpandHome(c.Audit.Path)
	}
	return paths.AuditLogPath()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Coverage.Threshold <= 0 || c.Coverage.Threshold > 100 {
		return fmt.Errorf("coverage.threshold must be in (0, 100], got %v", c.Coverage.Threshold)
	}
	if c.Lock.Timeout < 0 {
		return fmt.Errorf("lock.timeout must not be negative, got %s", c.Lock.Timeout)
	}
	if c.Lock.StaleAfter <= 0 {
		return fmt.Errorf("lock.stale_after must be positive, got %s", c.Lock.StaleAfter)
	}
	if c.Lock.PollInterval <= 0 {
		return fmt.Errorf("lock.poll_interval must be positive, got %s", c.Lock.PollInterval)
	}
	for _, name := range []string{c.Target.MarkerFile, c.Target.LockFile, c.Target.BackupsDir} {
		if err := paths.CheckPath(name); err != nil {
			return fmt.Errorf("target file names: %w", err)
		}
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("target file names must be plain names, got %q", name)
		}
	}
	return nil
}
