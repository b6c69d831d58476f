// Package orchestrator installs a package tree into a target directory and
// keeps it up to date.
//
// Every entry point runs the same per-invocation state machine:
//
//	Idle -> LockAcquired -> Scanning -> Copying -> MarkerWritten
//
// Any error after the lock is taken moves it through RollingBack to
// LockReleased; failing to take the lock ends in LockConflict. Expected
// failures are reported in the returned result, never as panics.
package orchestrator

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/backup"
	"github.com/arthur-debert/plugdeploy/pkg/config"
	"github.com/arthur-debert/plugdeploy/pkg/customization"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/lock"
	"github.com/arthur-debert/plugdeploy/pkg/paths"
	"github.com/arthur-debert/plugdeploy/pkg/scanner"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// Options tune a single invocation.
type Options struct {
	// Progress receives (current, total, phase) events.
	Progress types.ProgressFunc
	// ClearStaleLock removes a lock older than the stale threshold.
	ClearStaleLock bool
	// Force overwrites customized files during an upgrade. They are still
	// reported in CustomizedFiles.
	Force bool
	// PruneObsolete removes unmodified files the package no longer ships.
	PruneObsolete bool
}

// Orchestrator composes the scanner, detector, backup and lock managers.
// It holds no per-run state and is safe to reuse.
type Orchestrator struct {
	fs        filesystem.FS
	cfg       *config.Config
	layout    paths.Layout
	scanner   *scanner.Scanner
	detector  *customization.Detector
	backups   *backup.Manager
	locks     *lock.Manager
	audit     audit.Logger
	validator paths.Validator
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the configuration. The embedded defaults are used
// otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithAudit sets the audit sink.
func WithAudit(l audit.Logger) Option {
	return func(o *Orchestrator) { o.audit = l }
}

// WithClock sets the time source for marker timestamps and snapshot names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLockManager replaces the lock manager built from the configuration.
func WithLockManager(m *lock.Manager) Option {
	return func(o *Orchestrator) { o.locks = m }
}

// WithBackupManager replaces the backup manager built from the
// configuration.
func WithBackupManager(m *backup.Manager) Option {
	return func(o *Orchestrator) { o.backups = m }
}

// WithValidator replaces the path validator.
func WithValidator(v paths.Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// New creates an Orchestrator on fsys.
func New(fsys filesystem.FS, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		fs:        fsys,
		audit:     audit.Nop,
		validator: paths.Default,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	o.layout = o.cfg.Layout()

	sc, err := scanner.New(fsys,
		scanner.WithIgnore(o.cfg.Scan.Ignore...),
		scanner.WithReserved(o.layout),
		scanner.WithValidator(o.validator),
	)
	if err != nil {
		return nil, err
	}
	o.scanner = sc
	o.detector = customization.New(fsys)

	if o.locks == nil {
		o.locks = lock.New(fsys, o.layout,
			lock.WithTimeout(o.cfg.Lock.Timeout),
			lock.WithStaleAfter(o.cfg.Lock.StaleAfter),
			lock.WithPollInterval(o.cfg.Lock.PollInterval),
			lock.WithValidator(o.validator),
		)
	}
	if o.backups == nil {
		o.backups = backup.New(fsys, o.layout,
			backup.WithClock(o.now),
			backup.WithValidator(o.validator),
		)
	}
	return o, nil
}

// Locks returns the lock manager, for process-exit cleanup.
func (o *Orchestrator) Locks() *lock.Manager {
	return o.locks
}

// Backups returns the backup manager.
func (o *Orchestrator) Backups() *backup.Manager {
	return o.backups
}

// Layout returns the target layout in use.
func (o *Orchestrator) Layout() paths.Layout {
	return o.layout
}

// absPaths resolves the caller's arguments. Empty arguments are programmer
// errors.
func absPaths(op string, args ...string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "" {
			panic(fmt.Sprintf("orchestrator.%s: empty path argument %d", op, i))
		}
		abs, err := filepath.Abs(paths.ExpandHome(a))
		if err != nil {
			abs = filepath.Clean(a)
		}
		out[i] = abs
	}
	return out
}
