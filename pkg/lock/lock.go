// Package lock guards a target tree against concurrent runs with a
// zero-byte sentinel file created exclusively inside the target.
//
// A held lock makes Acquire poll until its timeout and then fail with an
// ErrLockConflict error. A lock older than the stale threshold is most
// likely left over from a crashed run; it is only removed when the caller
// explicitly asks for it.
package lock

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/paths"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultStaleAfter   = 30 * time.Minute
	DefaultPollInterval = 250 * time.Millisecond
)

// Clock is the time source used for lock ages and polling.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Manager acquires and releases target locks.
type Manager struct {
	fs           filesystem.FS
	layout       paths.Layout
	timeout      time.Duration
	staleAfter   time.Duration
	pollInterval time.Duration
	clock        Clock
	validator    paths.Validator

	mu   sync.Mutex
	held map[string]*Lock
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout bounds how long Acquire waits for a held lock. Zero fails
// fast.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithStaleAfter sets the age after which a lock counts as stale.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) { m.staleAfter = d }
}

// WithPollInterval sets how often a held lock is re-checked.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithClock replaces the time source.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithValidator replaces the validator that keeps the lock file inside
// its target.
func WithValidator(v paths.Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// New creates a Manager.
func New(fsys filesystem.FS, layout paths.Layout, opts ...Option) *Manager {
	m := &Manager{
		fs:           fsys,
		layout:       layout.WithDefaults(),
		timeout:      DefaultTimeout,
		staleAfter:   DefaultStaleAfter,
		pollInterval: DefaultPollInterval,
		clock:        realClock{},
		validator:    paths.Default,
		held:         make(map[string]*Lock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lock is a held target lock.
type Lock struct {
	mgr    *Manager
	path   string
	target string

	// ClearedStale is set when acquiring removed a stale lock first.
	ClearedStale bool
	// StaleAge is the age of the cleared stale lock.
	StaleAge time.Duration
	// CreatedDirs lists the target directory and ancestors Acquire had to
	// create, deepest first.
	CreatedDirs []string

	once sync.Once
	err  error
}

// Path returns the sentinel file path.
func (l *Lock) Path() string { return l.path }

// Target returns the locked target directory.
func (l *Lock) Target() string { return l.target }

// RemoveCreatedDirs removes the directories Acquire created when they are
// empty. Call it after Release on a run that left nothing behind.
func (l *Lock) RemoveCreatedDirs() {
	for _, dir := range l.CreatedDirs {
		if err := l.mgr.fs.Remove(dir); err != nil {
			// Not empty: the run left content behind, and so do its parents.
			return
		}
	}
}

// Release removes the sentinel. Calling it more than once is safe.
func (l *Lock) Release() error {
	l.once.Do(func() {
		l.mgr.mu.Lock()
		delete(l.mgr.held, l.path)
		l.mgr.mu.Unlock()

		if err := l.mgr.fs.Remove(l.path); err != nil && !os.IsNotExist(err) {
			l.err = errors.Wrapf(err, errors.ErrFileAccess, "cannot remove lock %s", l.path).
				WithDetail("lock_path", l.path)
			return
		}
		logger := logging.GetLogger("lock")
		logger.Debug().Str("lock_path", l.path).Msg("Lock released")
	})
	return l.err
}

// Info describes the lock state of a target.
type Info struct {
	Path    string        `json:"path"`
	Held    bool          `json:"held"`
	ModTime time.Time     `json:"mod_time,omitempty"`
	Age     time.Duration `json:"age,omitempty"`
	Stale   bool          `json:"stale"`
}

// Acquire takes the lock of target, creating target when missing. When
// the lock is held it polls until the timeout. A stale lock is removed
// only when clearStale is set; otherwise the conflict error carries
// stale=true so the caller can ask for confirmation.
func (m *Manager) Acquire(target string, clearStale bool) (*Lock, error) {
	logger := logging.GetLogger("lock")
	path := m.layout.LockPath(target)

	var created []string
	for dir := filepath.Clean(target); !filesystem.Exists(m.fs, dir); dir = filepath.Dir(dir) {
		created = append(created, dir)
		if filepath.Dir(dir) == dir {
			break
		}
	}
	if err := m.fs.MkdirAll(target, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "cannot create target %s", target).
			WithDetail("target", target)
	}

	lock := &Lock{mgr: m, path: path, target: target, CreatedDirs: created}
	if _, err := m.validator.ValidatePath(path, target); err != nil {
		lock.RemoveCreatedDirs()
		return nil, err
	}
	deadline := m.clock.Now().Add(m.timeout)

	for {
		f, err := m.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_ = f.Close()
			m.mu.Lock()
			m.held[path] = lock
			m.mu.Unlock()
			logger.Debug().Str("lock_path", path).Msg("Lock acquired")
			return lock, nil
		}
		if !os.IsExist(err) {
			code := errors.ErrFileAccess
			if os.IsPermission(err) {
				code = errors.ErrPermission
			}
			return nil, errors.Wrapf(err, code, "cannot create lock %s", path).
				WithDetail("lock_path", path)
		}

		info, err := m.Inspect(target)
		if err != nil {
			return nil, err
		}
		if !info.Held {
			// Released between our create and stat; try again at once.
			continue
		}

		if info.Stale {
			if !clearStale {
				return nil, conflict(info)
			}
			logger.Warn().
				Str("lock_path", path).
				Dur("age", info.Age).
				Msg("Clearing stale lock")
			if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot clear stale lock %s", path).
					WithDetail("lock_path", path)
			}
			lock.ClearedStale = true
			lock.StaleAge = info.Age
			continue
		}

		if !m.clock.Now().Before(deadline) {
			return nil, conflict(info)
		}
		logger.Debug().Str("lock_path", path).Msg("Lock held, waiting")
		m.clock.Sleep(m.pollInterval)
	}
}

func conflict(info Info) *errors.DeployError {
	age := info.Age.Round(time.Second)
	msg := "target is locked by another run"
	if info.Stale {
		msg = "target is locked by a stale lock, probably left by a crashed run"
	}
	return errors.Newf(errors.ErrLockConflict, "%s (lock %s, age %s)", msg, info.Path, age).
		WithDetail("lock_path", info.Path).
		WithDetail("age", age.String()).
		WithDetail("stale", info.Stale)
}

// Inspect reports the lock state of target without changing it.
func (m *Manager) Inspect(target string) (Info, error) {
	path := m.layout.LockPath(target)
	info := Info{Path: path}

	fi, err := m.fs.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, errors.Wrapf(err, errors.ErrFileAccess, "cannot inspect lock %s", path).
			WithDetail("lock_path", path)
	}

	info.Held = true
	info.ModTime = fi.ModTime()
	info.Age = m.clock.Now().Sub(fi.ModTime())
	if info.Age < 0 {
		info.Age = 0
	}
	info.Stale = info.Age > m.staleAfter
	return info, nil
}

// Clear removes the lock of target regardless of its age. It is the
// operator's explicit override.
func (m *Manager) Clear(target string) error {
	path := m.layout.LockPath(target)
	if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot clear lock %s", path).
			WithDetail("lock_path", path)
	}
	logger := logging.GetLogger("lock")
	logger.Warn().Str("lock_path", path).Msg("Lock cleared by operator")
	return nil
}

// ReleaseAll releases every lock this Manager still holds. It is meant for
// process-exit cleanup.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	locks := make([]*Lock, 0, len(m.held))
	for _, l := range m.held {
		locks = append(locks, l)
	}
	m.mu.Unlock()

	for _, l := range locks {
		if err := l.Release(); err != nil {
			logger := logging.GetLogger("lock")
			logger.Error().Err(err).Msg("Failed to release lock on exit")
		}
	}
}
