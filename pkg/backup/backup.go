// Package backup snapshots the package-managed files of a target tree and
// restores them on demand.
//
// Snapshots live inside the target, under the layout's backups directory,
// one directory per snapshot named backup-<UTC timestamp>. They are never
// deleted automatically.
package backup

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/paths"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

const (
	// Prefix starts every snapshot directory name.
	Prefix = "backup-"
	// TimeFormat is the UTC timestamp embedded in snapshot names.
	TimeFormat = "20060102-150405.000000"
)

// Snapshot describes one snapshot directory.
type Snapshot struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Created time.Time `json:"created"`
	// Symlink is set when the snapshot entry is a symlink. Such entries are
	// listed but never read through.
	Symlink bool `json:"symlink,omitempty"`
}

// Manager creates and restores snapshots.
type Manager struct {
	fs        filesystem.FS
	layout    paths.Layout
	now       func() time.Time
	validator paths.Validator
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used to name snapshots.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithValidator sets the path validator.
func WithValidator(v paths.Validator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// New creates a Manager.
func New(fsys filesystem.FS, layout paths.Layout, opts ...Option) *Manager {
	m := &Manager{
		fs:        fsys,
		layout:    layout.WithDefaults(),
		now:       time.Now,
		validator: paths.Default,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot copies files (relative to target) and the install marker into a
// new snapshot directory and returns its path and the number of files
// copied. Listed files that do not exist are skipped; an empty snapshot is
// valid.
func (m *Manager) Snapshot(target string, files types.PathSet) (string, int, error) {
	logger := logging.GetLogger("backup")

	dir, err := m.newSnapshotDir(target)
	if err != nil {
		return "", 0, err
	}

	toCopy := files.Sorted()
	if filesystem.Exists(m.fs, m.layout.MarkerPath(target)) {
		toCopy = append(toCopy, m.layout.MarkerFile)
	}

	count := 0
	for _, rel := range toCopy {
		src := filepath.Join(target, filepath.FromSlash(rel))
		if _, err := m.fs.Lstat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return dir, count, errors.Wrapf(err, errors.ErrBackup, "cannot stat %s", src).
				WithDetail("path", rel)
		}
		if _, err := m.validator.ValidatePath(src, target); err != nil {
			return dir, count, err
		}
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if err := filesystem.CopyFile(m.fs, src, dst, 0); err != nil {
			return dir, count, errors.Wrapf(err, errors.ErrBackup, "cannot back up %s", rel).
				WithDetail("path", rel).
				WithDetail("backup_dir", dir)
		}
		count++
	}

	logger.Info().Str("backup_dir", dir).Int("files", count).Msg("Snapshot created")
	return dir, count, nil
}

func (m *Manager) newSnapshotDir(target string) (string, error) {
	root := m.layout.BackupsPath(target)
	base := Prefix + m.now().UTC().Format(TimeFormat)

	dir := filepath.Join(root, base)
	for n := 1; filesystem.Exists(m.fs, dir); n++ {
		dir = filepath.Join(root, fmt.Sprintf("%s-%d", base, n))
	}

	if _, err := m.validator.ValidatePath(dir, target); err != nil {
		return "", err
	}
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrBackup, "cannot create snapshot directory %s", dir).
			WithDetail("backup_dir", dir)
	}
	return dir, nil
}

// Restore copies every file in backupDir over target and returns the
// number of files restored. Symlinks at a destination are unlinked rather
// than written through. A missing backupDir is an ErrRollback error.
func (m *Manager) Restore(backupDir, target string) (int, error) {
	logger := logging.GetLogger("backup")

	info, err := m.fs.Lstat(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Newf(errors.ErrRollback, "backup not found: %s", backupDir).
				WithDetail("backup_dir", backupDir)
		}
		return 0, errors.Wrapf(err, errors.ErrRollback, "cannot access backup %s", backupDir).
			WithDetail("backup_dir", backupDir)
	}
	if !info.IsDir() {
		return 0, errors.Newf(errors.ErrRollback, "backup is not a directory: %s", backupDir).
			WithDetail("backup_dir", backupDir)
	}

	var files []string
	if err := m.collect(backupDir, "", &files); err != nil {
		return 0, err
	}

	count := 0
	for _, rel := range files {
		dst := filepath.Join(target, filepath.FromSlash(rel))
		if _, err := m.validator.ValidatePath(filepath.Dir(dst), target); err != nil {
			return count, err
		}
		src := filepath.Join(backupDir, filepath.FromSlash(rel))
		if err := filesystem.CopyFile(m.fs, src, dst, 0); err != nil {
			return count, errors.Wrapf(err, errors.ErrRollback, "cannot restore %s", rel).
				WithDetail("path", rel).
				WithDetail("backup_dir", backupDir)
		}
		count++
	}

	logger.Info().Str("backup_dir", backupDir).Int("files", count).Msg("Snapshot restored")
	return count, nil
}

func (m *Manager) collect(root, relDir string, out *[]string) error {
	dir := filepath.Join(root, filepath.FromSlash(relDir))
	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrRollback, "cannot read backup directory %s", dir)
	}
	for _, entry := range entries {
		rel := path.Join(relDir, entry.Name())
		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			// Snapshots only ever contain regular files.
			continue
		case entry.IsDir():
			if err := m.collect(root, rel, out); err != nil {
				return err
			}
		default:
			*out = append(*out, rel)
		}
	}
	return nil
}

// Files lists the files held by a snapshot, relative to it.
func (m *Manager) Files(backupDir string) (types.PathSet, error) {
	var files []string
	if err := m.collect(backupDir, "", &files); err != nil {
		return nil, err
	}
	return types.NewPathSet(files...), nil
}

// List returns the snapshots of target, newest first.
func (m *Manager) List(target string) ([]Snapshot, error) {
	root := m.layout.BackupsPath(target)
	entries, err := m.fs.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrBackup, "cannot list backups in %s", root)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		isLink := entry.Type()&fs.ModeSymlink != 0
		if !entry.IsDir() && !isLink {
			continue
		}
		s := Snapshot{
			Name:    entry.Name(),
			Path:    filepath.Join(root, entry.Name()),
			Symlink: isLink,
		}
		s.Created, _ = parseName(entry.Name())
		snapshots = append(snapshots, s)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return newer(snapshots[i].Name, snapshots[j].Name)
	})
	return snapshots, nil
}

// Latest returns the newest snapshot directory of target.
func (m *Manager) Latest(target string) (string, error) {
	snapshots, err := m.List(target)
	if err != nil {
		return "", err
	}
	for _, s := range snapshots {
		if !s.Symlink {
			return s.Path, nil
		}
	}
	return "", errors.Newf(errors.ErrNotFound, "no backups in %s", m.layout.BackupsPath(target)).
		WithDetail("target", target)
}

// Remove deletes a snapshot. A symlinked snapshot is unlinked, never
// followed.
func (m *Manager) Remove(backupDir string) error {
	info, err := m.fs.Lstat(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrBackup, "cannot access %s", backupDir)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		if err := m.fs.Remove(backupDir); err != nil {
			return errors.Wrapf(err, errors.ErrBackup, "cannot unlink %s", backupDir)
		}
		return nil
	}
	if err := m.fs.RemoveAll(backupDir); err != nil {
		return errors.Wrapf(err, errors.ErrBackup, "cannot remove %s", backupDir)
	}
	return nil
}

// parseName extracts the timestamp and collision suffix of a snapshot name.
func parseName(name string) (time.Time, int) {
	rest := strings.TrimPrefix(name, Prefix)
	if len(rest) < len(TimeFormat) {
		return time.Time{}, 0
	}
	ts, err := time.Parse(TimeFormat, rest[:len(TimeFormat)])
	if err != nil {
		return time.Time{}, 0
	}
	n := 0
	if suffix := rest[len(TimeFormat):]; strings.HasPrefix(suffix, "-") {
		n, _ = strconv.Atoi(suffix[1:])
	}
	return ts, n
}

func newer(a, b string) bool {
	ta, na := parseName(a)
	tb, nb := parseName(b)
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	if na != nb {
		return na > nb
	}
	return a > b
}
