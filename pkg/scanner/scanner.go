// Package scanner walks a package or target tree and reports the regular
// files it contains as slash-separated paths relative to the root.
package scanner

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/paths"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnore lists the cache and tooling paths never treated as content.
var DefaultIgnore = []string{
	"**/__pycache__/**",
	"**/.pytest_cache/**",
	"**/node_modules/**",
	"**/.DS_Store",
	"**/*.pyc",
	".git/**",
}

// Scanner lists files under a root.
type Scanner struct {
	fs        filesystem.FS
	ignore    []string
	reserved  map[string]bool
	validator paths.Validator
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithIgnore replaces the ignore patterns.
func WithIgnore(patterns ...string) Option {
	return func(s *Scanner) {
		s.ignore = append([]string(nil), patterns...)
	}
}

// WithReserved skips the bookkeeping entries of layout at the root.
func WithReserved(layout paths.Layout) Option {
	return func(s *Scanner) {
		for _, name := range layout.WithDefaults().Reserved() {
			s.reserved[name] = true
		}
	}
}

// WithValidator sets the validator deciding whether a symlink stays
// inside the root.
func WithValidator(v paths.Validator) Option {
	return func(s *Scanner) {
		s.validator = v
	}
}

// New creates a Scanner. The default layout's bookkeeping entries are
// always reserved.
func New(fsys filesystem.FS, opts ...Option) (*Scanner, error) {
	s := &Scanner{
		fs:        fsys,
		ignore:    append([]string(nil), DefaultIgnore...),
		reserved:  make(map[string]bool),
		validator: paths.Default,
	}
	WithReserved(paths.DefaultLayout())(s)
	for _, opt := range opts {
		opt(s)
	}
	for _, pattern := range s.ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Newf(errors.ErrInvalidInput, "invalid ignore pattern %q", pattern).
				WithDetail("pattern", pattern)
		}
	}
	return s, nil
}

// Scan returns every regular file under root. A missing root yields an
// empty set. Symlinks are never followed; a symlink to a file is listed
// only when it resolves inside root.
func (s *Scanner) Scan(root string) (types.PathSet, error) {
	logger := logging.GetLogger("scanner")
	result := types.NewPathSet()

	info, err := s.fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("root", root).Msg("Root does not exist, empty scan")
			return result, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrInvalidInput, "%s is not a directory", root).
			WithDetail("root", root)
	}

	if err := s.walk(root, "", result); err != nil {
		return nil, err
	}

	logger.Debug().Str("root", root).Int("files", result.Len()).Msg("Scan complete")
	return result, nil
}

// ScanCategories is Scan restricted to files inside category directories.
func (s *Scanner) ScanCategories(root string) (types.PathSet, error) {
	all, err := s.Scan(root)
	if err != nil {
		return nil, err
	}
	return all.Filter(func(rel string) bool {
		_, ok := types.CategoryOf(rel)
		return ok
	}), nil
}

func (s *Scanner) walk(root, relDir string, result types.PathSet) error {
	dir := filepath.Join(root, filepath.FromSlash(relDir))
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read directory %s", dir).
			WithDetail("path", dir)
	}

	for _, entry := range entries {
		rel := path.Join(relDir, entry.Name())
		if s.ignored(rel) {
			continue
		}

		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			if s.acceptSymlink(root, rel) {
				result.Add(rel)
			}
		case entry.IsDir():
			if err := s.walk(root, rel, result); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			result.Add(rel)
		}
	}
	return nil
}

func (s *Scanner) acceptSymlink(root, rel string) bool {
	logger := logging.GetLogger("scanner")
	abs := filepath.Join(root, filepath.FromSlash(rel))

	resolved, err := s.validator.ValidatePath(abs, root)
	if err != nil {
		logger.Warn().Str("path", rel).Err(err).Msg("Skipping symlink outside root")
		return false
	}
	info, err := s.fs.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		logger.Debug().Str("path", rel).Msg("Skipping symlink that is not a regular file")
		return false
	}
	return true
}

func (s *Scanner) ignored(rel string) bool {
	first, _, _ := strings.Cut(rel, "/")
	if s.reserved[first] {
		return true
	}
	for _, pattern := range s.ignore {
		if match(pattern, rel) {
			return true
		}
		if strings.Contains(pattern, "/") {
			continue
		}
		for _, segment := range strings.Split(rel, "/") {
			if match(pattern, segment) {
				return true
			}
		}
	}
	return false
}

func match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
