package paths

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
)

// maxPathLength is a common filesystem limit
const maxPathLength = 4096

// Validator resolves paths against an allowed root. The orchestrator
// consumes it through this interface so tests can substitute it.
type Validator interface {
	ValidatePath(path, allowedRoot string) (string, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(path, allowedRoot string) (string, error)

// ValidatePath implements Validator.
func (f ValidatorFunc) ValidatePath(path, allowedRoot string) (string, error) {
	return f(path, allowedRoot)
}

// Default is the Validator backed by ValidatePath.
var Default Validator = ValidatorFunc(ValidatePath)

// CheckPath performs basic validation on a path.
// It checks for:
// - Empty paths
// - Null bytes
// - Excessive path length
func CheckPath(path string) error {
	if path == "" {
		return errors.New(errors.ErrInvalidInput, "path cannot be empty")
	}

	if strings.Contains(path, "\x00") {
		return errors.New(errors.ErrInvalidInput, "path contains null bytes")
	}

	if len(path) > maxPathLength {
		return errors.New(errors.ErrInvalidInput, "path exceeds maximum length")
	}

	return nil
}

// ValidatePath resolves path against allowedRoot and returns the resolved
// absolute path. A relative path is taken relative to allowedRoot.
//
// It rejects paths that resolve outside allowedRoot, symlinks whose
// unresolvable target lies outside allowedRoot, and resolves symlinks that
// stay inside allowedRoot. Paths that do not exist yet are accepted when
// their deepest existing ancestor resolves inside the root.
func ValidatePath(path, allowedRoot string) (string, error) {
	if err := CheckPath(path); err != nil {
		return "", err
	}
	if err := CheckPath(allowedRoot); err != nil {
		return "", err
	}

	root, err := filepath.Abs(ExpandHome(allowedRoot))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot resolve root %s", allowedRoot)
	}
	root = filepath.Clean(root)

	candidate := ExpandHome(path)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	if !ContainsPath(root, candidate) {
		return "", securityError(path, allowedRoot, "path is outside the allowed root")
	}

	resolvedRoot, err := resolveExisting(root)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot resolve root %s", allowedRoot)
	}

	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot resolve %s", path)
	}

	if !ContainsPath(resolvedRoot, resolved) {
		return "", securityError(path, allowedRoot, "path resolves outside the allowed root").
			WithDetail("resolved", resolved)
	}

	return resolved, nil
}

func securityError(path, root, msg string) *errors.DeployError {
	return errors.Newf(errors.ErrSecurity, "%s: %s", msg, path).
		WithDetail("path", path).
		WithDetail("root", root)
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of p
// and re-appends the components that do not exist yet. A dangling symlink
// is resolved lexically from its link text.
func resolveExisting(p string) (string, error) {
	existing := p
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		resolved, err = resolveDangling(existing)
		if err != nil {
			return "", err
		}
	}

	return filepath.Join(append([]string{resolved}, rest...)...), nil
}

func resolveDangling(p string) (string, error) {
	info, err := os.Lstat(p)
	if err != nil {
		return "", err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return "", &fs.PathError{Op: "resolve", Path: p, Err: fs.ErrInvalid}
	}
	link, err := os.Readlink(p)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(link) {
		link = filepath.Join(filepath.Dir(p), link)
	}
	parent, err := resolveExisting(filepath.Dir(filepath.Clean(link)))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(link)), nil
}

// SanitizePath cleans a path after expanding the home directory.
func SanitizePath(path string) string {
	cleaned := filepath.Clean(ExpandHome(path))
	if cleaned == "" {
		return "."
	}
	return cleaned
}

// ContainsPath checks if child is contained within parent.
// Both paths are normalized before comparison.
func ContainsPath(parent, child string) bool {
	parent = SanitizePath(parent)
	child = SanitizePath(child)

	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Rel returns the slash-separated path of abs relative to root.
func Rel(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess,
			"cannot determine relative path from %s to %s", root, abs)
	}
	return filepath.ToSlash(rel), nil
}

// Join returns root joined with a slash-separated relative path.
func Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// IsHiddenPath returns true if the path represents a hidden file or directory.
func IsHiddenPath(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}
