package filesystem

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// CopyFile copies src to dst through fsys, creating dst's parent
// directories. When dst is a symlink it is unlinked first so the copy never
// writes through it. perm of zero keeps src's permission bits.
func CopyFile(fsys FS, src, dst string, perm fs.FileMode) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "copy", Path: src, Err: fs.ErrInvalid}
	}

	data, err := fsys.ReadFile(src)
	if err != nil {
		return err
	}

	if perm == 0 {
		perm = info.Mode().Perm()
	}

	if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", dst, err)
	}

	if linfo, err := fsys.Lstat(dst); err == nil && linfo.Mode()&fs.ModeSymlink != 0 {
		if err := fsys.Remove(dst); err != nil {
			return fmt.Errorf("failed to unlink symlink %s: %w", dst, err)
		}
	}

	if err := fsys.WriteFile(dst, data, perm); err != nil {
		return err
	}

	// WriteFile does not change the mode of an existing file.
	return fsys.Chmod(dst, perm)
}

// Exists reports whether name exists without following a final symlink.
func Exists(fsys FS, name string) bool {
	_, err := fsys.Lstat(name)
	return err == nil
}
