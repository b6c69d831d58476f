package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Op names an FS method for fault injection.
type Op string

const (
	OpReadFile  Op = "ReadFile"
	OpWriteFile Op = "WriteFile"
	OpChmod     Op = "Chmod"
	OpMkdirAll  Op = "MkdirAll"
	OpRemove    Op = "Remove"
)

// FaultyFS wraps an FS and fails selected calls. It exists for tests that
// need to drive the orchestrator into its failure paths.
type FaultyFS struct {
	FS

	mu         sync.Mutex
	faults     map[Op]map[string]error
	writeLimit int
	writeErr   error
	writes     int
}

// NewFaulty wraps base.
func NewFaulty(base FS) *FaultyFS {
	return &FaultyFS{
		FS:         base,
		faults:     make(map[Op]map[string]error),
		writeLimit: -1,
	}
}

// FailOn makes op fail with err whenever it is called for path.
func (f *FaultyFS) FailOn(op Op, path string, err error) *FaultyFS {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faults[op] == nil {
		f.faults[op] = make(map[string]error)
	}
	f.faults[op][filepath.Clean(path)] = err
	return f
}

// FailWritesAfter lets n WriteFile calls succeed and fails every later one
// with err.
func (f *FaultyFS) FailWritesAfter(n int, err error) *FaultyFS {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeLimit = n
	f.writeErr = err
	f.writes = 0
	return f
}

// Reset clears every injected fault.
func (f *FaultyFS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[Op]map[string]error)
	f.writeLimit = -1
	f.writeErr = nil
	f.writes = 0
}

func (f *FaultyFS) fault(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if byPath, ok := f.faults[op]; ok {
		if err, ok := byPath[filepath.Clean(path)]; ok {
			return &fs.PathError{Op: string(op), Path: path, Err: err}
		}
	}
	return nil
}

func (f *FaultyFS) ReadFile(name string) ([]byte, error) {
	if err := f.fault(OpReadFile, name); err != nil {
		return nil, err
	}
	return f.FS.ReadFile(name)
}

func (f *FaultyFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if err := f.fault(OpWriteFile, name); err != nil {
		return err
	}
	f.mu.Lock()
	if f.writeLimit >= 0 {
		if f.writes >= f.writeLimit {
			err := f.writeErr
			f.mu.Unlock()
			return &fs.PathError{Op: string(OpWriteFile), Path: name, Err: err}
		}
		f.writes++
	}
	f.mu.Unlock()
	return f.FS.WriteFile(name, data, perm)
}

func (f *FaultyFS) Chmod(name string, mode fs.FileMode) error {
	if err := f.fault(OpChmod, name); err != nil {
		return err
	}
	return f.FS.Chmod(name, mode)
}

func (f *FaultyFS) MkdirAll(path string, perm fs.FileMode) error {
	if err := f.fault(OpMkdirAll, path); err != nil {
		return err
	}
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) Remove(name string) error {
	if err := f.fault(OpRemove, name); err != nil {
		return err
	}
	return f.FS.Remove(name)
}

// OpenFile is passed through; it is listed so the wrapper satisfies FS
// explicitly.
func (f *FaultyFS) OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	return f.FS.OpenFile(name, flag, perm)
}
