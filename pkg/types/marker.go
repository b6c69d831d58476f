package types

import "time"

// Marker records the last successful install into a target tree. It is
// replaced, never merged, on each successful upgrade.
type Marker struct {
	Version        string    `json:"version"`
	Timestamp      time.Time `json:"timestamp"`
	FilesInstalled int       `json:"files_installed"`
	Coverage       float64   `json:"coverage"`

	// Source is the package root the files were installed from.
	Source string `json:"source,omitempty"`

	// Files maps each installed relative path to the sha256 of the content
	// written. Markers from older installs may not carry it.
	Files map[string]string `json:"files,omitempty"`
}

// Known reports whether rel was installed by a previous run.
func (m *Marker) Known(rel string) bool {
	if m == nil || m.Files == nil {
		return false
	}
	_, ok := m.Files[rel]
	return ok
}

// Checksum returns the recorded hash for rel, or "" when none is recorded.
func (m *Marker) Checksum(rel string) string {
	if m == nil {
		return ""
	}
	return m.Files[rel]
}
