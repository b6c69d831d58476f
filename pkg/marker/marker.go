// Package marker reads and writes the installation marker kept at the root
// of a target tree.
package marker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// Load reads the marker at path. A missing marker is an ErrNotFound error.
func Load(fsys filesystem.FS, path string) (*types.Marker, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrNotFound, "no installation marker at %s", path).
				WithDetail("path", path)
		}
		return nil, errors.Wrapf(err, errors.ErrMarker, "cannot read marker %s", path).
			WithDetail("path", path)
	}

	var raw struct {
		types.Marker
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, errors.ErrMarker, "corrupt marker %s", path).
			WithDetail("path", path)
	}

	m := raw.Marker
	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrMarker, "corrupt marker %s", path).
			WithDetail("path", path)
	}
	m.Timestamp = ts
	return &m, nil
}

// parseTimestamp accepts RFC 3339 and zone-less ISO-8601 timestamps. The
// latter are read as local time.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}

// Exists reports whether a marker is present at path.
func Exists(fsys filesystem.FS, path string) bool {
	return filesystem.Exists(fsys, path)
}

// Write replaces the marker at path. The new content is written next to
// it and renamed into place so a crash never leaves a truncated marker.
func Write(fsys filesystem.FS, path string, m *types.Marker) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrMarker, "cannot encode marker")
	}
	data = append(data, '\n')

	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrMarker, "cannot create directory for marker %s", path).
			WithDetail("path", path)
	}

	tmp := path + ".tmp"
	if err := fsys.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrMarker, "cannot write marker %s", path).
			WithDetail("path", path)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return errors.Wrapf(err, errors.ErrMarker, "cannot replace marker %s", path).
			WithDetail("path", path)
	}
	return nil
}
