// Package customization tells plugin-authored changes apart from user
// edits in a target tree.
//
// A file that exists on both sides is compared against the hash recorded
// when it was installed. When no hash was recorded (older markers) the
// file's mtime is compared against the install timestamp instead. Either
// way a file only counts as customized when it also differs from the
// incoming package version; a user edit that matches the new release is
// safe to overwrite.
package customization

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// Input describes one path to classify.
type Input struct {
	// Rel is the slash-separated path relative to both roots.
	Rel string
	// TargetPath is the absolute installed path, already validated.
	TargetPath string
	// SourcePath is the absolute package path. Empty when the package no
	// longer ships Rel.
	SourcePath string
	// Baseline is the install timestamp from the marker.
	Baseline time.Time
	// Recorded is the sha256 written at install time, if any.
	Recorded string
	// Known reports whether a previous install wrote Rel.
	Known bool
}

// Detector classifies files.
type Detector struct {
	fs filesystem.FS
}

// New creates a Detector.
func New(fsys filesystem.FS) *Detector {
	return &Detector{fs: fsys}
}

// Hash returns the hex sha256 of the file content.
func (d *Detector) Hash(path string) (string, error) {
	data, err := d.fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes returns the hex sha256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Classify returns the verdict for one path.
func (d *Detector) Classify(in Input) (types.Classification, error) {
	inTarget := d.exists(in.TargetPath)
	inSource := in.SourcePath != "" && d.exists(in.SourcePath)

	switch {
	case inSource && !inTarget:
		return types.NewFromPlugin, nil
	case inTarget && !inSource:
		if in.Known {
			return types.Obsolete, nil
		}
		return types.NewFromUser, nil
	case !inTarget && !inSource:
		return 0, errors.Newf(errors.ErrInvalidInput, "%s exists in neither tree", in.Rel).
			WithDetail("path", in.Rel)
	}

	current, err := d.Hash(in.TargetPath)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", in.TargetPath).
			WithDetail("path", in.Rel)
	}
	incoming, err := d.Hash(in.SourcePath)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", in.SourcePath).
			WithDetail("path", in.Rel)
	}
	if current == incoming {
		return types.Unmodified, nil
	}

	if in.Recorded != "" {
		if current != in.Recorded {
			return types.UserModified, nil
		}
		return types.Unmodified, nil
	}

	info, err := d.fs.Stat(in.TargetPath)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", in.TargetPath).
			WithDetail("path", in.Rel)
	}
	if info.ModTime().After(in.Baseline) {
		return types.UserModified, nil
	}
	return types.Unmodified, nil
}

func (d *Detector) exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := d.fs.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		// Unreadable entries count as present so they are never treated
		// as free to overwrite.
		return true
	}
	return err == nil
}

// TreeInput describes a whole upgrade.
type TreeInput struct {
	SourceRoot string
	TargetRoot string
	// Source is the set of paths the new package ships.
	Source types.PathSet
	// Target is the set of paths currently in the target tree.
	Target types.PathSet
	// Marker is the previous install record; nil for none.
	Marker *types.Marker
}

// Plan groups every path of an upgrade by classification.
type Plan struct {
	entries map[string]types.Classification
	// unreadable holds paths that could not be classified for lack of
	// permission, with the cause.
	unreadable map[string]error
}

// Unreadable returns the sorted paths skipped because a permission error
// prevented classifying them. They appear under no classification.
func (p *Plan) Unreadable() []string {
	set := types.NewPathSet()
	for rel := range p.unreadable {
		set.Add(rel)
	}
	return set.Sorted()
}

// Cause returns the error that made rel unreadable, or nil.
func (p *Plan) Cause(rel string) error {
	return p.unreadable[rel]
}

// Of returns the classification of rel.
func (p *Plan) Of(rel string) (types.Classification, bool) {
	c, ok := p.entries[rel]
	return c, ok
}

// Paths returns the sorted paths classified as c.
func (p *Plan) Paths(c types.Classification) []string {
	set := types.NewPathSet()
	for rel, got := range p.entries {
		if got == c {
			set.Add(rel)
		}
	}
	return set.Sorted()
}

// Len returns the number of classified paths.
func (p *Plan) Len() int {
	return len(p.entries)
}

// ClassifyTree classifies every path in the union of both trees.
func (d *Detector) ClassifyTree(in TreeInput) (*Plan, error) {
	logger := logging.GetLogger("customization")
	plan := &Plan{
		entries:    make(map[string]types.Classification),
		unreadable: make(map[string]error),
	}

	var baseline time.Time
	if in.Marker != nil {
		baseline = in.Marker.Timestamp
	}

	for _, rel := range in.Source.Union(in.Target).Sorted() {
		item := Input{
			Rel:        rel,
			TargetPath: filepath.Join(in.TargetRoot, filepath.FromSlash(rel)),
			Baseline:   baseline,
			Recorded:   in.Marker.Checksum(rel),
			Known:      in.Marker.Known(rel),
		}
		if in.Source.Has(rel) {
			item.SourcePath = filepath.Join(in.SourceRoot, filepath.FromSlash(rel))
		}

		c, err := d.Classify(item)
		if err != nil {
			if errors.IsPermission(err) {
				logger.Warn().Str("path", rel).Err(err).Msg("Cannot classify unreadable file")
				plan.unreadable[rel] = err
				continue
			}
			return nil, err
		}
		plan.entries[rel] = c
	}

	logger.Debug().
		Int("unmodified", len(plan.Paths(types.Unmodified))).
		Int("user_modified", len(plan.Paths(types.UserModified))).
		Int("new_from_plugin", len(plan.Paths(types.NewFromPlugin))).
		Int("new_from_user", len(plan.Paths(types.NewFromUser))).
		Int("obsolete", len(plan.Paths(types.Obsolete))).
		Int("unreadable", len(plan.unreadable)).
		Msg("Classified upgrade")
	return plan, nil
}

// Pristine reports whether the target file still matches what was
// installed: its recorded hash when present, otherwise an mtime not after
// the baseline. Only pristine obsolete files may be pruned.
func (d *Detector) Pristine(in Input) (bool, error) {
	if in.Recorded != "" {
		current, err := d.Hash(in.TargetPath)
		if err != nil {
			return false, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", in.TargetPath).
				WithDetail("path", in.Rel)
		}
		return current == in.Recorded, nil
	}
	info, err := d.fs.Stat(in.TargetPath)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", in.TargetPath).
			WithDetail("path", in.Rel)
	}
	return !in.Baseline.IsZero() && !info.ModTime().After(in.Baseline), nil
}
