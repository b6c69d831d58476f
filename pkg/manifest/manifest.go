// Package manifest reads the declared file list of a package version.
//
// A manifest lives next to the package content as install_manifest.json,
// .yaml, .yml or .toml, either at the package root or in its config
// directory. Loading a manifest never touches the files it lists; use
// Verify with a scanned tree to compare the two.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// BaseName is the manifest file name without extension.
const BaseName = "install_manifest"

var extensions = []string{".json", ".yaml", ".yml", ".toml"}

// searchDirs are tried in order, relative to the source root.
var searchDirs = []string{".", "config"}

// document is the wire shape shared by every format.
type document struct {
	Version     interface{}         `json:"version" yaml:"version" toml:"version"`
	GeneratedAt interface{}         `json:"generated_at" yaml:"generated_at" toml:"generated_at"`
	Files       map[string][]string `json:"files" yaml:"files" toml:"files"`
}

// Find returns the path of the manifest inside sourceRoot.
func Find(fsys filesystem.FS, sourceRoot string) (string, error) {
	for _, dir := range searchDirs {
		for _, ext := range extensions {
			candidate := filepath.Join(sourceRoot, dir, BaseName+ext)
			info, err := fsys.Stat(candidate)
			if err == nil && info.Mode().IsRegular() {
				return candidate, nil
			}
		}
	}
	return "", errors.Newf(errors.ErrManifest, "no %s found in %s", BaseName, sourceRoot).
		WithDetail("source", sourceRoot)
}

// Load finds and parses the manifest of the package at sourceRoot.
func Load(fsys filesystem.FS, sourceRoot string) (*types.Manifest, error) {
	file, err := Find(fsys, sourceRoot)
	if err != nil {
		return nil, err
	}
	return LoadFile(fsys, file)
}

// LoadFile parses the manifest at file. The format follows the extension.
func LoadFile(fsys filesystem.FS, file string) (*types.Manifest, error) {
	logger := logging.GetLogger("manifest")

	data, err := fsys.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrManifest, "manifest %s not found", file)
		}
		return nil, errors.Wrapf(err, errors.ErrManifest, "cannot read manifest %s", file)
	}

	doc, err := decode(filepath.Ext(file), data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifest, "cannot parse manifest %s", file).
			WithDetail("file", file)
	}

	m, err := build(doc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifest, "invalid manifest %s", file).
			WithDetail("file", file)
	}
	m.Source = file

	logger.Debug().
		Str("file", file).
		Str("version", m.Version).
		Int("files", m.Count()).
		Msg("Loaded manifest")
	return m, nil
}

func decode(ext string, data []byte) (*document, error) {
	var doc document
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func build(doc *document) (*types.Manifest, error) {
	m := &types.Manifest{
		Version: scalarString(doc.Version),
		Files:   make(map[types.Category][]string),
	}

	generated, err := parseTime(doc.GeneratedAt)
	if err != nil {
		return nil, err
	}
	m.GeneratedAt = generated

	if doc.Files == nil {
		return nil, fmt.Errorf("missing files section")
	}

	seen := make(map[string]bool)
	// Iterate in category order so the first occurrence of a duplicate is
	// deterministic.
	for _, category := range types.AllCategories() {
		for _, raw := range doc.Files[category.String()] {
			rel, err := normalize(raw, category)
			if err != nil {
				return nil, err
			}
			if seen[rel] {
				continue
			}
			seen[rel] = true
			m.Files[category] = append(m.Files[category], rel)
		}
	}

	for key := range doc.Files {
		if _, err := types.ParseCategory(key); err != nil || strings.ToLower(key) != key {
			return nil, fmt.Errorf("unknown category %q", key)
		}
	}

	return m, nil
}

// normalize cleans a declared path and checks it stays inside its category.
func normalize(raw string, category types.Category) (string, error) {
	trimmed := strings.TrimSpace(filepath.ToSlash(raw))
	if trimmed == "" {
		return "", fmt.Errorf("empty path in category %s", category)
	}
	if path.IsAbs(trimmed) || filepath.IsAbs(raw) {
		return "", fmt.Errorf("absolute path %q in category %s", raw, category)
	}
	clean := path.Clean(trimmed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the package root", raw)
	}
	got, ok := types.CategoryOf(clean)
	if !ok || got != category {
		return "", fmt.Errorf("path %q is not inside the %s directory", raw, category)
	}
	return clean, nil
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func parseTime(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return val.UTC(), nil
	case toml.LocalDateTime:
		return val.AsTime(time.UTC), nil
	case toml.LocalDate:
		return val.AsTime(time.UTC), nil
	case string:
		if val == "" {
			return time.Time{}, nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid generated_at %q", val)
	default:
		return time.Time{}, fmt.Errorf("invalid generated_at %v", val)
	}
}
