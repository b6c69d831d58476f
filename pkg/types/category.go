package types

import (
	"fmt"
	"path"
	"strings"
)

// Category is one of the fixed top-level sections of a package.
type Category int

const (
	CategoryAgents Category = iota
	CategoryCommands
	CategoryHooks
	CategoryLib
	CategoryScripts
	CategoryConfig
	CategoryTemplates
	CategorySkills
)

var categoryNames = [...]string{
	CategoryAgents:    "agents",
	CategoryCommands:  "commands",
	CategoryHooks:     "hooks",
	CategoryLib:       "lib",
	CategoryScripts:   "scripts",
	CategoryConfig:    "config",
	CategoryTemplates: "templates",
	CategorySkills:    "skills",
}

// AllCategories returns every category in manifest order.
func AllCategories() []Category {
	return []Category{
		CategoryAgents,
		CategoryCommands,
		CategoryHooks,
		CategoryLib,
		CategoryScripts,
		CategoryConfig,
		CategoryTemplates,
		CategorySkills,
	}
}

// String returns the directory name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

// Executable reports whether files of this category are installed with
// the executable bit set.
func (c Category) Executable() bool {
	return c == CategoryScripts
}

// MarshalText implements encoding.TextMarshaler so categories can be map
// keys in JSON, YAML and TOML documents.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory converts a directory name into a Category.
func ParseCategory(name string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, n := range categoryNames {
		if n == normalized {
			return Category(i), nil
		}
	}
	return -1, fmt.Errorf("unknown category %q", name)
}

// CategoryOf returns the category a slash-separated relative path belongs
// to, determined by its first segment.
func CategoryOf(rel string) (Category, bool) {
	clean := path.Clean(strings.TrimPrefix(rel, "./"))
	first, _, _ := strings.Cut(clean, "/")
	c, err := ParseCategory(first)
	if err != nil || c.String() != first {
		return -1, false
	}
	// A bare "scripts" file is not inside the category directory.
	if first == clean {
		return -1, false
	}
	return c, true
}
