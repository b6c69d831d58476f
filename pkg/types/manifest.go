package types

import "time"

// Manifest is the declared content of one package version, grouped by
// category. Paths are slash-separated and relative to the package root.
type Manifest struct {
	Version     string
	GeneratedAt time.Time
	Files       map[Category][]string

	// Source is the file the manifest was read from.
	Source string
}

// All returns every declared path, categories in manifest order and paths
// in declaration order within each category.
func (m *Manifest) All() []string {
	var out []string
	for _, c := range AllCategories() {
		out = append(out, m.Files[c]...)
	}
	return out
}

// Set returns the declared paths as a PathSet.
func (m *Manifest) Set() PathSet {
	return NewPathSet(m.All()...)
}

// Count returns the number of declared paths.
func (m *Manifest) Count() int {
	n := 0
	for _, files := range m.Files {
		n += len(files)
	}
	return n
}

// CategoryFor returns the category a declared path was listed under.
func (m *Manifest) CategoryFor(rel string) (Category, bool) {
	for c, files := range m.Files {
		for _, f := range files {
			if f == rel {
				return c, true
			}
		}
	}
	return -1, false
}
