package manifest

import (
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// Drift describes how a manifest and the scanned source tree disagree.
type Drift struct {
	// Missing paths are declared but absent on disk.
	Missing []string `json:"missing,omitempty"`
	// Undeclared paths sit under a category directory but are not declared.
	Undeclared []string `json:"undeclared,omitempty"`
}

// Clean reports whether the manifest and the tree agree.
func (d Drift) Clean() bool {
	return len(d.Missing) == 0 && len(d.Undeclared) == 0
}

// Verify compares a manifest against a scanned source tree.
func Verify(m *types.Manifest, scanned types.PathSet) Drift {
	declared := m.Set()

	var drift Drift
	for _, rel := range m.All() {
		if !scanned.Has(rel) {
			drift.Missing = append(drift.Missing, rel)
		}
	}
	for _, rel := range scanned.Sorted() {
		if _, ok := types.CategoryOf(rel); ok && !declared.Has(rel) {
			drift.Undeclared = append(drift.Undeclared, rel)
		}
	}
	return drift
}
