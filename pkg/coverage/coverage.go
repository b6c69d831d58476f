// Package coverage measures how much of a manifest actually landed in a
// target tree.
package coverage

import (
	"fmt"
	"math"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// Threshold is the minimum acceptable coverage percentage.
const Threshold = 99.5

// Calculate returns |copied ∩ expected| / |expected| * 100 rounded to one
// decimal. An empty expected set is fully covered.
func Calculate(expected, copied types.PathSet) float64 {
	if expected.Len() == 0 {
		return 100.0
	}
	hit := expected.Intersect(copied).Len()
	// Scale to tenths before dividing so 199/200 lands exactly on 99.5.
	return math.Round(float64(hit)*1000/float64(expected.Len())) / 10
}

// Acceptable reports whether pct meets the default threshold.
func Acceptable(pct float64) bool {
	return AcceptableAt(pct, Threshold)
}

// AcceptableAt reports whether pct meets threshold.
func AcceptableAt(pct, threshold float64) bool {
	return pct >= threshold
}

// Check returns an ErrCoverage error when pct is below threshold. The
// error lists up to ten of the missing paths.
func Check(expected, copied types.PathSet, threshold float64) (float64, error) {
	pct := Calculate(expected, copied)
	if AcceptableAt(pct, threshold) {
		return pct, nil
	}
	missing := expected.Difference(copied).Sorted()
	shown := missing
	if len(shown) > 10 {
		shown = shown[:10]
	}
	return pct, errors.Newf(errors.ErrCoverage,
		"coverage %.1f%% is below the %.1f%% threshold (%d of %d files missing)",
		pct, threshold, len(missing), expected.Len()).
		WithDetail("coverage", pct).
		WithDetail("threshold", threshold).
		WithDetail("missing", shown)
}

// Format renders pct the way results report it.
func Format(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}
