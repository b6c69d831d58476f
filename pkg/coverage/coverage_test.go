// pkg/coverage/coverage_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test coverage percentage, rounding and threshold checks

package coverage_test

import (
	"fmt"
	"testing"

	"github.com/arthur-debert/plugdeploy/pkg/coverage"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) types.PathSet {
	s := types.NewPathSet()
	for i := 0; i < n; i++ {
		s.Add(fmt.Sprintf("commands/c%03d.md", i))
	}
	return s
}

func firstK(set types.PathSet, k int) types.PathSet {
	out := types.NewPathSet()
	for _, p := range set.Sorted()[:k] {
		out.Add(p)
	}
	return out
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name string
		n, k int
		want float64
	}{
		{"all 230 copied", 230, 230, 100.0},
		{"229 of 230", 230, 229, 99.6},
		{"228 of 230", 230, 228, 99.1},
		{"one of three", 3, 1, 33.3},
		{"two of three", 3, 2, 66.7},
		{"none copied", 10, 0, 0.0},
		{"199 of 200 rounds half up", 200, 199, 99.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := numbered(tt.n)
			assert.Equal(t, tt.want, coverage.Calculate(expected, firstK(expected, tt.k)))
		})
	}
}

func TestCalculate_IgnoresExtraCopies(t *testing.T) {
	expected := types.NewPathSet("agents/a.md", "agents/b.md")
	copied := types.NewPathSet("agents/a.md", "agents/b.md", "agents/user.md")
	assert.Equal(t, 100.0, coverage.Calculate(expected, copied))
}

func TestCalculate_EmptyExpected(t *testing.T) {
	assert.Equal(t, 100.0, coverage.Calculate(types.NewPathSet(), types.NewPathSet()))
}

func TestAcceptable(t *testing.T) {
	assert.True(t, coverage.Acceptable(100.0))
	assert.True(t, coverage.Acceptable(99.5))
	assert.False(t, coverage.Acceptable(99.4))
	assert.True(t, coverage.AcceptableAt(90.0, 90.0))
}

func TestCheck(t *testing.T) {
	expected := numbered(20)

	pct, err := coverage.Check(expected, expected, coverage.Threshold)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)

	pct, err = coverage.Check(expected, firstK(expected, 18), coverage.Threshold)
	require.Error(t, err)
	assert.Equal(t, 90.0, pct)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCoverage))
	assert.Equal(t, []string{"commands/c018.md", "commands/c019.md"}, errors.GetErrorDetails(err)["missing"])
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "99.6%", coverage.Format(99.6))
	assert.Equal(t, "100.0%", coverage.Format(100))
}
