// pkg/ui/markdown/renderer_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: glamour
// PURPOSE: Test markdown documents and their glamour rendering

package markdown

import (
	"bytes"
	"testing"

	"github.com/arthur-debert/plugdeploy/pkg/ui/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportEscapesTableCells(t *testing.T) {
	doc := Report(&display.Report{
		Title:  "Install",
		Status: "failure",
		Fields: []display.Field{{Label: "Error", Value: "a|b\nc"}},
		Sections: []display.Section{
			{Title: "Skipped files", Kind: display.KindError, Items: []string{"x: denied"}},
		},
	})

	assert.Contains(t, doc, "**Status:** failure")
	assert.Contains(t, doc, `| Error | a\|b c |`)
	assert.Contains(t, doc, "- x: denied\n")
}

func TestDiffDocument(t *testing.T) {
	assert.Equal(t, "`a.md` matches the package version.\n", Diff(&display.Diff{Path: "a.md"}))
	assert.Contains(t, Diff(&display.Diff{Path: "a.md", Text: "+ x\n"}), "```diff\n+ x\n```")
}

func TestStyledOutputGoesThroughGlamour(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true)
	require.NoError(t, r.RenderMessage("plain **bold** words"))

	assert.Contains(t, buf.String(), "bold")
	assert.NotEqual(t, "plain **bold** words\n", buf.String())
}
