// Package text provides plain text output without any styling
package text

import (
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/plugdeploy/pkg/ui/display"
)

// Renderer provides plain text output without colors or styling
type Renderer struct {
	output io.Writer
}

// New creates a new text renderer
func New(output io.Writer) *Renderer {
	return &Renderer{output: output}
}

// RenderResult renders any result type as plain text
func (r *Renderer) RenderResult(result interface{}) error {
	if d, ok := result.(*display.Diff); ok {
		return r.renderDiff(d)
	}
	rep, ok := display.Convert(result)
	if !ok {
		_, err := fmt.Fprintf(r.output, "%+v\n", result)
		return err
	}
	_, err := io.WriteString(r.output, Report(rep))
	return err
}

// Report formats rep as plain text.
func Report(rep *display.Report) string {
	var b strings.Builder
	b.WriteString(rep.Title)
	if rep.Status != "" {
		b.WriteString(": ")
		b.WriteString(rep.Status)
	}
	b.WriteString("\n")
	for _, f := range rep.Fields {
		fmt.Fprintf(&b, "  %-17s %s\n", f.Label+":", f.Value)
	}
	for _, s := range rep.Sections {
		fmt.Fprintf(&b, "\n%s (%d):\n", s.Title, len(s.Items))
		for _, item := range s.Items {
			fmt.Fprintf(&b, "  %s\n", item)
		}
	}
	return b.String()
}

func (r *Renderer) renderDiff(d *display.Diff) error {
	if d.Identical() {
		_, err := fmt.Fprintf(r.output, "%s matches the package version\n", d.Path)
		return err
	}
	_, err := fmt.Fprintf(r.output, "--- package/%s\n+++ installed/%s\n%s", d.Path, d.Path, d.Text)
	return err
}

// RenderError renders an error as plain text
func (r *Renderer) RenderError(err error) error {
	_, werr := fmt.Fprintf(r.output, "Error: %v\n", err)
	return werr
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, msg)
	return err
}
