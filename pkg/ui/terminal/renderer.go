// Package terminal provides rich terminal output with colors and styling
package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/plugdeploy/pkg/ui/display"
	"github.com/arthur-debert/plugdeploy/pkg/ui/styles"
	"github.com/charmbracelet/lipgloss"
)

// Renderer draws reports with the lipgloss styles from the styles package.
type Renderer struct {
	output io.Writer
}

// New creates a new terminal renderer
func New(w io.Writer) *Renderer {
	return &Renderer{output: w}
}

// RenderResult renders any result type with rich terminal formatting
func (r *Renderer) RenderResult(result interface{}) error {
	if d, ok := result.(*display.Diff); ok {
		return r.renderDiff(d)
	}
	rep, ok := display.Convert(result)
	if !ok {
		_, err := fmt.Fprintf(r.output, "%+v\n", result)
		return err
	}
	_, err := fmt.Fprintln(r.output, Report(rep))
	return err
}

// Report draws rep.
func Report(rep *display.Report) string {
	var lines []string

	header := styles.GetStyle("Header").Render(rep.Title)
	switch rep.Status {
	case "success":
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, " ", styles.GetStyle("Success").Render("✓ "+rep.Status))
	case "failure":
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, " ", styles.GetStyle("Error").Render("✗ "+rep.Status))
	}
	lines = append(lines, header)

	label := styles.GetStyle("Label")
	value := styles.GetStyle("Value")
	for _, f := range rep.Fields {
		v := value
		if f.Label == "Error" {
			v = styles.GetStyle("Error")
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label.Render(f.Label), v.Render(f.Value)))
	}

	for _, s := range rep.Sections {
		lines = append(lines, styles.GetStyle("Section").Render(fmt.Sprintf("%s (%d)", s.Title, len(s.Items))))
		item := styles.GetStyle("Item")
		switch s.Kind {
		case display.KindPath:
			item = styles.GetStyle("Path")
		case display.KindError:
			item = styles.GetStyle("ErrorItem")
		}
		for _, i := range s.Items {
			lines = append(lines, item.Render(i))
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) renderDiff(d *display.Diff) error {
	if d.Identical() {
		_, err := fmt.Fprintln(r.output, styles.GetStyle("Muted").Render(d.Path+" matches the package version"))
		return err
	}
	var b strings.Builder
	b.WriteString(styles.GetStyle("Header").Render(d.Path))
	b.WriteString("\n")
	for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+ "):
			line = styles.GetStyle("DiffAdd").Render(line)
		case strings.HasPrefix(line, "- "):
			line = styles.GetStyle("DiffDelete").Render(line)
		default:
			line = styles.GetStyle("Muted").Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	_, err := io.WriteString(r.output, b.String())
	return err
}

// RenderError renders an error with appropriate formatting
func (r *Renderer) RenderError(err error) error {
	_, werr := fmt.Fprintln(r.output, styles.GetStyle("Error").Render(fmt.Sprintf("Error: %v", err)))
	return werr
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, msg)
	return err
}
