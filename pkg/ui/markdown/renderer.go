// Package markdown renders reports as markdown, styled through glamour
// when the output is a terminal.
package markdown

import (
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/ui/display"
	"github.com/charmbracelet/glamour"
)

// WordWrap is the column glamour wraps styled output at.
const WordWrap = 100

// Renderer writes markdown documents.
type Renderer struct {
	output io.Writer
	styled bool
}

// New creates a markdown renderer. With styled set the document is drawn
// through glamour; otherwise the raw markdown is written.
func New(w io.Writer, styled bool) *Renderer {
	return &Renderer{output: w, styled: styled}
}

// RenderResult renders a result as a markdown document.
func (r *Renderer) RenderResult(result interface{}) error {
	if d, ok := result.(*display.Diff); ok {
		return r.write(Diff(d))
	}
	rep, ok := display.Convert(result)
	if !ok {
		return r.write(fmt.Sprintf("```\n%+v\n```\n", result))
	}
	return r.write(Report(rep))
}

// RenderError renders an error as a quoted markdown paragraph.
func (r *Renderer) RenderError(err error) error {
	return r.write(fmt.Sprintf("> **Error:** %s\n", escape(err.Error())))
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	return r.write(msg + "\n")
}

func (r *Renderer) write(doc string) error {
	if r.styled {
		doc = Style(doc)
	}
	_, err := io.WriteString(r.output, doc)
	return err
}

// Style draws doc through glamour. The raw document is returned when
// glamour cannot render it.
func Style(doc string) string {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(WordWrap),
	)
	if err != nil {
		logger := logging.GetLogger("ui.markdown")
		logger.Debug().Err(err).Msg("glamour unavailable")
		return doc
	}
	out, err := tr.Render(doc)
	if err != nil {
		logger := logging.GetLogger("ui.markdown")
		logger.Debug().Err(err).Msg("glamour render failed")
		return doc
	}
	return out
}

// Report builds the markdown document for rep.
func Report(rep *display.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rep.Title)
	if rep.Status != "" {
		fmt.Fprintf(&b, "**Status:** %s\n\n", rep.Status)
	}
	if len(rep.Fields) > 0 {
		b.WriteString("| Field | Value |\n|---|---|\n")
		for _, f := range rep.Fields {
			fmt.Fprintf(&b, "| %s | %s |\n", f.Label, escape(f.Value))
		}
		b.WriteString("\n")
	}
	for _, s := range rep.Sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Title)
		for _, item := range s.Items {
			if s.Kind == display.KindPath {
				fmt.Fprintf(&b, "- `%s`\n", item)
			} else {
				fmt.Fprintf(&b, "- %s\n", escape(item))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Diff builds the markdown document for d.
func Diff(d *display.Diff) string {
	if d.Identical() {
		return fmt.Sprintf("`%s` matches the package version.\n", d.Path)
	}
	return fmt.Sprintf("## `%s`\n\n```diff\n%s```\n", d.Path, d.Text)
}

func escape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
