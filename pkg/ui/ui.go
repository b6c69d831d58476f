// Package ui renders plugdeploy results for people and for scripts.
// It supports terminal (styled), text (plain), markdown and JSON output.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/arthur-debert/plugdeploy/pkg/ui/json"
	"github.com/arthur-debert/plugdeploy/pkg/ui/markdown"
	"github.com/arthur-debert/plugdeploy/pkg/ui/terminal"
	"github.com/arthur-debert/plugdeploy/pkg/ui/text"
)

// Renderer is the common interface for all output renderers.
type Renderer interface {
	// RenderResult renders a result record, a status report, a snapshot
	// list or a diff.
	RenderResult(result interface{}) error

	// RenderError renders an error with appropriate formatting
	RenderError(err error) error

	// RenderMessage renders a simple message
	RenderMessage(msg string) error
}

// NewRenderer creates a new renderer based on the specified format.
// FormatAuto inspects output when it is a file and falls back to terminal
// output otherwise.
func NewRenderer(format Format, output io.Writer) (Renderer, error) {
	switch format {
	case FormatAuto:
		if file, ok := output.(*os.File); ok {
			return NewRenderer(DetectFormat(file), output)
		}
		return NewRenderer(FormatTerminal, output)
	case FormatTerminal:
		return terminal.New(output), nil
	case FormatText:
		return text.New(output), nil
	case FormatJSON:
		return json.New(output), nil
	case FormatMarkdown:
		styled := false
		if file, ok := output.(*os.File); ok {
			styled = IsTerminal(file)
		}
		return markdown.New(output, styled), nil
	default:
		return nil, fmt.Errorf("unknown format: %v", format)
	}
}
