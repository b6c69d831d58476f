package ui

import (
	"io"

	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/pterm/pterm"
)

// Progress draws one pterm progress bar per orchestrator phase.
type Progress struct {
	w     io.Writer
	bar   *pterm.ProgressbarPrinter
	phase string
}

// NewProgress creates a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

// Func returns the callback to pass in orchestrator options.
func (p *Progress) Func() types.ProgressFunc {
	return p.Report
}

// Report advances the bar of phase to current, starting a new bar when
// the phase changes.
func (p *Progress) Report(current, total int, phase string) {
	if phase != p.phase || p.bar == nil {
		p.Stop()
		p.phase = phase
		if total <= 0 {
			return
		}
		bar, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(phase).
			WithWriter(p.w).
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			logger := logging.GetLogger("ui.progress")
			logger.Debug().Err(err).Msg("Cannot start progress bar")
			return
		}
		p.bar = bar
	}
	if delta := current - p.bar.Current; delta > 0 {
		p.bar.Add(delta)
	}
	if current >= total {
		p.Stop()
	}
}

// Stop clears the active bar, if any.
func (p *Progress) Stop() {
	if p.bar == nil {
		return
	}
	_, _ = p.bar.Stop()
	p.bar = nil
}
