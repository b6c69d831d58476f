package plugdeploy

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/config"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/orchestrator"
	"github.com/arthur-debert/plugdeploy/pkg/paths"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/arthur-debert/plugdeploy/pkg/ui"
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	verbosity  int
	format     string
	configFile string
}

// runFlags are shared by the commands that mutate a target.
type runFlags struct {
	force          bool
	prune          bool
	clearStaleLock bool
	noProgress     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.force, "force", false, MsgFlagForce)
	cmd.Flags().BoolVar(&f.prune, "prune", false, MsgFlagPrune)
	cmd.Flags().BoolVar(&f.clearStaleLock, "clear-stale-lock", false, MsgFlagClearStaleLock)
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, MsgFlagNoProgress)
}

// app is what a command needs once its target is known.
type app struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	format   ui.Format
	renderer ui.Renderer
	confirm  ui.Confirmer
	// interactive is set when confirm actually prompts.
	interactive bool
	stderr      io.Writer
}

// newApp loads the configuration layered for target and builds the
// orchestrator and renderer.
func newApp(cmd *cobra.Command, g *globalFlags, target string) (*app, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: g.configFile, Target: target})
	if err != nil {
		return nil, err
	}

	name := g.format
	if name == "" {
		name = cfg.Output.Format
	}
	format, err := ui.ParseFormat(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "invalid output format")
	}
	out := cmd.OutOrStdout()
	if format == ui.FormatAuto {
		format = ui.FormatText
		if f, ok := out.(*os.File); ok {
			format = ui.DetectFormat(f)
		}
	}
	renderer, err := ui.NewRenderer(format, out)
	if err != nil {
		return nil, err
	}

	sink := audit.Debug
	if cfg.Audit.Enabled {
		sink = audit.Multi(audit.NewFileLogger(cfg.AuditPath()), audit.Debug)
	}
	orch, err := orchestrator.New(filesystem.NewOS(),
		orchestrator.WithConfig(cfg),
		orchestrator.WithAudit(sink),
	)
	if err != nil {
		return nil, err
	}

	confirm := ui.Always(false)
	interactive := format != ui.FormatJSON && ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stderr)
	if interactive {
		confirm = ui.Confirm
	}

	return &app{
		cfg:         cfg,
		orch:        orch,
		format:      format,
		renderer:    renderer,
		confirm:     confirm,
		interactive: interactive,
		stderr:      cmd.ErrOrStderr(),
	}, nil
}

// resolveTarget returns the absolute target for an optional positional
// argument or flag value.
func resolveTarget(args []string, i int, flag string) (string, error) {
	target := flag
	if len(args) > i {
		target = args[i]
	}
	if target == "" {
		target = DefaultTarget
	}
	abs, err := filepath.Abs(paths.ExpandHome(target))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrInvalidInput, "cannot resolve target %s", target)
	}
	return abs, nil
}

// trapSignals releases every held lock when the process is interrupted.
// The returned function stops listening.
func (a *app) trapSignals() func() {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-ch:
			logger := logging.GetLogger("cmd")
			logger.Warn().Str("signal", sig.String()).Msg(MsgInterrupted)
			a.orch.Locks().ReleaseAll()
			os.Exit(130)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// progress returns the progress callback for a run and the function that
// clears the bar. Bars are only drawn on an interactive stderr.
func (a *app) progress(disabled bool) (types.ProgressFunc, func()) {
	if disabled || a.format != ui.FormatTerminal || !ui.IsTerminal(os.Stderr) {
		return nil, func() {}
	}
	p := ui.NewProgress(os.Stderr)
	return p.Func(), p.Stop
}

// clearStaleAfter reports whether err is a stale-lock conflict the
// operator agreed to clear.
func (a *app) clearStaleAfter(err error) bool {
	if !errors.IsErrorCode(err, errors.ErrLockConflict) {
		return false
	}
	details := errors.GetErrorDetails(err)
	if stale, _ := details["stale"].(bool); !stale {
		return false
	}
	ok, cerr := a.confirm(MsgStaleLockTitle, fmt.Sprintf(MsgStaleLockDesc, details["lock_path"], details["age"]))
	if cerr != nil {
		logger := logging.GetLogger("cmd")
		logger.Debug().Err(cerr).Msg("Confirmation prompt failed")
		return false
	}
	return ok
}

// failedError marks a failure that was already rendered as part of a
// result, so main only sets the exit code.
type failedError struct {
	err error
}

func (e *failedError) Error() string { return e.err.Error() }
func (e *failedError) Unwrap() error { return e.err }

// Reported reports whether err was already rendered to the output.
func Reported(err error) bool {
	var failed *failedError
	return stderrors.As(err, &failed)
}

// finish renders result and turns a failed result into a failedError.
func (a *app) finish(result interface{}, succeeded bool, err error) error {
	if rerr := a.renderer.RenderResult(result); rerr != nil {
		return rerr
	}
	if succeeded {
		return nil
	}
	if err == nil {
		err = errors.New(errors.ErrUnknown, "operation failed")
	}
	return &failedError{err: err}
}

// fail renders err in the selected format and marks it as reported.
func (a *app) fail(err error) error {
	if rerr := a.renderer.RenderError(err); rerr != nil {
		return err
	}
	return &failedError{err: err}
}
