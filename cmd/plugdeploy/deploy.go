package plugdeploy

import (
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/orchestrator"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/spf13/cobra"
)

func newInstallCmd(g *globalFlags) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:     "install <source> [target]",
		Short:   MsgInstallShort,
		Long:    MsgInstallLong,
		Example: "  plugdeploy install ./my-plugin\n  plugdeploy install ./my-plugin ~/work/app/.claude",
		GroupID: "core",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(args, 1, "")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}
			defer a.trapSignals()()
			progress, done := a.progress(f.noProgress)
			defer done()

			logger := logging.GetLogger("cmd.install")

			logger.Info().Str("source", args[0]).Str("target", target).Msg("Starting install")
			opts := f.options(progress)
			res := a.orch.FreshInstall(args[0], target, opts)
			if !res.Succeeded() && !opts.ClearStaleLock && a.clearStaleAfter(res.Err) {
				opts.ClearStaleLock = true
				res = a.orch.FreshInstall(args[0], target, opts)
			}
			return a.finish(res, res.Succeeded(), res.Err)
		},
	}
	f.register(cmd)
	return cmd
}

func newUpgradeCmd(g *globalFlags) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:     "upgrade <source> [target]",
		Short:   MsgUpgradeShort,
		Long:    MsgUpgradeLong,
		Example: "  plugdeploy upgrade ./my-plugin\n  plugdeploy upgrade ./my-plugin --prune",
		GroupID: "core",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(args, 1, "")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}
			defer a.trapSignals()()
			progress, done := a.progress(f.noProgress)
			defer done()

			logger := logging.GetLogger("cmd.upgrade")

			logger.Info().Str("source", args[0]).Str("target", target).Msg("Starting upgrade")
			opts := f.options(progress)
			res := a.orch.Upgrade(args[0], target, opts)
			if !res.Succeeded() && !opts.ClearStaleLock && a.clearStaleAfter(res.Err) {
				opts.ClearStaleLock = true
				res = a.orch.Upgrade(args[0], target, opts)
			}
			return a.finish(res, res.Succeeded(), res.Err)
		},
	}
	f.register(cmd)
	return cmd
}

func newRollbackCmd(g *globalFlags) *cobra.Command {
	var (
		f          runFlags
		targetFlag string
	)
	cmd := &cobra.Command{
		Use:     "rollback [backup-dir]",
		Short:   MsgRollbackShort,
		Long:    MsgRollbackLong,
		GroupID: "core",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(nil, 0, targetFlag)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}

			var backupDir string
			if len(args) == 1 {
				backupDir = args[0]
			} else if backupDir, err = a.orch.Backups().Latest(target); err != nil {
				return a.fail(err)
			}

			defer a.trapSignals()()
			progress, done := a.progress(f.noProgress)
			defer done()

			opts := f.options(progress)
			res := a.orch.Rollback(backupDir, target, opts)
			if !res.Succeeded() && !opts.ClearStaleLock && a.clearStaleAfter(res.Err) {
				opts.ClearStaleLock = true
				res = a.orch.Rollback(backupDir, target, opts)
			}
			return a.finish(res, res.Succeeded(), res.Err)
		},
	}
	cmd.Flags().StringVarP(&targetFlag, "target", "t", DefaultTarget, MsgFlagTarget)
	cmd.Flags().BoolVar(&f.clearStaleLock, "clear-stale-lock", false, MsgFlagClearStaleLock)
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, MsgFlagNoProgress)
	return cmd
}

func (f *runFlags) options(progress types.ProgressFunc) orchestrator.Options {
	return orchestrator.Options{
		Progress:       progress,
		ClearStaleLock: f.clearStaleLock,
		Force:          f.force,
		PruneObsolete:  f.prune,
	}
}
