package plugdeploy

import (
	"fmt"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/backup"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/ui/display"
	"github.com/spf13/cobra"
)

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "status [target]",
		Short:   MsgStatusShort,
		GroupID: "inspect",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(args, 0, "")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}
			report, err := a.orch.Status(target)
			if err != nil {
				return a.fail(err)
			}
			return a.renderer.RenderResult(report)
		},
	}
}

func newDiffCmd(g *globalFlags) *cobra.Command {
	var targetFlag string
	cmd := &cobra.Command{
		Use:     "diff <source> <file>",
		Short:   MsgDiffShort,
		Example: "  plugdeploy diff ./my-plugin commands/deploy.md",
		GroupID: "inspect",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(nil, 0, targetFlag)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}
			text, err := a.orch.Diff(args[0], target, args[1])
			if err != nil {
				return a.fail(err)
			}
			return a.renderer.RenderResult(&display.Diff{Path: args[1], Text: text})
		},
	}
	cmd.Flags().StringVarP(&targetFlag, "target", "t", DefaultTarget, MsgFlagTarget)
	return cmd
}

func newLockCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "lock",
		Short:   MsgLockShort,
		GroupID: "inspect",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status [target]",
		Short: MsgLockStatusShort,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(args, 0, "")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}
			info, err := a.orch.Locks().Inspect(target)
			if err != nil {
				return a.fail(err)
			}
			return a.renderer.RenderResult(info)
		},
	})

	var yes bool
	clear := &cobra.Command{
		Use:   "clear [target]",
		Short: MsgLockClearShort,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(args, 0, "")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}
			locks := a.orch.Locks()
			info, err := locks.Inspect(target)
			if err != nil {
				return a.fail(err)
			}
			if !info.Held {
				return a.renderer.RenderMessage(fmt.Sprintf(MsgLockFree, target))
			}

			if !yes {
				if !a.interactive {
					return a.fail(errors.New(errors.ErrInvalidInput, MsgErrNotAnswerable))
				}
				ok, err := a.confirm(MsgClearLockTitle,
					fmt.Sprintf(MsgClearLockDesc, info.Path, info.Age.Round(time.Second)))
				if err != nil {
					return a.fail(err)
				}
				if !ok {
					return a.renderer.RenderMessage(MsgLockKept)
				}
			}
			if err := locks.Clear(target); err != nil {
				return a.fail(err)
			}
			return a.renderer.RenderMessage(fmt.Sprintf(MsgLockCleared, info.Path))
		},
	}
	clear.Flags().BoolVarP(&yes, "yes", "y", false, MsgFlagYes)
	cmd.AddCommand(clear)
	return cmd
}

func newBackupsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "backups [target]",
		Short:   MsgBackupsShort,
		GroupID: "inspect",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(args, 0, "")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g, target)
			if err != nil {
				return err
			}
			snapshots, err := a.orch.Backups().List(target)
			if err != nil {
				return a.fail(err)
			}
			if snapshots == nil {
				snapshots = []backup.Snapshot{}
			}
			return a.renderer.RenderResult(snapshots)
		},
	}
}
