package orchestrator

import (
	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// Rollback restores target from the snapshot at backupDir. A missing
// snapshot yields a failure result. The lock is released on every path.
func (o *Orchestrator) Rollback(backupDir, target string, opts Options) *types.RollbackResult {
	p := absPaths("Rollback", backupDir, target)
	backupDir, target = p[0], p[1]

	r := o.newRun("rollback", "", target, opts)
	defer logging.LogOperationStart(r.logger, "rollback")()
	result := &types.RollbackResult{BackupDir: backupDir}

	finish := func(err error) *types.RollbackResult {
		status := audit.StatusSuccess
		ctx := map[string]interface{}{
			"backup_dir":     backupDir,
			"files_restored": result.FilesRestored,
			"automatic":      false,
		}
		if err != nil {
			result.Status = types.StatusFailure
			result.ErrorMessage = err.Error()
			result.Err = err
			status = audit.StatusFailure
			ctx["error"] = err.Error()
		} else {
			result.Status = types.StatusSuccess
		}
		r.audit(audit.EventRollback, status, ctx)
		return result
	}

	if err := r.acquire(); err != nil {
		return finish(err)
	}
	defer r.release()

	r.transition(types.StateRollingBack)
	opts.Progress.Report(0, 1, types.PhaseRestore)

	n, err := o.backups.Restore(backupDir, target)
	result.FilesRestored = n
	if err != nil && !errors.IsErrorCode(err, errors.ErrRollback) && !errors.IsErrorCode(err, errors.ErrSecurity) {
		err = errors.Wrapf(err, errors.ErrRollback, "rollback from %s failed", backupDir)
	}
	opts.Progress.Report(1, 1, types.PhaseRestore)

	if err != nil {
		r.releaseAndTidy()
	} else {
		r.release()
	}
	r.transition(types.StateLockReleased)
	return finish(err)
}
