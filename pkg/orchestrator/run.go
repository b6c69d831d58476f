package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/lock"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/rs/zerolog"
)

// run carries the state of one invocation.
type run struct {
	o      *Orchestrator
	op     string
	source string
	target string
	opts   Options
	opID   string
	start  time.Time
	logger zerolog.Logger

	state types.State
	lock  *lock.Lock

	backupDir string
	// created lists files that did not exist before this run wrote them,
	// createdDirs the directories it had to make. Both are undone on
	// failure.
	created     []string
	createdDirs []string
	// errs accumulates per-file failures that did not abort the run.
	errs []string
}

func (o *Orchestrator) newRun(op, source, target string, opts Options) *run {
	id := audit.NewOperationID()
	return &run{
		o:      o,
		op:     op,
		source: source,
		target: target,
		opts:   opts,
		opID:   id,
		start:  o.now(),
		state:  types.StateIdle,
		logger: logging.GetLogger("orchestrator").With().
			Str("op", op).
			Str("operation_id", id).
			Str("target", target).
			Logger(),
	}
}

// transition moves the state machine forward. An illegal transition is a
// bug in this package.
func (r *run) transition(next types.State) {
	if !r.state.CanTransition(next) {
		panic(fmt.Sprintf("orchestrator: illegal transition %s -> %s", r.state, next))
	}
	r.logger.Trace().Str("from", r.state.String()).Str("to", next.String()).Msg("State transition")
	r.state = next
}

func (r *run) audit(event audit.EventType, status audit.Status, ctx map[string]interface{}) {
	fields := map[string]interface{}{
		audit.OperationIDKey: r.opID,
		"operation":          r.op,
		"target":             r.target,
	}
	for k, v := range ctx {
		fields[k] = v
	}
	r.o.audit.Log(event, status, fields)
}

func (r *run) duration() time.Duration {
	return r.o.now().Sub(r.start)
}

// acquire takes the target lock, moving to LockAcquired or LockConflict.
func (r *run) acquire() error {
	l, err := r.o.locks.Acquire(r.target, r.opts.ClearStaleLock)
	if err != nil {
		r.transition(types.StateLockConflict)
		ctx := map[string]interface{}{"error": err.Error()}
		for k, v := range errors.GetErrorDetails(err) {
			ctx[k] = v
		}
		r.audit(audit.EventLockConflict, audit.StatusFailure, ctx)
		r.logger.Warn().Err(err).Msg("Could not acquire lock")
		return err
	}

	r.lock = l
	r.transition(types.StateLockAcquired)
	if l.ClearedStale {
		r.audit(audit.EventLockStaleCleared, audit.StatusWarning, map[string]interface{}{
			"lock_path": l.Path(),
			"age":       l.StaleAge.String(),
		})
	}
	r.audit(audit.EventLockAcquired, audit.StatusSuccess, map[string]interface{}{"lock_path": l.Path()})
	return nil
}

// release drops the lock if held. It is safe to call more than once.
func (r *run) release() {
	if r.lock == nil {
		return
	}
	l := r.lock
	r.lock = nil
	if err := l.Release(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to release lock")
		r.audit(audit.EventLockReleased, audit.StatusFailure, map[string]interface{}{
			"lock_path": l.Path(),
			"error":     err.Error(),
		})
		return
	}
	r.audit(audit.EventLockReleased, audit.StatusSuccess, map[string]interface{}{"lock_path": l.Path()})
}

// snapshot backs up files and records the snapshot for rollback.
func (r *run) snapshot(files types.PathSet) error {
	r.opts.Progress.Report(0, 1, types.PhaseBackup)
	dir, count, err := r.o.backups.Snapshot(r.target, files)
	if err != nil {
		r.audit(audit.EventBackupCreated, audit.StatusFailure, map[string]interface{}{"error": err.Error()})
		if dir != "" {
			// A half-written snapshot is useless for rollback.
			_ = r.o.backups.Remove(dir)
		}
		return err
	}
	r.backupDir = dir
	r.audit(audit.EventBackupCreated, audit.StatusSuccess, map[string]interface{}{
		"backup_dir": dir,
		"files":      count,
	})
	r.opts.Progress.Report(1, 1, types.PhaseBackup)
	return nil
}

// targetPath returns the validated absolute target path of rel. Rejection
// is fatal.
func (r *run) targetPath(rel string) (string, error) {
	abs := filepath.Join(r.target, filepath.FromSlash(rel))
	if _, err := r.o.validator.ValidatePath(abs, r.target); err != nil {
		return "", err
	}
	return abs, nil
}

func (r *run) sourcePath(rel string) string {
	return filepath.Join(r.source, filepath.FromSlash(rel))
}

// install copies one package file into the target and returns the hash of
// the content written. A permission error is recorded and reported as
// skipped; any other error is returned.
func (r *run) install(rel string) (hash string, skipped bool, err error) {
	dst, err := r.targetPath(rel)
	if err != nil {
		return "", false, err
	}
	src := r.sourcePath(rel)

	hash, err = r.o.detector.Hash(src)
	if err != nil {
		if errors.IsPermission(err) {
			r.recordFileError(rel, err)
			return "", true, nil
		}
		return "", false, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", src).
			WithDetail("path", rel)
	}

	var perm os.FileMode
	if c, ok := types.CategoryOf(rel); ok && c.Executable() {
		perm = 0755
	}

	existed := filesystem.Exists(r.o.fs, dst)
	newDirs := r.missingDirs(filepath.Dir(dst))

	if err := filesystem.CopyFile(r.o.fs, src, dst, perm); err != nil {
		r.createdDirs = append(r.createdDirs, r.existing(newDirs)...)
		if !existed && filesystem.Exists(r.o.fs, dst) {
			r.created = append(r.created, dst)
		}
		if errors.IsPermission(err) {
			r.recordFileError(rel, err)
			return "", true, nil
		}
		return "", false, errors.Wrapf(err, errors.ErrFileWrite, "cannot install %s", rel).
			WithDetail("path", rel)
	}

	r.createdDirs = append(r.createdDirs, newDirs...)
	if !existed {
		r.created = append(r.created, dst)
	}
	return hash, false, nil
}

func (r *run) recordFileError(rel string, err error) {
	r.logger.Warn().Str("path", rel).Err(err).Msg("Skipping file")
	r.errs = append(r.errs, fmt.Sprintf("%s: %v", rel, err))
}

// missingDirs lists dir and its ancestors up to the target that do not
// exist yet, deepest first.
func (r *run) missingDirs(dir string) []string {
	var out []string
	for dir != r.target && len(dir) > len(r.target) && !filesystem.Exists(r.o.fs, dir) {
		out = append(out, dir)
		dir = filepath.Dir(dir)
	}
	return out
}

func (r *run) existing(dirs []string) []string {
	var out []string
	for _, d := range dirs {
		if filesystem.Exists(r.o.fs, d) {
			out = append(out, d)
		}
	}
	return out
}

// undo removes what this run created and restores the snapshot taken
// before the first mutation. It returns a RollbackError when restoring
// fails.
func (r *run) undo() (int, error) {
	r.transition(types.StateRollingBack)
	r.logger.Warn().Str("backup_dir", r.backupDir).Msg("Rolling back")

	for i := len(r.created) - 1; i >= 0; i-- {
		if err := r.o.fs.Remove(r.created[i]); err != nil && !os.IsNotExist(err) {
			r.logger.Error().Err(err).Str("path", r.created[i]).Msg("Failed to remove created file")
		}
	}
	dirs := append([]string(nil), r.createdDirs...)
	// Deepest first so parents are empty when reached.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		_ = r.o.fs.Remove(d)
	}

	restored := 0
	var restoreErr error
	if r.backupDir != "" {
		r.opts.Progress.Report(0, 1, types.PhaseRestore)
		n, err := r.o.backups.Restore(r.backupDir, r.target)
		restored = n
		if err != nil {
			restoreErr = errors.Wrapf(err, errors.ErrRollback, "rollback from %s failed", r.backupDir).
				WithDetail("backup_dir", r.backupDir)
		}
		r.opts.Progress.Report(1, 1, types.PhaseRestore)
	}

	status := audit.StatusSuccess
	ctx := map[string]interface{}{
		"backup_dir":     r.backupDir,
		"files_removed":  len(r.created),
		"files_restored": restored,
		"automatic":      true,
	}
	if restoreErr != nil {
		status = audit.StatusFailure
		ctx["error"] = restoreErr.Error()
	}
	r.audit(audit.EventRollback, status, ctx)
	return restored, restoreErr
}

// abort drives a failed run to LockReleased. It returns the error to
// report: the original one, joined with any rollback failure.
func (r *run) abort(cause error) (int, error) {
	restored, rbErr := r.undo()
	r.releaseAndTidy()
	r.transition(types.StateLockReleased)
	return restored, errors.Join(cause, rbErr)
}

// releaseAndTidy releases the lock and removes a target directory that
// only exists because this run created it.
func (r *run) releaseAndTidy() {
	l := r.lock
	r.release()
	if l != nil {
		l.RemoveCreatedDirs()
	}
}
