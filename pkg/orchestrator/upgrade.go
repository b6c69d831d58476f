package orchestrator

import (
	"os"

	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/customization"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/marker"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// Upgrade brings an existing installation up to the package at source.
// Files the user customized since the last install are kept and listed in
// CustomizedFiles; files the user added are never touched. Without an
// installation marker in target the call behaves as FreshInstall.
func (o *Orchestrator) Upgrade(source, target string, opts Options) *types.UpgradeResult {
	p := absPaths("Upgrade", source, target)
	source, target = p[0], p[1]

	if err := o.checkSource(source); err != nil {
		return &types.UpgradeResult{
			Status:       types.StatusFailure,
			State:        types.StateIdle,
			ErrorMessage: err.Error(),
			Err:          err,
		}
	}

	if !marker.Exists(o.fs, o.layout.MarkerPath(target)) {
		logger := logging.GetLogger("orchestrator")
		logger.Info().
			Str("target", target).
			Msg("No installation marker, running a fresh install")
		return upgradeFromInstall(o.freshInstall(source, target, opts))
	}

	return o.upgrade(source, target, opts)
}

func (o *Orchestrator) upgrade(source, target string, opts Options) *types.UpgradeResult {
	r := o.newRun("upgrade", source, target, opts)
	defer logging.LogOperationStart(r.logger, "upgrade")()
	result := &types.UpgradeResult{CustomizedFiles: []string{}}

	finish := func(err error) *types.UpgradeResult {
		result.State = r.state
		result.Duration = r.duration()
		result.BackupDir = r.backupDir
		result.Errors = r.errs
		if err != nil {
			result.Status = types.StatusFailure
			result.ErrorMessage = err.Error()
			result.Err = err
		} else {
			result.Status = types.StatusSuccess
		}
		r.audit(audit.EventUpgrade, auditStatus(err), map[string]interface{}{
			"source":           source,
			"version":          result.Version,
			"previous_version": result.PreviousVersion,
			"files_added":      result.FilesAdded,
			"files_updated":    result.FilesUpdated,
			"files_removed":    result.FilesRemoved,
			"customized_files": len(result.CustomizedFiles),
			"coverage":         result.Coverage,
			"state":            r.state.String(),
			"error":            result.ErrorMessage,
		})
		return result
	}

	if err := r.acquire(); err != nil {
		return finish(err)
	}
	defer r.release()

	// Discovery.
	r.transition(types.StateScanning)
	opts.Progress.Report(0, 1, types.PhaseDiscovery)

	fail := func(err error) *types.UpgradeResult {
		restored, err := r.abort(err)
		result.FilesRestored = restored
		return finish(err)
	}

	m, err := o.discover(r)
	if err != nil {
		return fail(err)
	}
	result.Version = m.Version
	expected := m.Set()

	markerPath, err := r.targetPath(o.layout.MarkerFile)
	if err != nil {
		return fail(err)
	}
	previous, err := marker.Load(o.fs, markerPath)
	if err != nil {
		return fail(err)
	}
	result.PreviousVersion = previous.Version

	present, err := o.scanner.Scan(target)
	if err != nil {
		return fail(err)
	}
	for _, rel := range expected.Union(present).Sorted() {
		if _, err := r.targetPath(rel); err != nil {
			return fail(err)
		}
	}

	// Everything the upgrade may overwrite or remove.
	managed := present.Filter(func(rel string) bool {
		return expected.Has(rel) || previous.Known(rel)
	})
	if err := r.snapshot(managed); err != nil {
		return fail(err)
	}

	plan, err := o.detector.ClassifyTree(customization.TreeInput{
		SourceRoot: source,
		TargetRoot: target,
		Source:     expected,
		Target:     present,
		Marker:     previous,
	})
	if err != nil {
		return fail(err)
	}
	opts.Progress.Report(1, 1, types.PhaseDiscovery)

	// Copy.
	r.transition(types.StateCopying)
	hashes := make(map[string]string, expected.Len())

	// Unreadable files stay as they are and keep their previous baseline.
	keep := func(rel string, err error) {
		r.recordFileError(rel, err)
		if previous.Known(rel) {
			hashes[rel] = previous.Checksum(rel)
		}
	}
	for _, rel := range plan.Unreadable() {
		keep(rel, plan.Cause(rel))
	}

	customized := plan.Paths(types.UserModified)
	result.CustomizedFiles = customized
	result.UserFiles = plan.Paths(types.NewFromUser)
	result.ObsoleteFiles = plan.Paths(types.Obsolete)

	for _, rel := range customized {
		r.logger.Info().Str("path", rel).Bool("force", opts.Force).Msg("Customized file")
	}

	type job struct {
		rel   string
		added bool
	}
	var jobs []job
	for _, rel := range plan.Paths(types.Unmodified) {
		jobs = append(jobs, job{rel: rel})
	}
	for _, rel := range plan.Paths(types.NewFromPlugin) {
		jobs = append(jobs, job{rel: rel, added: true})
	}
	if opts.Force {
		for _, rel := range customized {
			jobs = append(jobs, job{rel: rel})
		}
	} else {
		for _, rel := range customized {
			// Baseline for the next upgrade is what this release ships.
			hash, err := o.detector.Hash(r.sourcePath(rel))
			if err != nil {
				if errors.IsPermission(err) {
					keep(rel, err)
					continue
				}
				return fail(errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", rel))
			}
			hashes[rel] = hash
		}
	}

	opts.Progress.Report(0, len(jobs), types.PhaseCopy)
	for i, j := range jobs {
		unchanged, err := o.sameContent(r, j.rel)
		if err != nil {
			if errors.IsPermission(err) {
				keep(j.rel, err)
				opts.Progress.Report(i+1, len(jobs), types.PhaseCopy)
				continue
			}
			return fail(err)
		}
		if unchanged {
			hash, err := o.detector.Hash(r.sourcePath(j.rel))
			if err != nil {
				if errors.IsPermission(err) {
					keep(j.rel, err)
					opts.Progress.Report(i+1, len(jobs), types.PhaseCopy)
					continue
				}
				return fail(errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", j.rel))
			}
			hashes[j.rel] = hash
			result.FilesUnchanged++
			opts.Progress.Report(i+1, len(jobs), types.PhaseCopy)
			continue
		}

		hash, skipped, err := r.install(j.rel)
		if err != nil {
			return fail(errors.Wrap(err, errors.ErrInstall, "upgrade failed"))
		}
		if !skipped {
			hashes[j.rel] = hash
			if j.added {
				result.FilesAdded++
			} else {
				result.FilesUpdated++
			}
		}
		opts.Progress.Report(i+1, len(jobs), types.PhaseCopy)
	}

	for _, rel := range result.ObsoleteFiles {
		removed, err := o.pruneObsolete(r, rel, previous, opts.PruneObsolete)
		if err != nil {
			return fail(err)
		}
		if removed {
			result.FilesRemoved++
			continue
		}
		// Kept obsolete files stay known so a later --prune can remove them.
		hashes[rel] = previous.Checksum(rel)
	}

	// Validation.
	opts.Progress.Report(0, 1, types.PhaseValidation)
	pct, covErr := o.measure(r, expected)
	if covErr != nil && !errors.IsErrorCode(covErr, errors.ErrCoverage) {
		return fail(errors.Wrap(covErr, errors.ErrInstall, "upgrade failed"))
	}
	result.Coverage = pct

	installed := 0
	for rel := range hashes {
		if expected.Has(rel) {
			installed++
		}
	}
	if err := o.writeMarker(r, &types.Marker{
		Version:        m.Version,
		FilesInstalled: installed,
		Coverage:       pct,
		Source:         source,
		Files:          hashes,
	}); err != nil {
		return fail(err)
	}
	opts.Progress.Report(1, 1, types.PhaseValidation)

	return finish(covErr)
}

// sameContent reports whether the installed copy of rel already matches
// the package version.
func (o *Orchestrator) sameContent(r *run, rel string) (bool, error) {
	dst, err := r.targetPath(rel)
	if err != nil {
		return false, err
	}
	current, err := o.detector.Hash(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", dst).
			WithDetail("path", rel)
	}
	incoming, err := o.detector.Hash(r.sourcePath(rel))
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", rel).
			WithDetail("path", rel)
	}
	return current == incoming, nil
}

// pruneObsolete removes an obsolete file when pruning is enabled and the
// file is still exactly as installed.
func (o *Orchestrator) pruneObsolete(r *run, rel string, previous *types.Marker, prune bool) (bool, error) {
	if !prune {
		return false, nil
	}
	dst, err := r.targetPath(rel)
	if err != nil {
		return false, err
	}
	pristine, err := o.detector.Pristine(customization.Input{
		Rel:        rel,
		TargetPath: dst,
		Baseline:   previous.Timestamp,
		Recorded:   previous.Checksum(rel),
		Known:      true,
	})
	if err != nil {
		if errors.IsPermission(err) {
			r.recordFileError(rel, err)
			return false, nil
		}
		return false, err
	}
	if !pristine {
		r.logger.Info().Str("path", rel).Msg("Keeping modified obsolete file")
		return false, nil
	}
	if err := o.fs.Remove(dst); err != nil && !os.IsNotExist(err) {
		if errors.IsPermission(err) {
			r.recordFileError(rel, err)
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrFileWrite, "cannot remove obsolete %s", rel).
			WithDetail("path", rel)
	}
	r.logger.Info().Str("path", rel).Msg("Removed obsolete file")
	return true, nil
}

func upgradeFromInstall(i *types.InstallResult) *types.UpgradeResult {
	return &types.UpgradeResult{
		Status:          i.Status,
		Version:         i.Version,
		FilesAdded:      i.FilesCopied,
		Coverage:        i.Coverage,
		CustomizedFiles: []string{},
		BackupDir:       i.BackupDir,
		ErrorMessage:    i.ErrorMessage,
		Errors:          i.Errors,
		State:           i.State,
		RanAs:           "install",
		Duration:        i.Duration,
		Err:             i.Err,
	}
}
