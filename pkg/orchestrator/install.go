package orchestrator

import (
	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/coverage"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/arthur-debert/plugdeploy/pkg/manifest"
	"github.com/arthur-debert/plugdeploy/pkg/marker"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// FreshInstall copies every manifested file of the package at source into
// target. When target already carries an installation marker the call is
// handed to Upgrade so existing customizations are protected.
func (o *Orchestrator) FreshInstall(source, target string, opts Options) *types.InstallResult {
	p := absPaths("FreshInstall", source, target)
	source, target = p[0], p[1]

	if err := o.checkSource(source); err != nil {
		return &types.InstallResult{
			Status:       types.StatusFailure,
			State:        types.StateIdle,
			ErrorMessage: err.Error(),
			Err:          err,
		}
	}

	if marker.Exists(o.fs, o.layout.MarkerPath(target)) {
		logger := logging.GetLogger("orchestrator")
		logger.Info().
			Str("target", target).
			Msg("Installation marker found, upgrading instead")
		return installFromUpgrade(o.Upgrade(source, target, opts))
	}

	return o.freshInstall(source, target, opts)
}

func (o *Orchestrator) freshInstall(source, target string, opts Options) *types.InstallResult {
	r := o.newRun("install", source, target, opts)
	defer logging.LogOperationStart(r.logger, "install")()
	result := &types.InstallResult{}

	finish := func(err error) *types.InstallResult {
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
		r.audit(audit.EventInstall, auditStatus(err), map[string]interface{}{
			"source":       source,
			"version":      result.Version,
			"files_copied": result.FilesCopied,
			"coverage":     result.Coverage,
			"state":        r.state.String(),
			"error":        result.ErrorMessage,
		})
		return result
	}

	if err := r.acquire(); err != nil {
		return finish(err)
	}
	defer r.release()

	// A concurrent install may have finished while this run waited.
	if marker.Exists(o.fs, o.layout.MarkerPath(target)) {
		r.logger.Info().Msg("Installation marker appeared while waiting for the lock, upgrading instead")
		r.release()
		return installFromUpgrade(o.upgrade(source, target, opts))
	}

	// Discovery.
	r.transition(types.StateScanning)
	opts.Progress.Report(0, 1, types.PhaseDiscovery)

	m, err := o.discover(r)
	if err != nil {
		_, err = r.abort(err)
		return finish(err)
	}
	result.Version = m.Version
	expected := m.Set()

	present, err := o.scanner.Scan(target)
	if err != nil {
		_, err = r.abort(err)
		return finish(err)
	}
	if existing := present.Intersect(expected); existing.Len() > 0 {
		r.logger.Info().Int("files", existing.Len()).Msg("Target already holds package files, taking a snapshot")
		if err := r.snapshot(existing); err != nil {
			_, err = r.abort(err)
			return finish(err)
		}
	}
	opts.Progress.Report(1, 1, types.PhaseDiscovery)

	// Copy.
	r.transition(types.StateCopying)
	files := m.All()
	hashes := make(map[string]string, len(files))
	opts.Progress.Report(0, len(files), types.PhaseCopy)
	for i, rel := range files {
		hash, skipped, err := r.install(rel)
		if err != nil {
			_, err = r.abort(errors.Wrap(err, errors.ErrInstall, "install failed"))
			return finish(err)
		}
		if !skipped {
			hashes[rel] = hash
			result.FilesCopied++
		}
		opts.Progress.Report(i+1, len(files), types.PhaseCopy)
	}

	// Validation.
	opts.Progress.Report(0, 1, types.PhaseValidation)
	pct, covErr := o.measure(r, expected)
	if covErr != nil && !errors.IsErrorCode(covErr, errors.ErrCoverage) {
		_, err := r.abort(errors.Wrap(covErr, errors.ErrInstall, "install failed"))
		return finish(err)
	}
	result.Coverage = pct

	if err := o.writeMarker(r, &types.Marker{
		Version:        m.Version,
		FilesInstalled: result.FilesCopied,
		Coverage:       pct,
		Source:         source,
		Files:          hashes,
	}); err != nil {
		_, err = r.abort(err)
		return finish(err)
	}
	opts.Progress.Report(1, 1, types.PhaseValidation)

	return finish(covErr)
}

// checkSource verifies the package root exists.
func (o *Orchestrator) checkSource(source string) error {
	info, err := o.fs.Stat(source)
	if err != nil || !info.IsDir() {
		e := errors.Newf(errors.ErrInstall, "source not found: %s", source).
			WithDetail("source", source)
		if err != nil {
			e.Wrapped = err
		}
		return e
	}
	return nil
}

// discover loads the manifest and checks that every listed file exists in
// the source tree.
func (o *Orchestrator) discover(r *run) (*types.Manifest, error) {
	m, err := manifest.Load(o.fs, r.source)
	if err != nil {
		return nil, err
	}
	scanned, err := o.scanner.Scan(r.source)
	if err != nil {
		return nil, err
	}

	drift := manifest.Verify(m, scanned)
	if len(drift.Missing) > 0 {
		return nil, errors.Newf(errors.ErrManifest,
			"manifest lists %d file(s) missing from the source: %v", len(drift.Missing), drift.Missing).
			WithDetail("missing", drift.Missing).
			WithDetail("manifest", m.Source)
	}
	if len(drift.Undeclared) > 0 {
		r.logger.Warn().
			Strs("undeclared", drift.Undeclared).
			Msg("Source has files the manifest does not declare; they will not be installed")
	}
	r.logger.Info().Str("version", m.Version).Int("files", m.Count()).Msg("Discovered package")
	return m, nil
}

// measure computes coverage over the manifested files present in the
// target. An ErrCoverage error means the copy completed below threshold;
// any other error is fatal.
func (o *Orchestrator) measure(r *run, expected types.PathSet) (float64, error) {
	present, err := o.scanner.Scan(r.target)
	if err != nil {
		return 0, err
	}
	pct, err := coverage.Check(expected, present, o.cfg.Coverage.Threshold)
	if err != nil {
		r.logger.Warn().Float64("coverage", pct).Msg("Coverage below threshold")
	}
	return pct, err
}

// writeMarker persists the marker and moves to MarkerWritten. A failure
// is fatal.
func (o *Orchestrator) writeMarker(r *run, m *types.Marker) error {
	path, err := r.targetPath(o.layout.MarkerFile)
	if err != nil {
		return err
	}
	m.Timestamp = o.now().UTC()
	if err := marker.Write(o.fs, path, m); err != nil {
		return err
	}
	r.transition(types.StateMarkerWritten)
	return nil
}

func auditStatus(err error) audit.Status {
	if err != nil {
		return audit.StatusFailure
	}
	return audit.StatusSuccess
}

func installFromUpgrade(u *types.UpgradeResult) *types.InstallResult {
	return &types.InstallResult{
		Status:       u.Status,
		Version:      u.Version,
		FilesCopied:  u.FilesCopied(),
		Coverage:     u.Coverage,
		BackupDir:    u.BackupDir,
		ErrorMessage: u.ErrorMessage,
		Errors:       u.Errors,
		State:        u.State,
		RanAs:        "upgrade",
		Duration:     u.Duration,
		Err:          u.Err,
	}
}
