package orchestrator

import (
	"github.com/arthur-debert/plugdeploy/pkg/backup"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/lock"
	"github.com/arthur-debert/plugdeploy/pkg/marker"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// StatusReport describes the installation state of a target.
type StatusReport struct {
	Target      string            `json:"target"`
	Installed   bool              `json:"installed"`
	Marker      *types.Marker     `json:"marker,omitempty"`
	MarkerError string            `json:"marker_error,omitempty"`
	Lock        lock.Info         `json:"lock"`
	Backups     []backup.Snapshot `json:"backups"`
}

// Status reports the marker, lock and snapshots of target without taking
// the lock.
func (o *Orchestrator) Status(target string) (*StatusReport, error) {
	target = absPaths("Status", target)[0]
	report := &StatusReport{Target: target, Backups: []backup.Snapshot{}}

	m, err := marker.Load(o.fs, o.layout.MarkerPath(target))
	switch {
	case err == nil:
		report.Installed = true
		report.Marker = m
	case errors.IsErrorCode(err, errors.ErrNotFound):
	default:
		report.Installed = true
		report.MarkerError = err.Error()
	}

	info, err := o.locks.Inspect(target)
	if err != nil {
		return nil, err
	}
	report.Lock = info

	snapshots, err := o.backups.List(target)
	if err != nil {
		return nil, err
	}
	if snapshots != nil {
		report.Backups = snapshots
	}
	return report, nil
}
