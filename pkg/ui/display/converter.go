package display

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/backup"
	"github.com/arthur-debert/plugdeploy/pkg/coverage"
	"github.com/arthur-debert/plugdeploy/pkg/lock"
	"github.com/arthur-debert/plugdeploy/pkg/orchestrator"
	"github.com/arthur-debert/plugdeploy/pkg/types"
)

// TimeLayout is used for every timestamp shown to people.
const TimeLayout = "2006-01-02 15:04:05 MST"

// Convert builds the Report for v. It returns false for values it does
// not know how to draw.
func Convert(v interface{}) (*Report, bool) {
	switch r := v.(type) {
	case *types.InstallResult:
		return FromInstall(r), true
	case *types.UpgradeResult:
		return FromUpgrade(r), true
	case *types.RollbackResult:
		return FromRollback(r), true
	case *orchestrator.StatusReport:
		return FromStatus(r), true
	case []backup.Snapshot:
		return FromSnapshots(r), true
	case lock.Info:
		return FromLock(r), true
	case *lock.Info:
		return FromLock(*r), true
	default:
		return nil, false
	}
}

// FromInstall converts an install result.
func FromInstall(r *types.InstallResult) *Report {
	rep := &Report{Title: "Install", Status: string(r.Status)}
	rep.field("Version", r.Version)
	rep.field("Files copied", strconv.Itoa(r.FilesCopied))
	rep.field("Coverage", coverage.Format(r.Coverage))
	rep.field("State", r.State.String())
	rep.field("Backup", r.BackupDir)
	rep.field("Ran as", r.RanAs)
	rep.field("Duration", duration(r.Duration))
	rep.field("Error", r.ErrorMessage)
	rep.section("Skipped files", KindError, r.Errors)
	return rep
}

// FromUpgrade converts an upgrade result.
func FromUpgrade(r *types.UpgradeResult) *Report {
	rep := &Report{Title: "Upgrade", Status: string(r.Status)}
	version := r.Version
	if r.PreviousVersion != "" && r.PreviousVersion != r.Version {
		version = r.PreviousVersion + " -> " + r.Version
	}
	rep.field("Version", version)
	rep.field("Files added", strconv.Itoa(r.FilesAdded))
	rep.field("Files updated", strconv.Itoa(r.FilesUpdated))
	rep.field("Files unchanged", strconv.Itoa(r.FilesUnchanged))
	if r.FilesRemoved > 0 {
		rep.field("Files removed", strconv.Itoa(r.FilesRemoved))
	}
	if r.FilesRestored > 0 {
		rep.field("Files restored", strconv.Itoa(r.FilesRestored))
	}
	rep.field("Coverage", coverage.Format(r.Coverage))
	rep.field("State", r.State.String())
	rep.field("Backup", r.BackupDir)
	rep.field("Ran as", r.RanAs)
	rep.field("Duration", duration(r.Duration))
	rep.field("Error", r.ErrorMessage)
	rep.section("Customized files", KindPath, r.CustomizedFiles)
	rep.section("Obsolete files", KindPath, r.ObsoleteFiles)
	rep.section("Skipped files", KindError, r.Errors)
	return rep
}

// FromRollback converts a rollback result.
func FromRollback(r *types.RollbackResult) *Report {
	rep := &Report{Title: "Rollback", Status: string(r.Status)}
	rep.field("Backup", r.BackupDir)
	rep.field("Files restored", strconv.Itoa(r.FilesRestored))
	rep.field("Error", r.ErrorMessage)
	return rep
}

// FromStatus converts a status report.
func FromStatus(s *orchestrator.StatusReport) *Report {
	rep := &Report{Title: "Status"}
	rep.field("Target", s.Target)
	rep.field("Installed", yesNo(s.Installed))
	if m := s.Marker; m != nil {
		rep.field("Version", m.Version)
		if !m.Timestamp.IsZero() {
			rep.field("Installed at", m.Timestamp.Local().Format(TimeLayout))
		}
		rep.field("Files", strconv.Itoa(m.FilesInstalled))
		rep.field("Coverage", coverage.Format(m.Coverage))
		rep.field("Source", m.Source)
	}
	rep.field("Marker error", s.MarkerError)
	rep.field("Lock", lockSummary(s.Lock))

	names := make([]string, 0, len(s.Backups))
	for _, b := range s.Backups {
		names = append(names, b.Name)
	}
	rep.section("Backups", KindPath, names)
	return rep
}

// FromSnapshots converts a snapshot listing, newest first.
func FromSnapshots(snapshots []backup.Snapshot) *Report {
	rep := &Report{Title: "Backups"}
	rep.field("Count", strconv.Itoa(len(snapshots)))
	items := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		item := s.Path
		if !s.Created.IsZero() {
			item = fmt.Sprintf("%s (%s)", s.Path, s.Created.Local().Format(TimeLayout))
		}
		if s.Symlink {
			item += " [symlink, ignored]"
		}
		items = append(items, item)
	}
	rep.section("Snapshots", KindPath, items)
	return rep
}

// FromLock converts a lock inspection.
func FromLock(info lock.Info) *Report {
	rep := &Report{Title: "Lock"}
	rep.field("Path", info.Path)
	rep.field("State", lockSummary(info))
	if info.Held {
		rep.field("Modified", info.ModTime.Local().Format(TimeLayout))
	}
	return rep
}

func lockSummary(info lock.Info) string {
	if !info.Held {
		return "free"
	}
	s := "held for " + duration(info.Age)
	if info.Age <= 0 {
		s = "held"
	}
	if info.Stale {
		s += " (stale)"
	}
	return s
}

func duration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
