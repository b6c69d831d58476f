package types

import "time"

// OperationStatus is the outcome of an orchestrator entry point.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "success"
	StatusFailure OperationStatus = "failure"
)

// InstallResult is returned by FreshInstall.
type InstallResult struct {
	Status       OperationStatus `json:"status"`
	Version      string          `json:"version,omitempty"`
	FilesCopied  int             `json:"files_copied"`
	Coverage     float64         `json:"coverage"`
	BackupDir    string          `json:"backup_dir,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Errors       []string        `json:"errors,omitempty"`
	State        State           `json:"state"`
	RanAs        string          `json:"ran_as,omitempty"`
	Duration     time.Duration   `json:"duration"`

	// Err carries the typed error behind ErrorMessage.
	Err error `json:"-"`
}

// Succeeded reports whether the install finished successfully.
func (r *InstallResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// UpgradeResult is returned by Upgrade.
type UpgradeResult struct {
	Status          OperationStatus `json:"status"`
	Version         string          `json:"version,omitempty"`
	PreviousVersion string          `json:"previous_version,omitempty"`
	FilesAdded      int             `json:"files_added"`
	FilesUpdated    int             `json:"files_updated"`
	FilesUnchanged  int             `json:"files_unchanged"`
	FilesRemoved    int             `json:"files_removed"`
	FilesRestored   int             `json:"files_restored,omitempty"`
	Coverage        float64         `json:"coverage"`
	CustomizedFiles []string        `json:"customized_files"`
	UserFiles       []string        `json:"user_files,omitempty"`
	ObsoleteFiles   []string        `json:"obsolete_files,omitempty"`
	BackupDir       string          `json:"backup_dir,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Errors          []string        `json:"errors,omitempty"`
	State           State           `json:"state"`
	RanAs           string          `json:"ran_as,omitempty"`
	Duration        time.Duration   `json:"duration"`

	Err error `json:"-"`
}

// Succeeded reports whether the upgrade finished successfully.
func (r *UpgradeResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// FilesCopied returns the number of files written by the upgrade.
func (r *UpgradeResult) FilesCopied() int {
	return r.FilesAdded + r.FilesUpdated
}

// RollbackResult is returned by Rollback.
type RollbackResult struct {
	Status        OperationStatus `json:"status"`
	BackupDir     string          `json:"backup_dir"`
	FilesRestored int             `json:"files_restored"`
	ErrorMessage  string          `json:"error_message,omitempty"`

	Err error `json:"-"`
}

// Succeeded reports whether the rollback finished successfully.
func (r *RollbackResult) Succeeded() bool {
	return r.Status == StatusSuccess
}
