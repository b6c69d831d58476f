package plugdeploy

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Install and upgrade plugin packages safely"
	MsgInstallShort    = "Install a package into a target directory"
	MsgUpgradeShort    = "Upgrade an installed package, keeping your customizations"
	MsgRollbackShort   = "Restore a target from a backup snapshot"
	MsgStatusShort     = "Show the installation state of a target"
	MsgDiffShort       = "Show how an installed file differs from the package"
	MsgLockShort       = "Inspect or clear the target lock"
	MsgLockStatusShort = "Show whether the target is locked"
	MsgLockClearShort  = "Remove the target lock"
	MsgBackupsShort    = "List backup snapshots of a target"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"
	MsgGenConfigShort  = "Print the default configuration"
	MsgGenConfigLong   = "Output the default configuration with every value commented out.\n\nWith -w the file is written to <target>/.plugdeploy.toml."

	// Status messages
	MsgLockFree         = "%s is not locked"
	MsgLockCleared      = "Removed lock %s"
	MsgLockKept         = "Lock left in place"
	MsgConfigWritten    = "Wrote %s"
	MsgStaleLockTitle   = "Clear stale lock?"
	MsgStaleLockDesc    = "The lock %v is %v old and was probably left by a crashed run."
	MsgClearLockTitle   = "Clear lock?"
	MsgClearLockDesc    = "The lock %s is %s old. Clearing a lock held by a running install can corrupt the target."
	MsgInterrupted      = "Interrupted, releasing locks"
	MsgVersionFormat    = "plugdeploy version %s\n  commit: %s\n  built:  %s\n"
	MsgErrNoCommand     = "no command specified"
	MsgErrConfigExists  = "%s already exists"
	MsgErrNotAnswerable = "refusing to clear the lock without confirmation; pass --yes"

	// Flag descriptions
	MsgFlagVerbose        = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagFormat         = "Output format: auto, term, text, json or markdown"
	MsgFlagConfig         = "Configuration file (default is $XDG_CONFIG_HOME/plugdeploy/config.toml)"
	MsgFlagForce          = "Overwrite customized files (they are still backed up and reported)"
	MsgFlagPrune          = "Remove unmodified files the package no longer ships"
	MsgFlagClearStaleLock = "Remove a stale lock left by a crashed run"
	MsgFlagNoProgress     = "Do not draw progress bars"
	MsgFlagTarget         = "Target directory"
	MsgFlagYes            = "Do not ask for confirmation"
	MsgFlagWrite          = "Write the configuration to the target instead of stdout"

	// DefaultTarget is used when no target argument is given.
	DefaultTarget = ".claude"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/install-long.txt
	msgInstallLongRaw string
	MsgInstallLong    = strings.TrimSpace(msgInstallLongRaw)

	//go:embed msgs/upgrade-long.txt
	msgUpgradeLongRaw string
	MsgUpgradeLong    = strings.TrimSpace(msgUpgradeLongRaw)

	//go:embed msgs/rollback-long.txt
	msgRollbackLongRaw string
	MsgRollbackLong    = strings.TrimSpace(msgRollbackLongRaw)
)
