// pkg/orchestrator/upgrade_test.go
// TEST TYPE: Integration Test
// DEPENDENCIES: Real filesystem (ALLOWED for symlink handling), fault-injecting FS wrapper
// PURPOSE: Test Upgrade customization handling, locking and automatic rollback

package orchestrator_test

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/marker"
	"github.com/arthur-debert/plugdeploy/pkg/orchestrator"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v2() map[string]string {
	files := make(map[string]string, len(v1))
	for k, v := range v1 {
		files[k] = v
	}
	files["agents/planner.md"] = "planner v2"
	files["commands/deploy.md"] = "deploy v2"
	return files
}

func installV1(t *testing.T, f *fixture) {
	t.Helper()
	writePackage(t, f.source, "1.0.0", v1)
	res := f.orchestrator(t, nil).FreshInstall(f.source, f.target, orchestrator.Options{})
	require.True(t, res.Succeeded(), res.ErrorMessage)
}

func TestUpgrade_CustomizationPreservation(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writeFile(t, f.target, "commands/deploy.md", "my own deploy steps")
	writePackage(t, f.source, "2.0.0", v2())

	res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})

	require.True(t, res.Succeeded(), res.ErrorMessage)
	assert.Equal(t, "2.0.0", res.Version)
	assert.Equal(t, "1.0.0", res.PreviousVersion)
	assert.Equal(t, "planner v2", readFile(t, f.target, "agents/planner.md"), "untouched file is updated")
	assert.Equal(t, "my own deploy steps", readFile(t, f.target, "commands/deploy.md"), "customized file is kept")
	assert.Equal(t, []string{"commands/deploy.md"}, res.CustomizedFiles)
	assert.Equal(t, 1, res.FilesUpdated)
	assert.Equal(t, 0, res.FilesAdded)
	assert.Equal(t, len(v1)-2, res.FilesUnchanged)
	assert.Equal(t, 100.0, res.Coverage)
	assert.Equal(t, types.StateMarkerWritten, res.State)
	require.NotEmpty(t, res.BackupDir)
	assert.Equal(t, "planner v1", readFile(t, res.BackupDir, "agents/planner.md"))

	m, err := marker.Load(filesystem.NewOS(), filepath.Join(f.target, ".plugdeploy-install.json"))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Version)

	t.Run("customization is still detected on the next upgrade", func(t *testing.T) {
		res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})
		require.True(t, res.Succeeded(), res.ErrorMessage)
		assert.Equal(t, []string{"commands/deploy.md"}, res.CustomizedFiles)
		assert.Equal(t, "my own deploy steps", readFile(t, f.target, "commands/deploy.md"))
	})
}

func TestUpgrade_UserFileSurvival(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writeFile(t, f.target, "agents/mine.md", "my agent")
	writeFile(t, f.target, "settings.local.json", `{"theme":"dark"}`)
	writePackage(t, f.source, "2.0.0", v2())
	o := f.orchestrator(t, nil)

	for i := 0; i < 2; i++ {
		res := o.Upgrade(f.source, f.target, orchestrator.Options{PruneObsolete: true, Force: true})
		require.True(t, res.Succeeded(), res.ErrorMessage)
		assert.Equal(t, []string{"agents/mine.md", "settings.local.json"}, res.UserFiles)
		assert.Equal(t, "my agent", readFile(t, f.target, "agents/mine.md"))
		assert.Equal(t, `{"theme":"dark"}`, readFile(t, f.target, "settings.local.json"))
	}
}

func TestUpgrade_ForceOverwritesCustomized(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writeFile(t, f.target, "commands/deploy.md", "my own deploy steps")
	writePackage(t, f.source, "2.0.0", v2())

	res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{Force: true})

	require.True(t, res.Succeeded(), res.ErrorMessage)
	assert.Equal(t, []string{"commands/deploy.md"}, res.CustomizedFiles, "still reported")
	assert.Equal(t, "deploy v2", readFile(t, f.target, "commands/deploy.md"))
	assert.Equal(t, 2, res.FilesUpdated)
	assert.Equal(t, "my own deploy steps", readFile(t, res.BackupDir, "commands/deploy.md"))
}

func TestUpgrade_AddedAndObsoleteFiles(t *testing.T) {
	next := v2()
	delete(next, "hooks/pre_tool.sh")
	next["skills/test/SKILL.md"] = "test skill"

	t.Run("obsolete files are kept by default", func(t *testing.T) {
		f := newFixture(t)
		installV1(t, f)
		writePackage(t, f.source, "2.0.0", next)

		res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})

		require.True(t, res.Succeeded(), res.ErrorMessage)
		assert.Equal(t, 1, res.FilesAdded)
		assert.Equal(t, []string{"hooks/pre_tool.sh"}, res.ObsoleteFiles)
		assert.Equal(t, 0, res.FilesRemoved)
		assert.FileExists(t, filepath.Join(f.target, "hooks/pre_tool.sh"))
		assert.Equal(t, "test skill", readFile(t, f.target, "skills/test/SKILL.md"))

		pruned := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{PruneObsolete: true})
		require.True(t, pruned.Succeeded(), pruned.ErrorMessage)
		assert.Equal(t, 1, pruned.FilesRemoved, "a later prune still knows the file")
		assert.NoFileExists(t, filepath.Join(f.target, "hooks/pre_tool.sh"))
	})

	t.Run("prune removes only pristine obsolete files", func(t *testing.T) {
		f := newFixture(t)
		installV1(t, f)
		writeFile(t, f.target, "hooks/pre_tool.sh", "#!/bin/sh\necho customized\n")
		writePackage(t, f.source, "2.0.0", next)

		res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{PruneObsolete: true})

		require.True(t, res.Succeeded(), res.ErrorMessage)
		assert.Equal(t, 0, res.FilesRemoved)
		assert.Equal(t, "#!/bin/sh\necho customized\n", readFile(t, f.target, "hooks/pre_tool.sh"))
	})
}

func TestUpgrade_WithoutMarkerRunsFreshInstall(t *testing.T) {
	f := newFixture(t)
	writePackage(t, f.source, "1.0.0", v1)

	res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})

	require.True(t, res.Succeeded(), res.ErrorMessage)
	assert.Equal(t, "install", res.RanAs)
	assert.Equal(t, len(v1), res.FilesAdded)
	assert.NotNil(t, res.CustomizedFiles)
	assert.Equal(t, v1, tree(t, f.target))
}

func TestUpgrade_PermissionErrorsAreAccumulated(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writePackage(t, f.source, "2.0.0", v2())

	faulty := filesystem.NewFaulty(filesystem.NewOS()).
		FailOn(filesystem.OpReadFile, filepath.Join(f.source, "hooks/pre_tool.sh"), fs.ErrPermission)

	res := f.orchestrator(t, faulty).Upgrade(f.source, f.target, orchestrator.Options{})

	require.True(t, res.Succeeded(), res.ErrorMessage)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "hooks/pre_tool.sh")
	assert.Equal(t, types.StateMarkerWritten, res.State, "no rollback for a single unreadable file")
	assert.Equal(t, 2, res.FilesUpdated)
	assert.Equal(t, "planner v2", readFile(t, f.target, "agents/planner.md"))
	assert.Equal(t, v1["hooks/pre_tool.sh"], readFile(t, f.target, "hooks/pre_tool.sh"), "unreadable file is left as is")
	assert.Equal(t, 100.0, res.Coverage)

	m, err := marker.Load(filesystem.NewOS(), filepath.Join(f.target, ".plugdeploy-install.json"))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Version)
	assert.True(t, m.Known("hooks/pre_tool.sh"), "skipped file keeps its previous baseline")
}

func TestUpgrade_FatalErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	next := v2()
	next["skills/test/SKILL.md"] = "test skill"
	writePackage(t, f.source, "2.0.0", next)

	// Every file is copied before the marker write fails.
	faulty := filesystem.NewFaulty(filesystem.NewOS()).
		FailOn(filesystem.OpWriteFile, filepath.Join(f.target, ".plugdeploy-install.json.tmp"), stderrors.New("disk full"))

	res := f.orchestrator(t, faulty).Upgrade(f.source, f.target, orchestrator.Options{})

	assert.False(t, res.Succeeded())
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrMarker))
	assert.Equal(t, types.StateLockReleased, res.State)
	assert.Positive(t, res.FilesRestored)
	assert.Equal(t, v1, tree(t, f.target), "target is back at v1 and the new skill is gone")

	m, err := marker.Load(filesystem.NewOS(), filepath.Join(f.target, ".plugdeploy-install.json"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", m.Version)
	assert.NoFileExists(t, filepath.Join(f.target, ".plugdeploy.lock"))
}

func TestUpgrade_RollbackFailureDoesNotMaskCause(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writePackage(t, f.source, "2.0.0", v2())

	// Fails both the upgrade write and the restore of the same file.
	faulty := filesystem.NewFaulty(filesystem.NewOS()).
		FailOn(filesystem.OpWriteFile, filepath.Join(f.target, "agents/planner.md"), stderrors.New("disk full"))

	res := f.orchestrator(t, faulty).Upgrade(f.source, f.target, orchestrator.Options{})

	assert.False(t, res.Succeeded())
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrInstall), "original error comes first")
	assert.True(t, errors.HasErrorCode(res.Err, errors.ErrRollback))
	assert.Contains(t, res.ErrorMessage, "upgrade failed")
	assert.Contains(t, res.ErrorMessage, "rollback from")
	assert.NoFileExists(t, filepath.Join(f.target, ".plugdeploy.lock"))
}

func TestUpgrade_LockExclusion(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writePackage(t, f.source, "2.0.0", v2())
	lockPath := filepath.Join(f.target, ".plugdeploy.lock")
	require.NoError(t, os.WriteFile(lockPath, nil, 0644))

	t.Run("fails fast", func(t *testing.T) {
		res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})

		assert.False(t, res.Succeeded())
		assert.True(t, errors.IsErrorCode(res.Err, errors.ErrLockConflict))
		assert.True(t, errors.IsRetryable(res.Err))
		assert.Equal(t, types.StateLockConflict, res.State)
		assert.Equal(t, "planner v1", readFile(t, f.target, "agents/planner.md"), "nothing is mutated")
		assert.FileExists(t, lockPath, "another run's lock is left alone")
		assert.Contains(t, f.audit.Types(), audit.EventLockConflict)
	})

	t.Run("bounded wait", func(t *testing.T) {
		f.cfg.Lock.Timeout = 300 * time.Millisecond
		f.cfg.Lock.PollInterval = 50 * time.Millisecond
		start := time.Now()

		res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})

		assert.False(t, res.Succeeded())
		assert.True(t, errors.IsErrorCode(res.Err, errors.ErrLockConflict))
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("proceeds once released", func(t *testing.T) {
		require.NoError(t, os.Remove(lockPath))
		res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})
		require.True(t, res.Succeeded(), res.ErrorMessage)
	})
}

func TestUpgrade_StaleLock(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writePackage(t, f.source, "2.0.0", v2())
	lockPath := filepath.Join(f.target, ".plugdeploy.lock")
	require.NoError(t, os.WriteFile(lockPath, nil, 0644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})
	assert.False(t, res.Succeeded())
	assert.Equal(t, true, errors.GetErrorDetails(res.Err)["stale"])
	assert.FileExists(t, lockPath, "stale locks need explicit confirmation")

	res = f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{ClearStaleLock: true})
	require.True(t, res.Succeeded(), res.ErrorMessage)
	assert.Contains(t, f.audit.Types(), audit.EventLockStaleCleared)
	assert.NoFileExists(t, lockPath)
}

func TestUpgrade_RejectsSymlinkEscapingTarget(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	writePackage(t, f.source, "2.0.0", v2())

	outside := filepath.Join(t.TempDir(), "victim.md")
	require.NoError(t, os.WriteFile(outside, []byte("do not touch"), 0644))
	planner := filepath.Join(f.target, "agents/planner.md")
	require.NoError(t, os.Remove(planner))
	require.NoError(t, os.Symlink(outside, planner))

	res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})

	assert.False(t, res.Succeeded())
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrSecurity))
	assert.Equal(t, "do not touch", readFile(t, filepath.Dir(outside), "victim.md"))
}

func TestUpgrade_LegacyMarkerUsesMtime(t *testing.T) {
	f := newFixture(t)
	installV1(t, f)
	installedAt := time.Now().Add(-time.Hour).UTC()

	// Rewrite the marker the way older installs did: no per-file hashes.
	legacy := `{"version":"1.0.0","timestamp":"` + installedAt.Format(time.RFC3339) +
		`","files_installed":5,"coverage":100.0}`
	writeFile(t, f.target, ".plugdeploy-install.json", legacy)
	past := installedAt.Add(-time.Minute)
	for rel := range v1 {
		require.NoError(t, os.Chtimes(filepath.Join(f.target, rel), past, past))
	}
	writeFile(t, f.target, "commands/deploy.md", "edited after install")
	writePackage(t, f.source, "2.0.0", v2())

	res := f.orchestrator(t, nil).Upgrade(f.source, f.target, orchestrator.Options{})

	require.True(t, res.Succeeded(), res.ErrorMessage)
	assert.Equal(t, []string{"commands/deploy.md"}, res.CustomizedFiles)
	assert.Equal(t, "planner v2", readFile(t, f.target, "agents/planner.md"))
}
