// pkg/lock/lock_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Real filesystem (temp dirs), fake clock
// PURPOSE: Test exclusive acquisition, bounded waiting and stale lock handling

package lock_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/lock"
	"github.com/arthur-debert/plugdeploy/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps++
	c.now = c.now.Add(d)
}

func newManager(clock *fakeClock, opts ...lock.Option) *lock.Manager {
	opts = append([]lock.Option{lock.WithClock(clock)}, opts...)
	return lock.New(filesystem.NewOS(), paths.DefaultLayout(), opts...)
}

func plantLock(t *testing.T, target string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(target, ".plugdeploy.lock")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestAcquireRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "not-yet-created")
	m := newManager(&fakeClock{now: time.Now()})

	l, err := m.Acquire(target, false)
	require.NoError(t, err)
	assert.FileExists(t, l.Path())
	assert.Equal(t, target, l.Target())

	info, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "lock is a zero-byte sentinel")

	require.NoError(t, l.Release())
	assert.NoFileExists(t, l.Path())
	require.NoError(t, l.Release(), "release is idempotent")

	l2, err := m.Acquire(target, false)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestAcquire_ConflictAfterBoundedWait(t *testing.T) {
	target := t.TempDir()
	clock := &fakeClock{now: time.Now()}
	plantLock(t, target, clock.now.Add(-time.Minute))

	m := newManager(clock, lock.WithTimeout(2*time.Second), lock.WithPollInterval(500*time.Millisecond))
	_, err := m.Acquire(target, false)
	require.Error(t, err)

	assert.True(t, errors.IsErrorCode(err, errors.ErrLockConflict))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 4, clock.sleeps)
	details := errors.GetErrorDetails(err)
	assert.Equal(t, false, details["stale"])
	assert.Equal(t, filepath.Join(target, ".plugdeploy.lock"), details["lock_path"])
	assert.FileExists(t, filepath.Join(target, ".plugdeploy.lock"), "a live lock is never removed")
}

func TestAcquire_ZeroTimeoutFailsFast(t *testing.T) {
	target := t.TempDir()
	clock := &fakeClock{now: time.Now()}
	plantLock(t, target, clock.now)

	_, err := newManager(clock, lock.WithTimeout(0)).Acquire(target, false)
	require.Error(t, err)
	assert.Equal(t, 0, clock.sleeps)
}

func TestAcquire_SecondCallerBlockedWhileHeld(t *testing.T) {
	target := t.TempDir()
	clock := &fakeClock{now: time.Now()}
	m := newManager(clock, lock.WithTimeout(time.Second))

	first, err := m.Acquire(target, false)
	require.NoError(t, err)

	other := newManager(clock, lock.WithTimeout(time.Second))
	_, err = other.Acquire(target, false)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrLockConflict))

	require.NoError(t, first.Release())
	second, err := other.Acquire(target, false)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestAcquire_StaleLock(t *testing.T) {
	t.Run("stale lock without confirmation is reported", func(t *testing.T) {
		target := t.TempDir()
		clock := &fakeClock{now: time.Now()}
		path := plantLock(t, target, clock.now.Add(-time.Hour))

		_, err := newManager(clock).Acquire(target, false)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrLockConflict))
		assert.Equal(t, true, errors.GetErrorDetails(err)["stale"])
		assert.Contains(t, err.Error(), "stale")
		assert.Equal(t, 0, clock.sleeps, "no point waiting on a stale lock")
		assert.FileExists(t, path)
	})

	t.Run("stale lock is cleared when confirmed", func(t *testing.T) {
		target := t.TempDir()
		clock := &fakeClock{now: time.Now()}
		plantLock(t, target, clock.now.Add(-time.Hour))

		l, err := newManager(clock).Acquire(target, true)
		require.NoError(t, err)
		assert.True(t, l.ClearedStale)
		assert.GreaterOrEqual(t, l.StaleAge, 59*time.Minute)
		require.NoError(t, l.Release())
	})

	t.Run("clearStale never touches a fresh lock", func(t *testing.T) {
		target := t.TempDir()
		clock := &fakeClock{now: time.Now()}
		path := plantLock(t, target, clock.now.Add(-time.Minute))

		_, err := newManager(clock, lock.WithTimeout(time.Second)).Acquire(target, true)
		require.Error(t, err)
		assert.FileExists(t, path)
	})
}

func TestInspect(t *testing.T) {
	target := t.TempDir()
	clock := &fakeClock{now: time.Now()}
	m := newManager(clock, lock.WithStaleAfter(10*time.Minute))

	info, err := m.Inspect(target)
	require.NoError(t, err)
	assert.False(t, info.Held)

	plantLock(t, target, clock.now.Add(-20*time.Minute))
	info, err = m.Inspect(target)
	require.NoError(t, err)
	assert.True(t, info.Held)
	assert.True(t, info.Stale)
	assert.InDelta(t, (20 * time.Minute).Seconds(), info.Age.Seconds(), 2)
}

func TestClearAndReleaseAll(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newManager(clock)

	a, b := t.TempDir(), t.TempDir()
	_, err := m.Acquire(a, false)
	require.NoError(t, err)
	_, err = m.Acquire(b, false)
	require.NoError(t, err)

	m.ReleaseAll()
	assert.NoFileExists(t, filepath.Join(a, ".plugdeploy.lock"))
	assert.NoFileExists(t, filepath.Join(b, ".plugdeploy.lock"))

	c := t.TempDir()
	path := plantLock(t, c, clock.now)
	require.NoError(t, m.Clear(c))
	assert.NoFileExists(t, path)
	require.NoError(t, m.Clear(c), "clearing an absent lock is a no-op")
}

func TestAcquire_RecordsCreatedDirs(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b")
	m := newManager(&fakeClock{now: time.Now()})

	l, err := m.Acquire(target, false)
	require.NoError(t, err)
	assert.Equal(t, []string{target, filepath.Join(root, "a")}, l.CreatedDirs)

	require.NoError(t, l.Release())
	l.RemoveCreatedDirs()
	assert.NoDirExists(t, filepath.Join(root, "a"))
	assert.DirExists(t, root)
}

func TestRemoveCreatedDirs_KeepsNonEmptyTarget(t *testing.T) {
	target := filepath.Join(t.TempDir(), "fresh")
	m := newManager(&fakeClock{now: time.Now()})

	l, err := m.Acquire(target, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(target, "kept.md"), []byte("x"), 0644))

	require.NoError(t, l.Release())
	l.RemoveCreatedDirs()
	assert.FileExists(t, filepath.Join(target, "kept.md"))
}

func TestAcquire_ExistingTargetCreatesNothing(t *testing.T) {
	target := t.TempDir()
	m := newManager(&fakeClock{now: time.Now()})

	l, err := m.Acquire(target, false)
	require.NoError(t, err)
	assert.Empty(t, l.CreatedDirs)

	require.NoError(t, l.Release())
	l.RemoveCreatedDirs()
	assert.DirExists(t, target)
}

func TestAcquire_LockPathOutsideTargetRejected(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	layout := paths.Layout{LockFile: "../escape.lock"}.WithDefaults()
	m := lock.New(filesystem.NewOS(), layout, lock.WithClock(&fakeClock{now: time.Now()}))

	l, err := m.Acquire(target, false)
	require.Error(t, err)
	assert.Nil(t, l)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSecurity))
	assert.NoFileExists(t, filepath.Join(root, "escape.lock"))
	assert.NoDirExists(t, target, "the target created for the lock is removed again")
}
