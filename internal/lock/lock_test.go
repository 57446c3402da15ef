package lock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestInstanceLock_MutualExclusion verifies a second holder is refused until the first releases.
func TestInstanceLock_MutualExclusion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "noSleep.lock")

	first := New(path)
	second := New(path)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, first.Held())

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, second.Held())

	first.Release(ctx)
	require.False(t, first.Held())

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	second.Release(ctx)
}

// TestInstanceLock_WritesPIDAndRemovesFile checks the file content and cleanup.
func TestInstanceLock_WritesPIDAndRemovesFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "noSleep.lock")

	// Stale content from a previous run is replaced.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), filePermissions))

	l := New(path)

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(contents))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())

	// Acquire while held is a no-op.
	ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	l.Release(ctx)
	l.Release(ctx)

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstanceLock_AcquireFailsOnBadPath ensures open errors are reported, not swallowed.
func TestInstanceLock_AcquireFailsOnBadPath(t *testing.T) {
	t.Parallel()

	l := New(filepath.Join(t.TempDir(), "missing-dir", "noSleep.lock"))

	ok, err := l.Acquire(context.Background())
	require.Error(t, err)
	require.False(t, ok)
	require.False(t, l.Held())
}

// TestReadOwner covers live, stale, missing and malformed lock files.
func TestReadOwner(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := ReadOwner(filepath.Join(dir, "missing.lock"))
	require.ErrorIs(t, err, ErrNoOwner)

	live := filepath.Join(dir, "live.lock")
	require.NoError(t, os.WriteFile(live, []byte(strconv.Itoa(os.Getpid())+"\n"), filePermissions))

	owner, err := ReadOwner(live)
	require.NoError(t, err)
	require.Equal(t, Owner{PID: os.Getpid(), Alive: true}, owner)

	stale := filepath.Join(dir, "stale.lock")
	require.NoError(t, os.WriteFile(stale, []byte("999999999\n"), filePermissions))

	owner, err = ReadOwner(stale)
	require.NoError(t, err)
	require.Equal(t, 999999999, owner.PID)
	require.False(t, owner.Alive)

	garbage := filepath.Join(dir, "garbage.lock")
	require.NoError(t, os.WriteFile(garbage, []byte("not-a-pid"), filePermissions))

	_, err = ReadOwner(garbage)
	require.ErrorIs(t, err, errInvalidPID)
}
