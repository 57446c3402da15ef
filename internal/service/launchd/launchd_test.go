package launchd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTestExit = errors.New("exit status 113")

// recordingRunner keeps every command line and fails those listed in failing.
type recordingRunner struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	line := strings.Join(append([]string{filepath.Base(name)}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, line)
	if r.failing[line] {
		return errTestExit
	}

	return nil
}

type managerFixture struct {
	runner     *recordingRunner
	out        *bytes.Buffer
	manager    *Manager
	paths      Paths
	terminated []int
	// aliveChecks is how many more checks report the pid alive.
	aliveChecks int
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	home := t.TempDir()
	tmp := t.TempDir()

	paths := DefaultPaths(home, filepath.Join(tmp, "noSleep.lock"))
	paths.Logs = []string{filepath.Join(tmp, "noSleep.log"), filepath.Join(tmp, "noSleep.err")}

	f := &managerFixture{
		runner: &recordingRunner{failing: make(map[string]bool)},
		out:    new(bytes.Buffer),
		paths:  paths,
	}

	f.manager = NewManager(f.runner, paths, f.out)
	f.manager.uid = 501
	f.manager.pollInterval = time.Millisecond
	f.manager.processExists = func(int) (bool, error) {
		if f.aliveChecks > 0 {
			f.aliveChecks--
			return true, nil
		}

		return false, nil
	}
	f.manager.terminate = func(pid int) error {
		f.terminated = append(f.terminated, pid)
		return nil
	}

	return f
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// TestDefaultPaths matches the installer layout.
func TestDefaultPaths(t *testing.T) {
	t.Parallel()

	p := DefaultPaths("/Users/me", "/tmp/noSleep.lock")
	require.Equal(t, "/Users/me/Library/LaunchAgents/com.noSleep.daemon.plist", p.Plist)
	require.Equal(t, "/Users/me/bin/noSleep", p.Binary)
	require.Equal(t, "/tmp/noSleep.lock", p.LockFile)
	require.Equal(t, []string{"/tmp/noSleep.log", "/tmp/noSleep.err"}, p.Logs)
}

// TestManager_Start enables then bootstraps the job.
func TestManager_Start(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	f.manager.Start(context.Background())

	require.Equal(t, []string{
		"launchctl enable gui/501/com.noSleep.daemon",
		"launchctl bootstrap gui/501 " + f.paths.Plist,
	}, f.runner.calls)
	require.Equal(t, "[noSleep] Starting via launchctl\n[noSleep] Started\n", f.out.String())
}

// TestManager_Loaded maps the exit status of launchctl print.
func TestManager_Loaded(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	require.True(t, f.manager.Loaded(context.Background()))

	f.runner.failing["launchctl print gui/501/com.noSleep.daemon"] = true
	require.False(t, f.manager.Loaded(context.Background()))
}

// TestManager_PlistValid uses plutil -lint.
func TestManager_PlistValid(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	require.True(t, f.manager.PlistValid(context.Background()))

	f.runner.failing["plutil -lint "+f.paths.Plist] = true
	require.False(t, f.manager.PlistValid(context.Background()))
}

// TestManager_StopWaitsForDaemon boots out, waits for the pid and removes the lock file.
func TestManager_StopWaitsForDaemon(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	writeFile(t, f.paths.LockFile, "4242\n")
	f.aliveChecks = 3

	f.manager.Stop(context.Background())

	require.Equal(t, []string{
		"launchctl bootout gui/501 " + f.paths.Plist,
		"launchctl disable gui/501/com.noSleep.daemon",
	}, f.runner.calls)
	require.Zero(t, f.aliveChecks)
	require.Empty(t, f.terminated)
	require.Contains(t, f.out.String(), "[noSleep] Stopped (pid 4242)")

	_, err := os.Stat(f.paths.LockFile)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestManager_StopWithoutDaemon tolerates a missing lock file and failing launchctl.
func TestManager_StopWithoutDaemon(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	f.runner.failing["launchctl bootout gui/501 "+f.paths.Plist] = true

	f.manager.Stop(context.Background())

	require.Len(t, f.runner.calls, 2)
	require.True(t, strings.HasSuffix(f.out.String(), "[noSleep] Stopped\n"))
}

// TestManager_Restart signals the daemon and bootstraps again after it exited.
func TestManager_Restart(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	writeFile(t, f.paths.LockFile, "777\n")
	f.aliveChecks = 1

	f.manager.Restart(context.Background())

	require.Equal(t, []int{777}, f.terminated)
	require.Equal(t, []string{
		"launchctl bootout gui/501 " + f.paths.Plist,
		"launchctl disable gui/501/com.noSleep.daemon",
		"launchctl enable gui/501/com.noSleep.daemon",
		"launchctl bootstrap gui/501 " + f.paths.Plist,
	}, f.runner.calls)
	require.Contains(t, f.out.String(), "[noSleep] Restarted")
}

// TestManager_Uninstall removes every installed file that exists.
func TestManager_Uninstall(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	writeFile(t, f.paths.Plist, "<plist/>")
	writeFile(t, f.paths.Binary, "binary")
	writeFile(t, f.paths.LockFile, "55\n")
	writeFile(t, f.paths.Logs[0], "log")

	f.manager.Uninstall(context.Background())

	require.Equal(t, []int{55}, f.terminated)

	for _, path := range []string{f.paths.Plist, f.paths.Binary, f.paths.LockFile, f.paths.Logs[0]} {
		_, err := os.Stat(path)
		require.ErrorIs(t, err, os.ErrNotExist, path)
		require.Contains(t, f.out.String(), "   Removed: "+path)
	}

	require.NotContains(t, f.out.String(), f.paths.Logs[1])
	require.True(t, strings.HasSuffix(f.out.String(), "[noSleep] Uninstall complete\n"))
}

// TestManager_WaitExitTimesOut gives up on a process that never exits.
func TestManager_WaitExitTimesOut(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t)
	f.manager.processExists = func(int) (bool, error) { return true, nil }

	start := time.Now()
	require.False(t, f.manager.waitExit(context.Background(), 1, 20*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
