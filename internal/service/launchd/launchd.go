package launchd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/oshokin/nosleep/internal/lock"
	"github.com/oshokin/nosleep/internal/logger"
)

const (
	// Label must match the Label key of the LaunchAgent plist.
	Label = "com.noSleep.daemon"

	// LaunchctlPath is the launchctl executable.
	LaunchctlPath = "/bin/launchctl"

	// PlutilPath validates property lists.
	PlutilPath = "/usr/bin/plutil"

	// StopTimeout bounds the wait for the daemon to exit on stop and restart.
	StopTimeout = 5 * time.Second

	// UninstallTimeout bounds the wait for the daemon to exit on uninstall.
	UninstallTimeout = 3 * time.Second

	// pollInterval is how often the daemon pid is checked while waiting.
	pollInterval = 100 * time.Millisecond

	// messagePrefix starts every progress line.
	messagePrefix = "[noSleep]"
)

// Runner executes a system tool and reports only its exit status.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools with os/exec and discards their output.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", filepath.Base(name), args, err)
	}

	return nil
}

// Paths lists the files the manager works with.
type Paths struct {
	// Plist is the LaunchAgent property list.
	Plist string
	// LockFile is the daemon instance lock.
	LockFile string
	// Binary is the installed executable removed on uninstall.
	Binary string
	// Logs are the launchd stdout and stderr redirections removed on uninstall.
	Logs []string
}

// DefaultPaths returns the locations used by the installer for the given home directory.
func DefaultPaths(home, lockFile string) Paths {
	return Paths{
		Plist:    filepath.Join(home, "Library", "LaunchAgents", Label+".plist"),
		LockFile: lockFile,
		Binary:   filepath.Join(home, "bin", "noSleep"),
		Logs:     []string{"/tmp/noSleep.log", "/tmp/noSleep.err"},
	}
}

// Manager drives the LaunchAgent.
type Manager struct {
	// runner executes launchctl and plutil.
	runner Runner
	// uid selects the gui/<uid> domain.
	uid int
	// paths are the files involved.
	paths Paths
	// out receives progress lines.
	out io.Writer

	// processExists reports whether a pid is alive.
	processExists func(pid int) (bool, error)
	// terminate asks a process to exit.
	terminate func(pid int) error
	// pollInterval is the wait granularity.
	pollInterval time.Duration
}

// NewManager creates a manager for the current user.
func NewManager(runner Runner, paths Paths, out io.Writer) *Manager {
	return &Manager{
		runner:        runner,
		uid:           os.Getuid(),
		paths:         paths,
		out:           out,
		processExists: lock.ProcessExists,
		terminate:     terminate,
		pollInterval:  pollInterval,
	}
}

// Paths returns the files the manager works with.
func (m *Manager) Paths() Paths {
	return m.paths
}

func (m *Manager) domain() string {
	return "gui/" + strconv.Itoa(m.uid)
}

func (m *Manager) service() string {
	return m.domain() + "/" + Label
}

// Loaded reports whether launchd knows the job.
func (m *Manager) Loaded(ctx context.Context) bool {
	return m.runner.Run(ctx, LaunchctlPath, "print", m.service()) == nil
}

// PlistValid reports whether the plist exists and parses.
func (m *Manager) PlistValid(ctx context.Context) bool {
	return m.runner.Run(ctx, PlutilPath, "-lint", m.paths.Plist) == nil
}

// Start enables and bootstraps the job.
func (m *Manager) Start(ctx context.Context) {
	m.printf("%s Starting via launchctl\n", messagePrefix)
	m.bootstrap(ctx)
	m.printf("%s Started\n", messagePrefix)
}

// Stop boots the job out, waits for the daemon and removes a leftover lock file.
func (m *Manager) Stop(ctx context.Context) {
	m.printf("%s Stopping via launchctl\n", messagePrefix)

	pid, hasPID := m.daemonPID(ctx)

	m.bootout(ctx)

	if hasPID {
		m.waitExit(ctx, pid, StopTimeout)
	}

	m.removeLockFile(ctx)

	if hasPID {
		m.printf("%s Stopped (pid %d)\n", messagePrefix, pid)
	} else {
		m.printf("%s Stopped\n", messagePrefix)
	}
}

// Restart signals the daemon, boots the job out and bootstraps it again.
func (m *Manager) Restart(ctx context.Context) {
	m.printf("%s Restarting via launchctl\n", messagePrefix)

	pid, hasPID := m.daemonPID(ctx)
	if hasPID {
		m.signal(ctx, pid)
	}

	m.bootout(ctx)

	if hasPID {
		m.waitExit(ctx, pid, StopTimeout)
	}

	m.removeLockFile(ctx)
	m.bootstrap(ctx)

	m.printf("%s Restarted\n", messagePrefix)
}

// Uninstall stops the daemon and removes every installed file.
func (m *Manager) Uninstall(ctx context.Context) {
	m.printf("%s Uninstalling...\n", messagePrefix)

	m.bootout(ctx)

	if pid, ok := m.daemonPID(ctx); ok {
		m.signal(ctx, pid)
		m.waitExit(ctx, pid, UninstallTimeout)
	}

	for _, path := range []string{m.paths.Plist, m.paths.Binary} {
		m.removeReported(path, true)
	}

	files := append([]string{m.paths.LockFile}, m.paths.Logs...)
	for _, path := range files {
		m.removeReported(path, false)
	}

	m.printf("%s Uninstall complete\n", messagePrefix)
}

func (m *Manager) bootstrap(ctx context.Context) {
	m.launchctl(ctx, "enable", m.service())
	m.launchctl(ctx, "bootstrap", m.domain(), m.paths.Plist)
}

func (m *Manager) bootout(ctx context.Context) {
	m.launchctl(ctx, "bootout", m.domain(), m.paths.Plist)
	m.launchctl(ctx, "disable", m.service())
}

// launchctl runs one subcommand. Failures are expected, e.g. bootout of a job
// that is not loaded, and only logged.
func (m *Manager) launchctl(ctx context.Context, args ...string) {
	if err := m.runner.Run(ctx, LaunchctlPath, args...); err != nil {
		logger.DebugKV(ctx, "launchctl failed", "args", args, "error", err)
	}
}

// daemonPID returns the pid recorded in the lock file, alive or not.
func (m *Manager) daemonPID(ctx context.Context) (int, bool) {
	owner, err := lock.ReadOwner(m.paths.LockFile)
	if owner.PID > 0 {
		return owner.PID, true
	}

	if err != nil && !errors.Is(err, lock.ErrNoOwner) {
		logger.DebugKV(ctx, "Unreadable lock file", "path", m.paths.LockFile, "error", err)
	}

	return 0, false
}

func (m *Manager) signal(ctx context.Context, pid int) {
	if err := m.terminate(pid); err != nil {
		logger.DebugKV(ctx, "Failed to signal daemon", "pid", pid, "error", err)
	}
}

// waitExit polls until pid is gone or timeout elapses.
func (m *Manager) waitExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		alive, err := m.processExists(pid)
		if err == nil && !alive {
			return true
		}

		if time.Now().After(deadline) {
			logger.WarnKV(ctx, "Daemon did not exit in time", "pid", pid, "timeout", timeout)

			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.pollInterval):
		}
	}
}

func (m *Manager) removeLockFile(ctx context.Context) {
	if err := os.Remove(m.paths.LockFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.DebugKV(ctx, "Failed to remove lock file", "path", m.paths.LockFile, "error", err)
	}
}

// removeReported deletes path if it exists and reports the outcome.
// warn controls whether a failed removal is printed.
func (m *Manager) removeReported(path string, warn bool) {
	if path == "" {
		return
	}

	if _, err := os.Stat(path); err != nil {
		return
	}

	if err := os.Remove(path); err != nil {
		if warn {
			m.printf("   Warning: Could not remove %s\n", path)
		}

		return
	}

	m.printf("   Removed: %s\n", path)
}

func (m *Manager) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(m.out, format, args...)
}

func terminate(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	return process.Signal(syscall.SIGTERM)
}
