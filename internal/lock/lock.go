package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/nosleep/internal/logger"
)

// filePermissions lets external tooling read the pid.
const filePermissions = 0o644

var (
	// ErrNoOwner is returned when the lock file does not exist.
	ErrNoOwner = errors.New("lock file not found")
	// errInvalidPID is returned when the lock file content is not a pid.
	errInvalidPID = errors.New("invalid pid in lock file")
)

// InstanceLock guards a single daemon instance.
// The lock is tied to the open descriptor, not to the file's existence.
type InstanceLock struct {
	// path is the well-known lock file location.
	path string

	// mu protects fl.
	mu sync.Mutex
	// fl is non-nil while the lock is held.
	fl *flock.Flock
}

// New creates a lock for the given path. Nothing is opened until Acquire.
func New(path string) *InstanceLock {
	return &InstanceLock{
		path: filepath.Clean(path),
	}
}

// Path returns the lock file location.
func (l *InstanceLock) Path() string {
	return l.path
}

// Acquire takes the lock without waiting. It returns false when another
// process holds it. On success the file is rewritten with the current pid.
func (l *InstanceLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fl != nil {
		return true, nil
	}

	fl := flock.New(l.path)

	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", l.path, err)
	}

	if !locked {
		return false, nil
	}

	l.fl = fl

	// The pid is informational: failing to write it does not give the lock up.
	if err := writePID(l.path, os.Getpid()); err != nil {
		logger.WarnKV(ctx, "Failed to record pid in lock file", "path", l.path, "error", err)
	}

	return true, nil
}

// Release removes the file and unlocks. It is safe to call when not held.
func (l *InstanceLock) Release(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fl == nil {
		return
	}

	// Removing while still locked keeps a concurrent starter's new file intact.
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.DebugKV(ctx, "Failed to remove lock file", "path", l.path, "error", err)
	}

	if err := l.fl.Unlock(); err != nil {
		logger.DebugKV(ctx, "Failed to unlock lock file", "path", l.path, "error", err)
	}

	l.fl = nil
}

// Held reports whether this instance holds the lock.
func (l *InstanceLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.fl != nil
}

// Owner describes the process recorded in a lock file.
type Owner struct {
	// PID is the recorded process identifier.
	PID int
	// Alive reports whether a process with that pid exists.
	Alive bool
}

// ReadOwner parses the lock file and checks whether the recorded process exists.
// A stale file from a crashed daemon yields Alive == false.
func ReadOwner(path string) (Owner, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Owner{}, ErrNoOwner
		}

		return Owner{}, fmt.Errorf("read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return Owner{}, fmt.Errorf("%w: %q", errInvalidPID, strings.TrimSpace(string(contents)))
	}

	alive, err := ProcessExists(pid)
	if err != nil {
		return Owner{PID: pid}, err
	}

	return Owner{PID: pid, Alive: alive}, nil
}

// ProcessExists reports whether a process with the given pid is running.
func ProcessExists(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}

	return process != nil, nil
}

func writePID(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}

	if _, err = f.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		_ = f.Close()
		return err
	}

	// flock may have created the file with stricter permissions.
	if err = f.Chmod(filePermissions); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
