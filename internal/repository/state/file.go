package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/nosleep/internal/config"
	"github.com/oshokin/nosleep/internal/domain/power"
)

// Status is the last decision published by a running daemon.
type Status struct {
	// PID is the process identifier of the daemon.
	PID int `yaml:"pid"`
	// Preventing reports whether the sleep assertion is held.
	Preventing bool `yaml:"preventing"`
	// OnAC reports whether the machine was on AC power.
	OnAC bool `yaml:"on_ac"`
	// LidClosed reports whether the lid was closed.
	LidClosed bool `yaml:"lid_closed"`
	// BatteryPercent is the battery charge, absent on machines without a battery.
	BatteryPercent *int `yaml:"battery_percent,omitempty"`
	// UpdatedAt is the time of the evaluation.
	UpdatedAt time.Time `yaml:"updated_at"`
}

// NewStatus builds a status from a power snapshot.
func NewStatus(pid int, preventing bool, snapshot power.State, at time.Time) *Status {
	return &Status{
		PID:            pid,
		Preventing:     preventing,
		OnAC:           snapshot.OnAC,
		LidClosed:      snapshot.LidClosed,
		BatteryPercent: snapshot.BatteryPercent,
		UpdatedAt:      at,
	}
}

// Power returns the power snapshot stored in the status.
func (s *Status) Power() power.State {
	return power.State{
		OnAC:           s.OnAC,
		LidClosed:      s.LidClosed,
		BatteryPercent: s.BatteryPercent,
	}
}

// Repository defines persistence operations for the daemon status.
type Repository interface {
	Load(ctx context.Context) (*Status, error)
	Save(ctx context.Context, status *Status) error
	Remove(ctx context.Context) error
}

// FileRepository persists the status to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the status file.
	path string
	// mu protects concurrent access to the status file.
	mu sync.Mutex
}

// ErrNotFound is returned when the status file does not exist.
var ErrNotFound = errors.New("status not found")

// NewFileRepository creates a repository that reads and writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the location of the status file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the status from disk.
func (r *FileRepository) Load(_ context.Context) (*Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read status file: %w", err)
	}

	var status Status
	if err = yaml.Unmarshal(contents, &status); err != nil {
		return nil, fmt.Errorf("decode status file: %w", err)
	}

	return &status, nil
}

// Save writes the status to disk. The file is replaced atomically so readers
// never observe a partial document.
func (r *FileRepository) Save(_ context.Context, status *Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replace status file: %w", err)
	}

	return nil
}

// Remove deletes the status file. A missing file is not an error.
func (r *FileRepository) Remove(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove status file: %w", err)
	}

	return nil
}
