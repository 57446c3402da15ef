package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/nosleep/internal/logger"
)

// Config holds the tunables of the daemon.
// The prevention rule itself (AC power and lid closed) is fixed and not configurable.
type Config struct {
	// LockFile is the well-known path of the single-instance lock.
	LockFile string `yaml:"lock_file"`
	// StateFile is where the daemon publishes its current decision for the CLI.
	StateFile string `yaml:"state_file"`
	// LogLevel is the minimum level of daemon log messages.
	LogLevel string `yaml:"log_level"`
	// Debounce is the quiet window used to coalesce bursts of OS notifications.
	Debounce time.Duration `yaml:"debounce"`
	// Notifications configures user-visible notifications.
	Notifications Notifications `yaml:"notifications"`
}

// Notifications configures the notification dispatcher.
type Notifications struct {
	// Enabled turns user notifications on or off.
	Enabled bool `yaml:"enabled"`
	// MinInterval is the minimum time between two notification helper launches.
	MinInterval time.Duration `yaml:"min_interval"`
	// RetryBackoff is the delay before retrying after the helper failed to start.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// Helper is the path of the notification helper executable.
	Helper string `yaml:"helper"`
}

const (
	// DefaultLockFile is where the daemon keeps its advisory lock.
	DefaultLockFile = "/tmp/noSleep.lock"

	// DefaultStateFile is where the daemon publishes its status.
	DefaultStateFile = "/tmp/noSleep.state.yaml"

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultDebounce is the quiet window of the event coalescer.
	DefaultDebounce = 150 * time.Millisecond

	// DefaultNotifyInterval is the minimum interval between notifications.
	DefaultNotifyInterval = 2 * time.Second

	// DefaultNotifyRetryBackoff is the delay after a failed helper launch.
	DefaultNotifyRetryBackoff = time.Second

	// DefaultNotifyHelper displays notifications through AppleScript.
	DefaultNotifyHelper = "/usr/bin/osascript"

	// DefaultFilePermissions is used for files written by the daemon.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errLockFileRequired is returned when the lock path is blank.
	errLockFileRequired = errors.New("lock file path must be provided")
	// errUnknownLogLevel is returned for unparsable log levels.
	errUnknownLogLevel = errors.New("unknown log level")
	// errNegativeDuration is returned when a duration is below zero.
	errNegativeDuration = errors.New("duration must not be negative")
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LockFile:  DefaultLockFile,
		StateFile: DefaultStateFile,
		LogLevel:  DefaultLogLevel,
		Debounce:  DefaultDebounce,
		Notifications: Notifications{
			Enabled:      true,
			MinInterval:  DefaultNotifyInterval,
			RetryBackoff: DefaultNotifyRetryBackoff,
			Helper:       DefaultNotifyHelper,
		},
	}
}

// Load reads configuration from the provided path and validates it.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// Values absent from the file keep their defaults.
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills in defaults for zero values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.LockFile == "" {
		return errLockFileRequired
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	durations := map[string]time.Duration{
		"debounce":                    cfg.Debounce,
		"notifications.min_interval":  cfg.Notifications.MinInterval,
		"notifications.retry_backoff": cfg.Notifications.RetryBackoff,
	}
	for name, value := range durations {
		if value < 0 {
			return fmt.Errorf("%s: %w", name, errNegativeDuration)
		}
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}

	if cfg.Notifications.MinInterval == 0 {
		cfg.Notifications.MinInterval = DefaultNotifyInterval
	}

	if cfg.Notifications.RetryBackoff == 0 {
		cfg.Notifications.RetryBackoff = DefaultNotifyRetryBackoff
	}

	if cfg.Notifications.Helper == "" {
		cfg.Notifications.Helper = DefaultNotifyHelper
	}

	return nil
}
