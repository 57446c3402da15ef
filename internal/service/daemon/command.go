package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/nosleep/internal/assertion"
	"github.com/oshokin/nosleep/internal/coalesce"
	"github.com/oshokin/nosleep/internal/config"
	"github.com/oshokin/nosleep/internal/lock"
	"github.com/oshokin/nosleep/internal/logger"
	"github.com/oshokin/nosleep/internal/notify"
	"github.com/oshokin/nosleep/internal/repository/state"
	"github.com/oshokin/nosleep/internal/system"
	"github.com/oshokin/nosleep/internal/version"
)

// Options controls the daemon process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file, empty for defaults.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// errUnknownLogLevel is returned for an unparsable --log-level value.
var errUnknownLogLevel = errors.New("unknown log level")

// Platform opens the OS facilities used by the daemon.
type Platform struct {
	// NewReader opens the power state reader.
	NewReader func() (system.Reader, error)
	// NewAsserter opens the sleep assertion API.
	NewAsserter func() (system.Asserter, error)
	// NewWatcher creates the lid and power-source subscriptions.
	NewWatcher func() (system.Watcher, error)
	// NewLauncher creates the notification helper launcher.
	NewLauncher func(settings *config.Config) notify.Launcher
}

// DefaultPlatform uses the native bindings of the running OS.
func DefaultPlatform() Platform {
	return Platform{
		NewReader:   system.NewReader,
		NewAsserter: system.NewAsserter,
		NewWatcher:  system.NewWatcher,
		NewLauncher: func(settings *config.Config) notify.Launcher {
			return notify.HelperLauncher{
				Path:  settings.Notifications.Helper,
				Title: version.Name,
			}
		},
	}
}

// Run loads the configuration and runs the daemon until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "nosleep-daemon")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	levelName := settings.LogLevel
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, levelName)
	}

	logger.SetLevel(level)

	return Serve(ctx, settings, DefaultPlatform())
}

// Serve runs the lifecycle with the given settings and platform.
// It returns nil after a clean shutdown.
//
//nolint:funlen // The lifecycle reads top to bottom, teardown order follows the defers.
func Serve(ctx context.Context, settings *config.Config, platform Platform) error {
	// Init.
	instanceLock := lock.New(settings.LockFile)

	acquired, err := instanceLock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}

	if !acquired {
		return ErrAlreadyRunning
	}

	defer instanceLock.Release(ctx)

	logger.InfoKV(ctx, "Starting", "version", version.Short(), "lock_file", instanceLock.Path())

	// SettingUp.
	reader, err := platform.NewReader()
	if err != nil {
		return fmt.Errorf("open power state reader: %w", err)
	}

	defer reader.Close()

	asserter, err := platform.NewAsserter()
	if err != nil {
		return fmt.Errorf("open sleep assertion API: %w", err)
	}

	var statuses state.Repository
	if settings.StateFile != "" {
		repo := state.NewFileRepository(settings.StateFile)
		statuses = repo

		defer func() {
			if err := repo.Remove(ctx); err != nil {
				logger.WarnKV(ctx, "Failed to remove status file", "error", err)
			}
		}()
	}

	var notifier notify.Sender = notify.Discard{}
	if settings.Notifications.Enabled {
		dispatcher := notify.NewDispatcher(platform.NewLauncher(settings), notify.Options{
			MinInterval:  settings.Notifications.MinInterval,
			RetryBackoff: settings.Notifications.RetryBackoff,
		})
		dispatcher.Start(ctx)

		notifier = dispatcher

		defer dispatcher.Close()
	}

	var events <-chan system.Source

	watcher, err := platform.NewWatcher()
	if err != nil {
		logger.WarnKV(ctx, "Change notifications unavailable, running degraded", "error", err)
	} else {
		defer watcher.Close()

		for _, installation := range watcher.Start() {
			if installation.Err != nil {
				logger.WarnKV(ctx, "Failed to subscribe to changes, running degraded",
					"source", installation.Source, "error", installation.Err)

				continue
			}

			logger.DebugKV(ctx, "Subscribed to changes", "source", installation.Source)
		}

		events = watcher.Events()
	}

	handle := assertion.New(asserter, system.AssertionName)
	defer handle.Release(ctx)

	coalescer := coalesce.New(settings.Debounce)
	defer coalescer.Stop()

	evaluator := NewEvaluator(reader, handle, notifier, statuses)

	// Running.
	evaluator.Evaluate(logger.WithName(ctx, "evaluator"))
	coalescer.Arm()

	logger.InfoKV(ctx, "Running", "debounce", settings.Debounce, "preventing", handle.Active())

	loop(ctx, events, coalescer, evaluator)

	// ShuttingDown: defers stop the coalescer, release the assertion, close
	// the subscriptions, then drop the status file and the lock.
	logger.Info(ctx, "Shutting down")

	return nil
}

// loop dispatches OS events into the coalescer and evaluates after each burst.
func loop(ctx context.Context, events <-chan system.Source, coalescer *coalesce.Coalescer, evaluator *Evaluator) {
	evalCtx := logger.WithName(ctx, "evaluator")

	for {
		select {
		case <-ctx.Done():
			return
		case source, ok := <-events:
			if !ok {
				events = nil

				continue
			}

			logger.DebugKV(ctx, "Change notification received", "source", source)
			coalescer.Trigger()
		case <-coalescer.C():
			evaluator.Evaluate(evalCtx)
		}
	}
}
