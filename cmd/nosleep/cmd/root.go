package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/nosleep/internal/logger"
	"github.com/oshokin/nosleep/internal/service/daemon"
	"github.com/oshokin/nosleep/internal/version"
)

var (
	// configPath to the configuration YAML file, empty for built-in defaults.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd runs the daemon in the foreground.
	rootCmd = &cobra.Command{
		Use:   "noSleep",
		Short: "Prevent macOS sleep when the lid is closed on AC power.",
		Long: `Runs the noSleep daemon in the foreground.

The daemon holds a system sleep assertion while the Mac is on AC power with the
lid closed and releases it as soon as either condition changes:

    AC + Lid Closed  ->  Prevent sleep
    AC + Lid Open    ->  Allow sleep (system default)
    Battery          ->  Allow sleep (system default)

Only one instance may run at a time. Use the start command to run it under launchd.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &daemon.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
			}

			return daemon.Run(ctx, options)
		},
	}
)

// Execute runs the noSleep CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			_, _ = fmt.Fprintln(os.Stderr, "[ERROR] Another instance is already running")
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		}

		logger.Sync()
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(statusCmd, doctorCmd, startCmd, stopCmd, restartCmd, uninstallCmd)
}
