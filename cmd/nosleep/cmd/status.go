package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/nosleep/internal/config"
	"github.com/oshokin/nosleep/internal/repository/state"
	"github.com/oshokin/nosleep/internal/service/status"
	"github.com/oshokin/nosleep/internal/system"
)

var (
	// statusCmd prints the short status block.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show current power, lid and daemon state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := collectReport(cmd.Context())
			if err != nil {
				return err
			}

			return status.WriteStatus(cmd.OutOrStdout(), report)
		},
	}

	// doctorCmd prints read-only diagnostics.
	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics (read-only).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := collectReport(cmd.Context())
			if err != nil {
				return err
			}

			return status.WriteDoctor(cmd.OutOrStdout(), report)
		},
	}
)

func collectReport(ctx context.Context) (*status.Report, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	manager, err := newManager(settings)
	if err != nil {
		return nil, err
	}

	binary, err := os.Executable()
	if err != nil {
		binary = os.Args[0]
	}

	collector := &status.Collector{
		NewReader: system.NewReader,
		Service:   manager,
		LockFile:  settings.LockFile,
		Binary:    binary,
	}

	if settings.StateFile != "" {
		collector.Statuses = state.NewFileRepository(settings.StateFile)
	}

	return collector.Collect(ctx), nil
}

func loadSettings() (*config.Config, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return settings, nil
}
