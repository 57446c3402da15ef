package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/nosleep/internal/config"
	"github.com/oshokin/nosleep/internal/service/launchd"
)

var (
	// startCmd loads the LaunchAgent.
	startCmd = newServiceCommand("start",
		"Start daemon via launchd (auto-start on login).",
		(*launchd.Manager).Start)

	// stopCmd unloads the LaunchAgent.
	stopCmd = newServiceCommand("stop",
		"Stop daemon (keeps files for restart).",
		(*launchd.Manager).Stop)

	// restartCmd reloads the LaunchAgent.
	restartCmd = newServiceCommand("restart",
		"Stop and start daemon.",
		(*launchd.Manager).Restart)

	// uninstallCmd removes the LaunchAgent and installed files.
	uninstallCmd = newServiceCommand("uninstall",
		"Stop daemon and remove all installed files.",
		(*launchd.Manager).Uninstall)
)

// newServiceCommand wraps one launchd action.
func newServiceCommand(use, short string, action func(*launchd.Manager, context.Context)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			manager, err := newManagerTo(settings, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			action(manager, cmd.Context())

			return nil
		},
	}
}

func newManager(settings *config.Config) (*launchd.Manager, error) {
	return newManagerTo(settings, io.Discard)
}

func newManagerTo(settings *config.Config, out io.Writer) (*launchd.Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	return launchd.NewManager(launchd.ExecRunner{}, launchd.DefaultPaths(home, settings.LockFile), out), nil
}
