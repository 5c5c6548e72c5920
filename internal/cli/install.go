package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/team-slide/y1setup/internal/bootstrap"
	"github.com/team-slide/y1setup/internal/launcher"
	"github.com/team-slide/y1setup/internal/logging"
	"github.com/team-slide/y1setup/internal/marker"
	"github.com/team-slide/y1setup/internal/paths"
)

var (
	installForce    bool
	installNoLaunch bool
)

// provisionEnv runs the full pipeline. Swapped out in tests so the
// marker gate can be exercised without touching the host.
var provisionEnv = func(ctx context.Context, run *logging.Run, opts bootstrap.Options) (*marker.State, error) {
	return bootstrap.New(run).Provision(ctx, opts)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Provision the environment and launch the updater",
	Long: `Install system packages, build the isolated Python environment, fetch the
application payload, configure USB device access, and launch the updater.
If a previous run completed, provisioning is skipped entirely and the
application starts immediately.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "Re-run provisioning even if it already completed")
	installCmd.Flags().BoolVar(&installNoLaunch, "no-launch", false, "Provision only, do not start the application")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	markerPath, err := paths.MarkerPath()
	if err != nil {
		return err
	}

	// Fast path: a valid marker means zero provisioning work.
	if !installForce && marker.Exists(markerPath) {
		if installNoLaunch {
			fmt.Fprintln(cmd.OutOrStdout(), "Environment already provisioned. Nothing to do.")
			return nil
		}
		return launchApp(cmd.Context())
	}

	// Invalidate any previous marker first: if reprovisioning is
	// interrupted, the next run must take the slow path again.
	if err := marker.Remove(markerPath); err != nil {
		return err
	}

	run := logging.NewRun(paths.LogDir())
	defer run.Close()

	state, err := provisionEnv(cmd.Context(), run, bootstrap.Options{Version: buildVersion})
	if err != nil {
		run.Logger.Error("provisioning failed", "error", err)
		if run.LogPath != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Full log: %s\n", run.LogPath)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Setup complete.")
	for _, w := range state.Warnings {
		fmt.Fprintf(cmd.OutOrStdout(), "  ⚠️  %s\n", w)
	}

	if installNoLaunch {
		return nil
	}
	return launchApp(cmd.Context())
}

// launchApp starts the GUI from the provisioned environment.
func launchApp(ctx context.Context) error {
	installRoot, err := paths.InstallRoot()
	if err != nil {
		return err
	}
	return launcher.Launch(ctx, logging.Stderr(), installRoot)
}
