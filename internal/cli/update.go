package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/team-slide/y1setup/internal/bootstrap"
	"github.com/team-slide/y1setup/internal/branding"
	"github.com/team-slide/y1setup/internal/logging"
	"github.com/team-slide/y1setup/internal/marker"
	"github.com/team-slide/y1setup/internal/paths"
)

var updateNoLaunch bool

// updateEnv refreshes the payload and environment; a test seam like
// provisionEnv.
var updateEnv = func(ctx context.Context, run *logging.Run, opts bootstrap.Options) (*marker.State, error) {
	return bootstrap.New(run).Update(ctx, opts)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the application payload and its dependencies",
	Long: `Pull the latest application payload and rebuild the Python environment
against it. Requires a completed installation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		markerPath, err := paths.MarkerPath()
		if err != nil {
			return err
		}
		if !marker.Exists(markerPath) {
			return fmt.Errorf("nothing to update; run '%s install' first", branding.CLIName())
		}

		run := logging.NewRun(paths.LogDir())
		defer run.Close()

		state, err := updateEnv(cmd.Context(), run, bootstrap.Options{Version: buildVersion})
		if err != nil {
			run.Logger.Error("update failed", "error", err)
			if run.LogPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Full log: %s\n", run.LogPath)
			}
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "✓ Update complete.")
		for _, w := range state.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "  ⚠️  %s\n", w)
		}

		if updateNoLaunch {
			return nil
		}
		return launchApp(cmd.Context())
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateNoLaunch, "no-launch", false, "Update only, do not start the application")
	rootCmd.AddCommand(updateCmd)
}
