package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/team-slide/y1setup/internal/branding"
	"github.com/team-slide/y1setup/internal/marker"
	"github.com/team-slide/y1setup/internal/paths"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove the remains of an interrupted installation",
	Long: `Delete a partial installation so the next run starts from scratch. Refuses
to touch a completed installation; use 'uninstall' for that.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	markerPath, err := paths.MarkerPath()
	if err != nil {
		return err
	}
	if marker.Exists(markerPath) {
		return fmt.Errorf("installation is complete; run '%s uninstall' to remove it", branding.CLIName())
	}

	installRoot, err := paths.InstallRoot()
	if err != nil {
		return err
	}
	if _, err := os.Stat(installRoot); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clean up.")
		return nil
	}
	if err := os.RemoveAll(installRoot); err != nil {
		return fmt.Errorf("removing %s: %w", installRoot, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed partial installation at %s\n", installRoot)
	return nil
}
