package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/team-slide/y1setup/internal/launcher"
	"github.com/team-slide/y1setup/internal/paths"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the provisioned environment",
	Long: `Delete the installation directory (application payload, Python environment,
completion marker) and the launcher artifacts. System packages installed
during provisioning are left alone. Safe to run more than once.`,
	RunE: runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	installRoot, err := paths.InstallRoot()
	if err != nil {
		return err
	}

	if _, err := os.Stat(installRoot); err == nil {
		if err := os.RemoveAll(installRoot); err != nil {
			return fmt.Errorf("removing %s: %w", installRoot, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", installRoot)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "No installation found.")
	}

	if err := launcher.RemoveArtifacts(); err != nil {
		return fmt.Errorf("removing launcher artifacts: %w", err)
	}
	return nil
}
