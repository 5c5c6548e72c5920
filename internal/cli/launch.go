package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/team-slide/y1setup/internal/branding"
	"github.com/team-slide/y1setup/internal/marker"
	"github.com/team-slide/y1setup/internal/paths"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch the updater without any provisioning checks",
	Long: `Start the application directly from the existing environment. Fails when
provisioning has never completed; run '` + branding.CLIName() + ` install' first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		markerPath, err := paths.MarkerPath()
		if err != nil {
			return err
		}
		state, err := marker.Read(markerPath)
		if err != nil {
			return fmt.Errorf("environment is not provisioned; run '%s install' first", branding.CLIName())
		}
		for _, w := range state.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %s\n", w)
		}
		return launchApp(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(launchCmd)
}
