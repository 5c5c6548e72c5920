package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/team-slide/y1setup/internal/branding"
	"github.com/team-slide/y1setup/internal/config"
	"github.com/team-slide/y1setup/internal/paths"
	"github.com/team-slide/y1setup/internal/selfupdate"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` provisions everything the Innioasis Y1 firmware updater needs
(system packages, an isolated Python environment, USB device access) and
launches it. Once provisioning has completed, running it again goes
straight to the application.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()

		// Commands that manage their own lifecycle skip the banner.
		name := cmd.Name()
		if name == "uninstall" || name == "cleanup" || name == "version" {
			return
		}

		// Non-blocking release banner from the cached check.
		selfupdate.New(buildVersion).CheckAndPrintBanner(os.Stderr, paths.ConfigDir())
	},
	// Bare invocation behaves like `install`: provision on first run,
	// fast-path launch afterwards.
	RunE: runInstall,
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
