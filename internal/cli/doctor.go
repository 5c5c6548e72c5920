package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/team-slide/y1setup/internal/depspec"
	"github.com/team-slide/y1setup/internal/logging"
	"github.com/team-slide/y1setup/internal/marker"
	"github.com/team-slide/y1setup/internal/paths"
	"github.com/team-slide/y1setup/internal/platform"
	"github.com/team-slide/y1setup/internal/pyenv"
	rn "github.com/team-slide/y1setup/internal/runner"
	"github.com/team-slide/y1setup/internal/udev"
)

var doctorFix bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Reapply device access configuration")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the installation",
	Long:  `Run diagnostic checks on the provisioned environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner := rn.ExecRunner{}
		log := logging.Discard()

		profile := platform.Detect(runner, log)
		fmt.Println("Platform:")
		fmt.Printf("  [ OK ] os=%s arch=%s\n", profile.OSFamily, profile.Arch)
		if profile.OSFamily == platform.OSLinux {
			if profile.Generic() {
				fmt.Printf("  [WARN] no supported package manager detected; generic mode\n")
			} else {
				fmt.Printf("  [ OK ] distro=%s package_manager=%s\n", profile.DistroID, profile.PackageManager)
			}
		}

		runBinaryChecks()
		runEnvChecks(ctx, runner)
		switch profile.OSFamily {
		case platform.OSLinux:
			runDeviceChecks(ctx, runner)
		case platform.OSDarwin:
			fmt.Println("Device access:")
			fmt.Printf("  [INFO] %s\n", strings.ReplaceAll(udev.DarwinGuidance, "\n", "\n         "))
		}
		runMarkerCheck()
		return nil
	},
}

func runBinaryChecks() {
	fmt.Println("Binaries:")
	m, err := depspec.Load()
	if err != nil {
		fmt.Printf("  [FAIL] cannot load dependency manifest: %v\n", err)
		return
	}
	for _, pkg := range m.System {
		if pkg.CheckBinary == "" {
			continue
		}
		checkBinary(pkg.CheckBinary, pkg.Required)
	}
}

func checkBinary(name string, required bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		if required {
			fmt.Printf("  [FAIL] %s not found\n", name)
		} else {
			fmt.Printf("  [WARN] %s not found (optional)\n", name)
		}
		return
	}
	fmt.Printf("  [ OK ] %s found at %s\n", name, path)
}

func runEnvChecks(ctx context.Context, runner rn.Runner) {
	fmt.Println("Python environment:")
	venvRoot, err := paths.VenvRoot()
	if err != nil {
		fmt.Printf("  [FAIL] cannot resolve environment path: %v\n", err)
		return
	}
	python := paths.VenvPython(venvRoot)
	if _, err := os.Stat(python); err != nil {
		fmt.Printf("  [FAIL] interpreter missing at %s\n", python)
		return
	}
	fmt.Printf("  [ OK ] interpreter at %s\n", python)

	if err := pyenv.VerifyCrypto(ctx, runner, venvRoot); err != nil {
		fmt.Printf("  [FAIL] cryptography round-trip failed: %v\n", err)
	} else {
		fmt.Printf("  [ OK ] cryptography round-trip\n")
	}
}

func runDeviceChecks(ctx context.Context, runner rn.Runner) {
	fmt.Println("Device access:")
	content, err := os.ReadFile(udev.DefaultRulesPath)
	switch {
	case err == nil && string(content) == udev.RuleContent():
		fmt.Printf("  [ OK ] udev rules at %s\n", udev.DefaultRulesPath)
		return
	case err == nil:
		fmt.Printf("  [WARN] udev rules at %s are outdated\n", udev.DefaultRulesPath)
	default:
		fmt.Printf("  [WARN] udev rules missing at %s\n", udev.DefaultRulesPath)
	}

	if !doctorFix {
		fmt.Printf("  [INFO] run 'doctor --fix' to reapply them\n")
		return
	}
	cfg := &udev.Configurator{Runner: runner, Log: logging.Stderr()}
	if err := cfg.Apply(ctx); err != nil {
		fmt.Printf("  [FAIL] reapplying udev rules: %v\n", err)
		return
	}
	fmt.Printf("  [ OK ] udev rules reapplied\n")
}

func runMarkerCheck() {
	fmt.Println("Completion marker:")
	markerPath, err := paths.MarkerPath()
	if err != nil {
		fmt.Printf("  [FAIL] cannot resolve marker path: %v\n", err)
		return
	}
	state, err := marker.Read(markerPath)
	if err != nil {
		fmt.Printf("  [WARN] not provisioned (%v)\n", err)
		return
	}
	fmt.Printf("  [ OK ] provisioned at %s by version %s\n",
		state.Timestamp.Format("2006-01-02 15:04"), state.Version)
	if !state.CryptoVerified {
		fmt.Printf("  [WARN] cryptography was never verified for this installation\n")
	}
	for _, w := range state.Warnings {
		fmt.Printf("  [WARN] %s\n", w)
	}
}
