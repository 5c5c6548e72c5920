// Package pyenv builds the isolated Python environment under the
// install directory: a venv recreated from scratch each provisioning
// run, the pip dependency set from the manifest, and the
// cryptography dependency with its ordered fallback strategies.
package pyenv

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/team-slide/y1setup/internal/depspec"
	"github.com/team-slide/y1setup/internal/paths"
	"github.com/team-slide/y1setup/internal/platform"
	rn "github.com/team-slide/y1setup/internal/runner"
)

// Result summarizes one environment build.
type Result struct {
	VenvRoot string
	Failed   []string // optional pip packages that failed
	Crypto   CryptoResult
}

// Builder creates the isolated interpreter environment.
type Builder struct {
	Runner  rn.Runner
	Log     hclog.Logger
	Profile platform.Profile

	// SystemPython is the interpreter used to create the venv.
	// Defaults to "python3" resolved on PATH.
	SystemPython string

	// SystemInstall installs a distro package, used by the OS-native
	// cryptography substitute strategy. Nil when no package manager
	// is available.
	SystemInstall func(ctx context.Context, pkg string) error
}

// Build destroys any existing venv, recreates it, upgrades pip, and
// installs the manifest's Python set. guiPipFallback adds the GUI
// toolkit pip package when no system binding could be installed.
//
// A cryptography dependency that fails every strategy does not fail
// the build; it is reported in Result.Crypto and the caller records
// the degradation.
func (b *Builder) Build(ctx context.Context, venvRoot string, m *depspec.Manifest, guiPipFallback bool) (*Result, error) {
	res := &Result{VenvRoot: venvRoot}

	if err := b.createVenv(ctx, venvRoot, false); err != nil {
		return nil, err
	}

	env := b.buildEnv(ctx)

	if err := b.pipInstall(ctx, venvRoot, env, "--upgrade", "pip"); err != nil {
		// An old pip still installs most packages.
		b.Log.Warn("pip self-upgrade failed, continuing with bundled pip", "error", err)
	}

	for _, pkg := range m.Python {
		if err := b.pipInstall(ctx, venvRoot, env, pkg.Name); err != nil {
			if pkg.Required {
				return res, fmt.Errorf("installing required package %q: %w", pkg.Name, err)
			}
			b.Log.Warn("optional package failed to install, continuing", "package", pkg.Name, "error", err)
			res.Failed = append(res.Failed, pkg.Name)
		}
	}

	if guiPipFallback {
		if err := b.pipInstall(ctx, venvRoot, env, m.GUIToolkit.PipFallback); err != nil {
			return res, fmt.Errorf("installing GUI toolkit %q via pip: %w", m.GUIToolkit.PipFallback, err)
		}
	}

	res.Crypto = b.installCrypto(ctx, venvRoot, env, m.Crypto, guiPipFallback)
	return res, nil
}

// createVenv removes any existing environment and creates a fresh one.
// systemSite grants the venv access to distro-installed site packages,
// used when a distro package substitutes for a pip install.
func (b *Builder) createVenv(ctx context.Context, venvRoot string, systemSite bool) error {
	if err := os.RemoveAll(venvRoot); err != nil {
		return fmt.Errorf("removing previous environment: %w", err)
	}

	python := b.SystemPython
	if python == "" {
		resolved, err := b.Runner.LookPath("python3")
		if err != nil {
			return fmt.Errorf("python3 not found on PATH: %w", err)
		}
		python = resolved
	}

	args := []string{"-m", "venv"}
	if systemSite {
		args = append(args, "--system-site-packages")
	}
	args = append(args, venvRoot)

	b.Log.Info("creating isolated environment", "path", venvRoot)
	res, err := b.Runner.Run(ctx, rn.Cmd{Name: python, Args: args})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("python -m venv exited with code %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

// pipInstall runs the venv's pip with the step-scoped environment.
func (b *Builder) pipInstall(ctx context.Context, venvRoot string, env map[string]string, args ...string) error {
	cmd := rn.Cmd{
		Name: paths.VenvPip(venvRoot),
		Args: append([]string{"install"}, args...),
		Env:  env,
	}
	b.Log.Info("pip install", "command", cmd.String())
	res, err := b.Runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pip exited with code %d: %s", res.ExitCode, tail(res.Stderr))
	}
	return nil
}

// buildEnv derives the compiler search paths native-extension builds
// need, scoped to the pip invocations rather than the whole process.
// On Homebrew systems the openssl keg is not on the default paths.
func (b *Builder) buildEnv(ctx context.Context) map[string]string {
	if b.Profile.PackageManager != platform.PMBrew {
		return nil
	}
	res, err := b.Runner.Run(ctx, rn.Cmd{Name: "brew", Args: []string{"--prefix", "openssl@3"}})
	if err != nil || res.ExitCode != 0 {
		b.Log.Debug("could not resolve openssl prefix from brew")
		return nil
	}
	prefix := firstLine(res.Stdout)
	if prefix == "" {
		return nil
	}
	return map[string]string{
		"LDFLAGS":         "-L" + prefix + "/lib",
		"CPPFLAGS":        "-I" + prefix + "/include",
		"PKG_CONFIG_PATH": prefix + "/lib/pkgconfig",
	}
}
