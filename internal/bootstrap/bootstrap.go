// Package bootstrap orchestrates the provisioning pipeline: platform
// detection, system packages, payload fetch, Python environment,
// device access, launcher artifacts, and finally the completion
// marker. The marker is the contract: it is written only when every
// required step verified, so its presence alone selects the fast
// launch path on the next run.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/team-slide/y1setup/internal/depspec"
	"github.com/team-slide/y1setup/internal/launcher"
	"github.com/team-slide/y1setup/internal/logging"
	"github.com/team-slide/y1setup/internal/marker"
	"github.com/team-slide/y1setup/internal/paths"
	"github.com/team-slide/y1setup/internal/payload"
	"github.com/team-slide/y1setup/internal/platform"
	"github.com/team-slide/y1setup/internal/provision"
	"github.com/team-slide/y1setup/internal/pyenv"
	rn "github.com/team-slide/y1setup/internal/runner"
	"github.com/team-slide/y1setup/internal/sudo"
	"github.com/team-slide/y1setup/internal/udev"
)

// Options tune one pipeline run.
type Options struct {
	// Version is the running tool version, recorded in the marker.
	Version string
	// SkipDeviceAccess leaves udev configuration out (doctor --fix
	// reapplies it later).
	SkipDeviceAccess bool
}

// Pipeline wires the provisioning components. Zero value is not
// usable; construct with New.
type Pipeline struct {
	runner rn.Runner
	run    *logging.Run
}

// New builds a Pipeline around a per-run logger.
func New(run *logging.Run) *Pipeline {
	return &Pipeline{runner: rn.ExecRunner{}, run: run}
}

// Provision executes the full slow path and writes the completion
// marker. Returns the final marker state for reporting.
func (p *Pipeline) Provision(ctx context.Context, opts Options) (*marker.State, error) {
	log := p.run.Logger
	installRoot, err := paths.InstallRoot()
	if err != nil {
		return nil, err
	}

	m, err := depspec.Load()
	if err != nil {
		return nil, err
	}

	profile := platform.Detect(p.runner, log)
	log.Info("platform detected",
		"os", profile.OSFamily, "arch", profile.Arch,
		"distro", profile.DistroID, "package_manager", profile.PackageManager)

	// Hold the privilege cache warm for the whole run; released on
	// every exit path.
	if needsSudo(profile) {
		if err := sudo.Prime(ctx); err != nil {
			return nil, err
		}
	}
	keepalive := &sudo.KeepAlive{Log: log}
	keepalive.Start(ctx)
	defer keepalive.Stop()

	prov := &provision.Provisioner{Runner: p.runner, Log: log, Profile: profile}

	if profile.OSFamily == platform.OSDarwin {
		if err := prov.EnsureCommandLineTools(ctx); err != nil {
			return nil, err
		}
	}

	report, err := prov.Run(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("provisioning system packages: %w", err)
	}

	fetcher := &payload.Fetcher{Runner: p.runner, Log: log}
	if err := fetcher.Fetch(ctx, installRoot); err != nil {
		return nil, err
	}

	builder := &pyenv.Builder{
		Runner:  p.runner,
		Log:     log,
		Profile: profile,
	}
	if !profile.Generic() {
		builder.SystemInstall = prov.InstallPackage
	}

	venvRoot, err := paths.VenvRoot()
	if err != nil {
		return nil, err
	}
	envRes, err := builder.Build(ctx, venvRoot, m, report.GUIPipFallback)
	if err != nil {
		return nil, fmt.Errorf("building Python environment: %w", err)
	}

	if !opts.SkipDeviceAccess {
		switch profile.OSFamily {
		case platform.OSLinux:
			cfg := &udev.Configurator{Runner: p.runner, Log: log}
			if err := cfg.Apply(ctx); err != nil {
				// Device access can be fixed later; flashing will need
				// elevated privileges until then.
				log.Warn("device access configuration failed", "error", err)
			}
		case platform.OSDarwin:
			log.Info(udev.DarwinGuidance)
		}
	}

	scriptPath, err := launcher.WriteScript(installRoot)
	if err != nil {
		log.Warn("could not write launcher script", "error", err)
	} else if _, err := launcher.WriteDesktopEntry(scriptPath, installRoot); err != nil {
		log.Warn("could not write desktop entry", "error", err)
	}

	state, err := p.writeMarker(opts, report.GUIPipFallback, report.Failed, envRes)
	if err != nil {
		return nil, err
	}
	log.Info("provisioning complete")
	return state, nil
}

// Update refreshes the payload and rebuilds the environment against
// it, preserving the GUI-toolkit decision recorded in the marker.
func (p *Pipeline) Update(ctx context.Context, opts Options) (*marker.State, error) {
	log := p.run.Logger
	installRoot, err := paths.InstallRoot()
	if err != nil {
		return nil, err
	}
	markerPath, err := paths.MarkerPath()
	if err != nil {
		return nil, err
	}
	prev, err := marker.Read(markerPath)
	if err != nil {
		return nil, err
	}

	m, err := depspec.Load()
	if err != nil {
		return nil, err
	}

	profile := platform.Detect(p.runner, log)

	fetcher := &payload.Fetcher{Runner: p.runner, Log: log}
	if err := fetcher.Update(ctx, installRoot); err != nil {
		return nil, err
	}

	builder := &pyenv.Builder{Runner: p.runner, Log: log, Profile: profile}
	venvRoot, err := paths.VenvRoot()
	if err != nil {
		return nil, err
	}
	envRes, err := builder.Build(ctx, venvRoot, m, prev.GUIPipFallback)
	if err != nil {
		return nil, fmt.Errorf("rebuilding Python environment: %w", err)
	}

	state, err := p.writeMarker(opts, prev.GUIPipFallback, nil, envRes)
	if err != nil {
		return nil, err
	}
	log.Info("update complete")
	return state, nil
}

// writeMarker assembles and persists the completion state. A failed
// cryptography verification is recorded as a warning in the marker
// rather than blocking completion.
func (p *Pipeline) writeMarker(opts Options, guiPip bool, failedSystem []string, envRes *pyenv.Result) (*marker.State, error) {
	state := marker.State{
		Completed:      true,
		Timestamp:      time.Now().UTC(),
		Version:        opts.Version,
		LogPath:        p.run.LogPath,
		CryptoVerified: envRes.Crypto.Verified,
		GUIPipFallback: guiPip,
	}
	for _, name := range failedSystem {
		state.Warnings = append(state.Warnings, fmt.Sprintf("optional system package %q not installed", name))
	}
	for _, name := range envRes.Failed {
		state.Warnings = append(state.Warnings, fmt.Sprintf("optional Python package %q not installed", name))
	}
	if !envRes.Crypto.Verified {
		state.Warnings = append(state.Warnings,
			"cryptography support could not be verified; firmware operations may fail")
	}

	markerPath, err := paths.MarkerPath()
	if err != nil {
		return nil, err
	}
	if err := marker.Write(markerPath, state); err != nil {
		return nil, err
	}
	return &state, nil
}

// needsSudo reports whether the provisioning branch requires elevated
// privileges (every Linux manager does; Homebrew forbids them).
func needsSudo(profile platform.Profile) bool {
	return profile.OSFamily == platform.OSLinux && !profile.Generic()
}
