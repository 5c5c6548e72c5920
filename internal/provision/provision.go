// Package provision installs the system-level dependency set through
// the package manager selected by platform detection. Exactly one
// manager branch runs per invocation; optional package failures are
// logged and skipped, a required package failure aborts the run.
package provision

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/team-slide/y1setup/internal/depspec"
	"github.com/team-slide/y1setup/internal/platform"
	rn "github.com/team-slide/y1setup/internal/runner"
)

// Report summarizes one provisioning pass.
type Report struct {
	Installed []string
	Skipped   []string // already present
	Failed    []string // optional packages that failed
	// GUIPipFallback is set when no system GUI-toolkit package could
	// be installed and the venv builder must install the pip binding.
	GUIPipFallback bool
}

// Provisioner runs the system-package branch for one platform profile.
type Provisioner struct {
	Runner  rn.Runner
	Log     hclog.Logger
	Profile platform.Profile
}

// Run installs every applicable system package from the manifest, then
// works through the GUI-toolkit fallback chain.
func (p *Provisioner) Run(ctx context.Context, m *depspec.Manifest) (*Report, error) {
	report := &Report{}

	if p.Profile.Generic() {
		// No usable package manager. Required dependencies must
		// already be present; verify instead of installing.
		p.Log.Warn("no supported package manager; verifying required dependencies are preinstalled")
		for _, sp := range m.System {
			if !sp.Required || sp.CheckBinary == "" {
				continue
			}
			if _, err := p.Runner.LookPath(sp.CheckBinary); err != nil {
				return report, fmt.Errorf("required dependency %q not found and no package manager available to install it", sp.Name)
			}
			report.Skipped = append(report.Skipped, sp.Name)
		}
		report.GUIPipFallback = true
		return report, nil
	}

	br, ok := branches[p.Profile.PackageManager]
	if !ok {
		return report, fmt.Errorf("no provisioning branch for package manager %q", p.Profile.PackageManager)
	}

	if err := p.refreshIndex(ctx, br); err != nil {
		// A stale index degrades installs but does not block them.
		p.Log.Warn("package index refresh failed", "error", err)
	}

	for _, sp := range m.System {
		pkgs := sp.PackagesFor(br.manager)
		if len(pkgs) == 0 {
			p.Log.Debug("no packages mapped for manager", "dependency", sp.Name, "manager", br.manager)
			continue
		}

		if sp.CheckBinary != "" {
			if _, err := p.Runner.LookPath(sp.CheckBinary); err == nil {
				p.Log.Info("already present", "dependency", sp.Name)
				report.Skipped = append(report.Skipped, sp.Name)
				continue
			}
		}

		installedAny, err := p.installSet(ctx, br, pkgs)
		if err != nil {
			if sp.Required {
				return report, fmt.Errorf("installing required dependency %q: %w", sp.Name, err)
			}
			p.Log.Warn("optional dependency failed to install, continuing", "dependency", sp.Name, "error", err)
			report.Failed = append(report.Failed, sp.Name)
			continue
		}
		if installedAny {
			report.Installed = append(report.Installed, sp.Name)
		} else {
			report.Skipped = append(report.Skipped, sp.Name)
		}
	}

	report.GUIPipFallback = !p.installGUIToolkit(ctx, br, m.GUIToolkit)
	return report, nil
}

// InstallPackage installs one system package through this profile's
// branch. The environment builder uses it for the OS-native
// cryptography substitute.
func (p *Provisioner) InstallPackage(ctx context.Context, pkg string) error {
	br, ok := branches[p.Profile.PackageManager]
	if !ok {
		return fmt.Errorf("no package manager available to install %q", pkg)
	}
	_, err := p.installSet(ctx, br, []string{pkg})
	return err
}

// installGUIToolkit walks the ordered candidate list for this manager.
// Returns true once one candidate installs; false defers to pip.
func (p *Provisioner) installGUIToolkit(ctx context.Context, br branch, tk depspec.GUIToolkit) bool {
	candidates := tk.SystemCandidates[br.manager]
	for _, pkg := range candidates {
		if p.installed(ctx, br, pkg) {
			p.Log.Info("GUI toolkit binding already present", "package", pkg)
			return true
		}
		if _, err := p.installSet(ctx, br, []string{pkg}); err == nil {
			p.Log.Info("installed GUI toolkit binding", "package", pkg)
			return true
		}
		p.Log.Warn("GUI toolkit candidate failed, trying next", "package", pkg)
	}
	p.Log.Warn("no system GUI toolkit package available, deferring to pip", "fallback", tk.PipFallback)
	return false
}

// installSet installs packages one at a time so a single broken
// package name does not sink its siblings. Reports whether any
// install was actually issued.
func (p *Provisioner) installSet(ctx context.Context, br branch, pkgs []string) (bool, error) {
	installedAny := false
	for _, pkg := range pkgs {
		if p.installed(ctx, br, pkg) {
			p.Log.Debug("package already installed", "package", pkg)
			continue
		}
		cmd := br.install(pkg)
		p.Log.Info("installing package", "command", cmd.String())
		res, err := p.Runner.Run(ctx, cmd)
		if err != nil {
			return installedAny, err
		}
		if res.ExitCode != 0 {
			return installedAny, fmt.Errorf("%s exited with code %d: %s", cmd.String(), res.ExitCode, lastLine(res.Stderr))
		}
		installedAny = true
	}
	return installedAny, nil
}

// installed probes whether a single package is already present.
func (p *Provisioner) installed(ctx context.Context, br branch, pkg string) bool {
	res, err := p.Runner.Run(ctx, br.check(pkg))
	return err == nil && res.ExitCode == 0
}

// refreshIndex updates the package index once per run, for managers
// that separate refresh from install.
func (p *Provisioner) refreshIndex(ctx context.Context, br branch) error {
	if br.refresh == nil {
		return nil
	}
	res, err := p.Runner.Run(ctx, *br.refresh)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d", br.refresh.String(), res.ExitCode)
	}
	return nil
}
