package platform

import (
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"

	rn "github.com/team-slide/y1setup/internal/runner"
)

// Package manager identifiers.
const (
	PMApt     = "apt"
	PMPacman  = "pacman"
	PMDnf     = "dnf"
	PMZypper  = "zypper"
	PMBrew    = "brew"
	PMUnknown = "unknown"
)

// OS family identifiers.
const (
	OSLinux   = "linux"
	OSDarwin  = "darwin"
	OSUnknown = "unknown"
)

// ArchUnknown marks architectures outside the support matrix.
const ArchUnknown = "unknown"

// Profile is the per-run platform classification. Derived once,
// immutable afterwards; provisioning branches on its fields.
type Profile struct {
	OSFamily       string
	Arch           string
	DistroID       string
	DistroLike     []string
	PackageManager string
}

// Generic reports whether no concrete package-manager branch applies
// and the generic multi-manager probe must be used.
func (p Profile) Generic() bool {
	return p.PackageManager == PMUnknown
}

// archMap normalizes uname-style machine strings to Debian-style
// architecture names.
var archMap = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
	"armv7l":  "armhf",
	"armv6l":  "armhf",
	"i386":    "i386",
	"i686":    "i386",
	"armv5l":  "armel",
}

// NormalizeArch maps a machine string to its classification. Unknown
// strings classify as ArchUnknown; callers warn and continue.
func NormalizeArch(machine string) string {
	if a, ok := archMap[strings.ToLower(strings.TrimSpace(machine))]; ok {
		return a
	}
	return ArchUnknown
}

// managerByDistro maps os-release IDs (and ID_LIKE entries) to the
// package manager that distribution family ships.
var managerByDistro = map[string]string{
	"debian":              PMApt,
	"ubuntu":              PMApt,
	"raspbian":            PMApt,
	"linuxmint":           PMApt,
	"pop":                 PMApt,
	"arch":                PMPacman,
	"manjaro":             PMPacman,
	"endeavouros":         PMPacman,
	"fedora":              PMDnf,
	"rhel":                PMDnf,
	"centos":              PMDnf,
	"rocky":               PMDnf,
	"almalinux":           PMDnf,
	"opensuse":            PMZypper,
	"opensuse-leap":       PMZypper,
	"opensuse-tumbleweed": PMZypper,
	"suse":                PMZypper,
	"sles":                PMZypper,
}

// probeOrder is the PATH probe sequence for the generic branch.
var probeOrder = []string{"apt-get", "pacman", "dnf", "zypper", "brew"}

var probeToManager = map[string]string{
	"apt-get": PMApt,
	"pacman":  PMPacman,
	"dnf":     PMDnf,
	"zypper":  PMZypper,
	"brew":    PMBrew,
}

// Detect classifies the current host. It never returns an error:
// failures downgrade fields to their unknown values and are logged.
func Detect(r rn.Runner, log hclog.Logger) Profile {
	return detect(r, log, runtime.GOOS, unameMachine(), "/etc/os-release")
}

// detect is the testable core; osName and machine are injected.
func detect(r rn.Runner, log hclog.Logger, osName, machine, osReleasePath string) Profile {
	p := Profile{
		OSFamily:       OSUnknown,
		Arch:           NormalizeArch(machine),
		PackageManager: PMUnknown,
	}
	if p.Arch == ArchUnknown {
		log.Warn("unrecognized CPU architecture, continuing with generic handling", "machine", machine)
	}

	switch osName {
	case "darwin":
		p.OSFamily = OSDarwin
		if _, err := r.LookPath("brew"); err == nil {
			p.PackageManager = PMBrew
		} else {
			log.Warn("Homebrew not found on PATH; package installation will be skipped")
		}
		return p
	case "linux":
		p.OSFamily = OSLinux
	default:
		log.Warn("unsupported operating system, using generic fallback", "os", osName)
		return p
	}

	rel := readOSRelease(osReleasePath, log)
	p.DistroID = rel.ID
	p.DistroLike = rel.IDLike

	if pm, ok := managerByDistro[rel.ID]; ok {
		p.PackageManager = pm
		return p
	}
	for _, like := range rel.IDLike {
		if pm, ok := managerByDistro[like]; ok {
			p.PackageManager = pm
			return p
		}
	}

	// Unrecognized distro: probe PATH for a usable manager.
	for _, bin := range probeOrder {
		if _, err := r.LookPath(bin); err == nil {
			p.PackageManager = probeToManager[bin]
			log.Info("distro not recognized, picked package manager from PATH",
				"distro", rel.ID, "manager", p.PackageManager)
			return p
		}
	}

	log.Warn("no supported package manager found, using generic fallback branch", "distro", rel.ID)
	return p
}
