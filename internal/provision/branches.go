package provision

import (
	"strings"

	"github.com/team-slide/y1setup/internal/platform"
	rn "github.com/team-slide/y1setup/internal/runner"
)

// branch holds the command shapes for one package manager.
type branch struct {
	manager string
	// refresh updates the package index; nil when the manager
	// refreshes implicitly on install.
	refresh *rn.Cmd
	install func(pkg string) rn.Cmd
	check   func(pkg string) rn.Cmd
}

func sudoCmd(name string, args ...string) rn.Cmd {
	return rn.Cmd{Name: name, Args: args, Sudo: true}
}

func plainCmd(name string, args ...string) rn.Cmd {
	return rn.Cmd{Name: name, Args: args}
}

var aptRefresh = sudoCmd("apt-get", "update")
var pacmanRefresh = sudoCmd("pacman", "-Sy")

// branches maps each supported package manager to its command shapes.
// Managers not present here fall to the generic verification path.
var branches = map[string]branch{
	platform.PMApt: {
		manager: platform.PMApt,
		refresh: &aptRefresh,
		// sudo's env_reset would strip a DEBIAN_FRONTEND from the
		// caller's environment, so it rides inside the command.
		install: func(pkg string) rn.Cmd {
			return sudoCmd("env", "DEBIAN_FRONTEND=noninteractive", "apt-get", "install", "-y", pkg)
		},
		check: func(pkg string) rn.Cmd { return plainCmd("dpkg", "-s", pkg) },
	},
	platform.PMPacman: {
		manager: platform.PMPacman,
		refresh: &pacmanRefresh,
		install: func(pkg string) rn.Cmd {
			return sudoCmd("pacman", "-S", "--noconfirm", "--needed", pkg)
		},
		check: func(pkg string) rn.Cmd { return plainCmd("pacman", "-Qi", pkg) },
	},
	platform.PMDnf: {
		manager: platform.PMDnf,
		install: func(pkg string) rn.Cmd {
			return sudoCmd("dnf", "install", "-y", pkg)
		},
		check: func(pkg string) rn.Cmd { return plainCmd("rpm", "-q", pkg) },
	},
	platform.PMZypper: {
		manager: platform.PMZypper,
		install: func(pkg string) rn.Cmd {
			return sudoCmd("zypper", "--non-interactive", "install", pkg)
		},
		check: func(pkg string) rn.Cmd { return plainCmd("rpm", "-q", pkg) },
	},
	platform.PMBrew: {
		// Homebrew refuses to run under sudo.
		manager: platform.PMBrew,
		install: func(pkg string) rn.Cmd {
			return plainCmd("brew", "install", pkg)
		},
		check: func(pkg string) rn.Cmd { return plainCmd("brew", "list", "--versions", pkg) },
	},
}

// lastLine returns the final non-empty line of command output, for
// compact error messages.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
