// Package udev grants the invoking user access to the player's USB
// interfaces on Linux: a rules file for the MediaTek vendor IDs the
// device enumerates with, membership in the device-access groups, and
// a rule-engine reload. Every step is idempotent; re-running never
// duplicates rules or memberships.
package udev

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/hashicorp/go-hclog"

	rn "github.com/team-slide/y1setup/internal/runner"
)

// DefaultRulesPath is the fixed rule file location.
const DefaultRulesPath = "/etc/udev/rules.d/99-innioasis-y1.rules"

// accessGroup is the group granted read/write on the device nodes.
const accessGroup = "plugdev"

// serialGroup covers the serial console the device exposes in some
// flashing modes.
const serialGroup = "dialout"

// vendorIDs the device enumerates with: MediaTek BROM/preloader.
var vendorIDs = []string{"0e8d"}

// Configurator applies the device-access configuration.
type Configurator struct {
	Runner rn.Runner
	Log    hclog.Logger

	// RulesPath overrides DefaultRulesPath; used by tests.
	RulesPath string
	// Username overrides the detected invoking user; used by tests.
	Username string
}

// RuleContent renders the rules file.
func RuleContent() string {
	var b strings.Builder
	b.WriteString("# Innioasis Y1 USB access rules. Generated; do not edit.\n")
	for _, vid := range vendorIDs {
		fmt.Fprintf(&b, "SUBSYSTEM==\"usb\", ATTR{idVendor}==\"%s\", MODE=\"0660\", GROUP=\"%s\", TAG+=\"uaccess\"\n", vid, accessGroup)
		fmt.Fprintf(&b, "SUBSYSTEM==\"tty\", ATTRS{idVendor}==\"%s\", MODE=\"0660\", GROUP=\"%s\"\n", vid, serialGroup)
	}
	return b.String()
}

// Apply writes the rules file, adds group memberships, and reloads the
// rule engine. Group-add failures are reported but non-fatal: the user
// can still flash with elevated privileges.
func (c *Configurator) Apply(ctx context.Context) error {
	rulesPath := c.RulesPath
	if rulesPath == "" {
		rulesPath = DefaultRulesPath
	}

	changed, err := c.writeRules(ctx, rulesPath)
	if err != nil {
		return err
	}

	c.addGroups(ctx)

	if changed {
		if err := c.reload(ctx); err != nil {
			c.Log.Warn("udev reload failed; unplug and replug the device after a reboot", "error", err)
		}
	}
	return nil
}

// writeRules installs the rules file when its content drifts from the
// desired set. Reports whether anything changed.
func (c *Configurator) writeRules(ctx context.Context, rulesPath string) (bool, error) {
	want := RuleContent()
	if existing, err := os.ReadFile(rulesPath); err == nil && string(existing) == want {
		c.Log.Info("udev rules already up to date", "path", rulesPath)
		return false, nil
	}

	tmp, err := os.CreateTemp("", "y1-udev-*.rules")
	if err != nil {
		return false, fmt.Errorf("creating temp rules file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(want); err != nil {
		tmp.Close()
		return false, fmt.Errorf("writing temp rules file: %w", err)
	}
	tmp.Close()

	cmd := rn.Cmd{Name: "install", Args: []string{"-m", "0644", tmp.Name(), rulesPath}, Sudo: true}
	res, err := c.Runner.Run(ctx, cmd)
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		return false, fmt.Errorf("installing udev rules to %s: exit code %d: %s", rulesPath, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	c.Log.Info("installed udev rules", "path", rulesPath)
	return true, nil
}

// addGroups ensures the invoking user belongs to the device-access
// groups without ever duplicating a membership.
func (c *Configurator) addGroups(ctx context.Context) {
	username := c.Username
	if username == "" {
		u, err := user.Current()
		if err != nil {
			c.Log.Warn("could not determine invoking user; skipping group membership", "error", err)
			return
		}
		username = u.Username
	}

	current := c.currentGroups(ctx, username)
	for _, group := range []string{accessGroup, serialGroup} {
		if current[group] {
			c.Log.Debug("group membership already present", "group", group)
			continue
		}
		res, err := c.Runner.Run(ctx, rn.Cmd{Name: "usermod", Args: []string{"-aG", group, username}, Sudo: true})
		if err != nil || res.ExitCode != 0 {
			c.Log.Warn("could not add user to group; device access may require elevated privileges",
				"group", group, "user", username)
			continue
		}
		c.Log.Info("added user to group (takes effect on next login)", "group", group)
	}
}

// currentGroups returns the user's current group set.
func (c *Configurator) currentGroups(ctx context.Context, username string) map[string]bool {
	groups := map[string]bool{}
	res, err := c.Runner.Run(ctx, rn.Cmd{Name: "id", Args: []string{"-nG", username}})
	if err != nil || res.ExitCode != 0 {
		return groups
	}
	for _, g := range strings.Fields(res.Stdout) {
		groups[g] = true
	}
	return groups
}

// reload asks udevd to pick up the new rules.
func (c *Configurator) reload(ctx context.Context) error {
	for _, args := range [][]string{
		{"control", "--reload-rules"},
		{"trigger", "--subsystem-match=usb"},
	} {
		res, err := c.Runner.Run(ctx, rn.Cmd{Name: "udevadm", Args: args, Sudo: true})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("udevadm %s exited with code %d", strings.Join(args, " "), res.ExitCode)
		}
	}
	return nil
}

// DarwinGuidance is shown on macOS, where no rule configuration is
// needed but the user may have to approve the device.
const DarwinGuidance = "No udev configuration is needed on macOS. If the device is not detected,\n" +
	"approve it under System Settings > Privacy & Security when prompted."
