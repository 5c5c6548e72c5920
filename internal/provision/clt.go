package provision

import (
	"context"
	"fmt"
	"time"

	rn "github.com/team-slide/y1setup/internal/runner"
)

// Xcode command-line tools polling bounds. The installer is a GUI the
// user has to click through, so the wait is long but not unbounded.
const (
	cltPollInterval = 15 * time.Second
	cltTimeout      = 30 * time.Minute
)

// EnsureCommandLineTools checks for the Xcode command-line tools on
// macOS and, when absent, triggers the GUI installer and polls until
// the user finishes it. Timing out is fatal with manual-recovery
// instructions; nothing native can compile without a toolchain.
func (p *Provisioner) EnsureCommandLineTools(ctx context.Context) error {
	if p.cltInstalled(ctx) {
		return nil
	}

	p.Log.Info("Xcode command-line tools missing; launching the installer. " +
		"Complete the dialog that appears; this can take a while.")
	if _, err := p.Runner.Run(ctx, rn.Cmd{Name: "xcode-select", Args: []string{"--install"}}); err != nil {
		return fmt.Errorf("starting command-line tools installer: %w", err)
	}

	deadline := time.Now().Add(cltTimeout)
	ticker := time.NewTicker(cltPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.cltInstalled(ctx) {
				p.Log.Info("command-line tools installed")
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("timed out waiting for the Xcode command-line tools installer; " +
					"run `xcode-select --install`, complete it, then re-run setup")
			}
		}
	}
}

func (p *Provisioner) cltInstalled(ctx context.Context) bool {
	res, err := p.Runner.Run(ctx, rn.Cmd{Name: "xcode-select", Args: []string{"-p"}})
	return err == nil && res.ExitCode == 0
}
