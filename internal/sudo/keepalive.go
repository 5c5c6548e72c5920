// Package sudo keeps the elevated-privilege credential cache warm for
// the duration of a provisioning run, so the user is prompted once up
// front instead of at random points mid-run.
package sudo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// refreshInterval is comfortably inside sudo's default 15-minute
// timestamp timeout.
const refreshInterval = 4 * time.Minute

// KeepAlive refreshes sudo credentials in the background. Exactly one
// goroutine runs between Start and Stop.
type KeepAlive struct {
	Log hclog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Prime validates credentials up front, prompting the user once.
// Needed before the background refresher can run non-interactively.
func Prime(ctx context.Context) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	if os.Geteuid() == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sudo", "-v")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("unable to obtain elevated privileges: %w", err)
	}
	return nil
}

// Start launches the refresher. Calling Start twice without Stop is a
// no-op.
func (k *KeepAlive) Start(ctx context.Context) {
	if runtime.GOOS != "linux" || os.Geteuid() == 0 {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.done = make(chan struct{})

	go func() {
		defer close(k.done)
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Non-interactive: if the cache expired anyway,
				// the next sudo command will prompt.
				if err := exec.CommandContext(ctx, "sudo", "-n", "-v").Run(); err != nil {
					k.Log.Debug("sudo refresh failed", "error", err)
				}
			}
		}
	}()
}

// Stop terminates the refresher and waits for it to exit. Safe to call
// multiple times and from deferred cleanup on any exit path.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	cancel := k.cancel
	done := k.done
	k.cancel = nil
	k.done = nil
	k.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
