package udev

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/team-slide/y1setup/internal/logging"
	rn "github.com/team-slide/y1setup/internal/runner"
)

func newConfigurator(rec *rn.Recorder, rulesPath string) *Configurator {
	return &Configurator{
		Runner:    rec,
		Log:       logging.Discard(),
		RulesPath: rulesPath,
		Username:  "alice",
	}
}

func TestRuleContentCoversVendors(t *testing.T) {
	content := RuleContent()
	if !strings.Contains(content, `ATTR{idVendor}=="0e8d"`) {
		t.Error("rules must cover the MediaTek vendor ID")
	}
	if !strings.Contains(content, `GROUP="plugdev"`) {
		t.Error("rules must assign the plugdev group")
	}
	if !strings.Contains(content, `SUBSYSTEM=="tty"`) {
		t.Error("rules must cover the serial interface")
	}
}

func TestApplyWritesRulesAndReloads(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "99-innioasis-y1.rules")
	rec := rn.NewRecorder()
	rec.Responses["id -nG alice"] = rn.Result{Stdout: "alice wheel\n"}

	c := newConfigurator(rec, rulesPath)
	if err := c.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	var sawInstall, sawReload, sawUsermod bool
	for _, cmd := range rec.CommandStrings() {
		switch {
		case strings.Contains(cmd, "install -m 0644"):
			sawInstall = true
		case strings.Contains(cmd, "udevadm control --reload-rules"):
			sawReload = true
		case strings.Contains(cmd, "usermod -aG plugdev alice"):
			sawUsermod = true
		}
	}
	if !sawInstall {
		t.Error("expected rules install command")
	}
	if !sawReload {
		t.Error("expected udevadm reload")
	}
	if !sawUsermod {
		t.Error("expected plugdev membership add")
	}
}

func TestApplyIdempotent(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "99-innioasis-y1.rules")
	// Simulate the rules already installed with identical content and
	// the user already in both groups.
	if err := os.WriteFile(rulesPath, []byte(RuleContent()), 0644); err != nil {
		t.Fatal(err)
	}
	rec := rn.NewRecorder()
	rec.Responses["id -nG alice"] = rn.Result{Stdout: "alice plugdev dialout\n"}

	c := newConfigurator(rec, rulesPath)
	if err := c.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for _, cmd := range rec.CommandStrings() {
		if strings.Contains(cmd, "install") || strings.Contains(cmd, "usermod") || strings.Contains(cmd, "udevadm") {
			t.Errorf("second run must be a no-op, ran %q", cmd)
		}
	}
}

func TestApplyGroupFailureNonFatal(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "99-innioasis-y1.rules")
	rec := rn.NewRecorder()
	rec.Responses["id -nG alice"] = rn.Result{Stdout: "alice\n"}
	rec.Responses["sudo -n usermod -aG plugdev alice"] = rn.Result{ExitCode: 1, Stderr: "permission denied"}
	rec.Responses["sudo -n usermod -aG dialout alice"] = rn.Result{ExitCode: 1, Stderr: "permission denied"}

	c := newConfigurator(rec, rulesPath)
	if err := c.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() must tolerate group failures, got %v", err)
	}
}
