package pyenv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/team-slide/y1setup/internal/depspec"
	"github.com/team-slide/y1setup/internal/logging"
	"github.com/team-slide/y1setup/internal/paths"
	"github.com/team-slide/y1setup/internal/platform"
	rn "github.com/team-slide/y1setup/internal/runner"
)

func testManifest(t *testing.T) *depspec.Manifest {
	t.Helper()
	m, err := depspec.Load()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newBuilder(rec *rn.Recorder) *Builder {
	return &Builder{
		Runner:       rec,
		Log:          logging.Discard(),
		Profile:      platform.Profile{OSFamily: platform.OSLinux, PackageManager: platform.PMApt},
		SystemPython: "python3",
	}
}

// scriptVerify makes both round-trip verification scripts answer with
// the given result.
func scriptVerify(rec *rn.Recorder, venvRoot string, res rn.Result) {
	python := paths.VenvPython(venvRoot)
	for _, script := range []string{fernetVerify, aesVerify} {
		cmd := rn.Cmd{Name: python, Args: []string{"-c", script}}
		rec.Responses[cmd.String()] = res
	}
}

func TestBuildRecreatesVenv(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	scriptVerify(rec, venv, rn.Result{Stdout: "ok\n"})

	b := newBuilder(rec)
	res, err := b.Build(context.Background(), venv, testManifest(t), false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	cmds := rec.CommandStrings()
	if len(cmds) == 0 || !strings.Contains(cmds[0], "-m venv") {
		t.Fatalf("first command should create the venv, got %v", cmds[:min(3, len(cmds))])
	}
	if !strings.Contains(cmds[1], "install --upgrade pip") {
		t.Errorf("second command should upgrade pip, got %q", cmds[1])
	}
	if !res.Crypto.Verified {
		t.Error("expected cryptography verified with scripted ok")
	}
	if res.Crypto.Strategy != "plain" {
		t.Errorf("Strategy = %q, want plain", res.Crypto.Strategy)
	}
}

func TestBuildRequiredPipFailureAborts(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	pip := paths.VenvPip(venv)
	cmd := rn.Cmd{Name: pip, Args: []string{"install", "requests"}}
	rec.Responses[cmd.String()] = rn.Result{ExitCode: 1, Stderr: "no matching distribution"}

	b := newBuilder(rec)
	if _, err := b.Build(context.Background(), venv, testManifest(t), false); err == nil {
		t.Fatal("expected error when a required pip package fails")
	}
}

func TestBuildOptionalPipFailureContinues(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	scriptVerify(rec, venv, rn.Result{Stdout: "ok\n"})
	pip := paths.VenvPip(venv)
	cmd := rn.Cmd{Name: pip, Args: []string{"install", "packaging"}}
	rec.Responses[cmd.String()] = rn.Result{ExitCode: 1}

	b := newBuilder(rec)
	res, err := b.Build(context.Background(), venv, testManifest(t), false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "packaging" {
		t.Errorf("Failed = %v, want [packaging]", res.Failed)
	}
}

func TestBuildGUIPipFallback(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	scriptVerify(rec, venv, rn.Result{Stdout: "ok\n"})

	b := newBuilder(rec)
	m := testManifest(t)
	if _, err := b.Build(context.Background(), venv, m, true); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := fmt.Sprintf("%s install %s", paths.VenvPip(venv), m.GUIToolkit.PipFallback)
	found := false
	for _, c := range rec.CommandStrings() {
		if c == want {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q among commands", want)
	}
}

func TestCryptoFallbackOrder(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	pip := paths.VenvPip(venv)
	// Primary install succeeds but never verifies; alternate package
	// verifies. The builder must stop at the first verified strategy.
	python := paths.VenvPython(venv)
	fernetCmd := rn.Cmd{Name: python, Args: []string{"-c", fernetVerify}}
	rec.Responses[fernetCmd.String()] = rn.Result{ExitCode: 1, Stderr: "ModuleNotFoundError"}
	aesCmd := rn.Cmd{Name: python, Args: []string{"-c", aesVerify}}
	rec.Responses[aesCmd.String()] = rn.Result{Stdout: "ok\n"}

	b := newBuilder(rec)
	m := testManifest(t)
	res, err := b.Build(context.Background(), venv, m, false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !res.Crypto.Verified {
		t.Fatal("expected verified crypto via alternate package")
	}
	if res.Crypto.Strategy != "alternate-package" {
		t.Errorf("Strategy = %q, want alternate-package", res.Crypto.Strategy)
	}
	if res.Crypto.Substitute != m.Crypto.AltName {
		t.Errorf("Substitute = %q, want %q", res.Crypto.Substitute, m.Crypto.AltName)
	}

	// The alternate install must have been attempted exactly once.
	altInstalls := 0
	for _, c := range rec.CommandStrings() {
		if c == pip+" install "+m.Crypto.AltName {
			altInstalls++
		}
	}
	if altInstalls != 1 {
		t.Errorf("alternate package installed %d times, want 1", altInstalls)
	}
}

func TestCryptoTotalFailureReportedNotFatal(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	// Every verification fails.
	scriptVerify(rec, venv, rn.Result{ExitCode: 1, Stderr: "ModuleNotFoundError"})

	b := newBuilder(rec)
	b.SystemInstall = func(context.Context, string) error {
		return fmt.Errorf("no network")
	}
	res, err := b.Build(context.Background(), venv, testManifest(t), false)
	if err != nil {
		t.Fatalf("Build() must not fail on crypto degradation, got %v", err)
	}
	if res.Crypto.Verified {
		t.Error("crypto must not be marked verified")
	}
	if res.Crypto.Strategy != "" {
		t.Errorf("Strategy = %q, want empty on total failure", res.Crypto.Strategy)
	}
}

func TestCryptoSystemSubstituteRebuildsVenv(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	python := paths.VenvPython(venv)
	// Pip-based strategies never verify; substitute path verifies.
	fernetCmd := rn.Cmd{Name: python, Args: []string{"-c", fernetVerify}}
	aesCmd := rn.Cmd{Name: python, Args: []string{"-c", aesVerify}}
	rec.Responses[aesCmd.String()] = rn.Result{ExitCode: 1}
	rec.Responses[fernetCmd.String()] = rn.Result{ExitCode: 1}

	installed := []string{}
	b := newBuilder(rec)
	b.SystemInstall = func(_ context.Context, pkg string) error {
		installed = append(installed, pkg)
		// Once the distro package lands, verification starts passing.
		rec.Responses[fernetCmd.String()] = rn.Result{Stdout: "ok\n"}
		return nil
	}

	res, err := b.Build(context.Background(), venv, testManifest(t), false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !res.Crypto.Verified {
		t.Fatal("expected verified crypto via system substitute")
	}
	if res.Crypto.Strategy != "os-package-substitute" {
		t.Errorf("Strategy = %q, want os-package-substitute", res.Crypto.Strategy)
	}
	if len(installed) != 1 || installed[0] != "python3-cryptography" {
		t.Errorf("system installs = %v, want [python3-cryptography]", installed)
	}

	// The venv must have been recreated with system site packages.
	found := false
	for _, c := range rec.CommandStrings() {
		if strings.Contains(c, "--system-site-packages") {
			found = true
		}
	}
	if !found {
		t.Error("expected venv recreation with --system-site-packages")
	}
}

func TestCryptoSubstituteRebuildKeepsGUIToolkit(t *testing.T) {
	venv := filepath.Join(t.TempDir(), "venv")
	rec := rn.NewRecorder()
	python := paths.VenvPython(venv)
	fernetCmd := rn.Cmd{Name: python, Args: []string{"-c", fernetVerify}}
	aesCmd := rn.Cmd{Name: python, Args: []string{"-c", aesVerify}}
	rec.Responses[fernetCmd.String()] = rn.Result{ExitCode: 1}
	rec.Responses[aesCmd.String()] = rn.Result{ExitCode: 1}

	b := newBuilder(rec)
	b.SystemInstall = func(context.Context, string) error {
		rec.Responses[fernetCmd.String()] = rn.Result{Stdout: "ok\n"}
		return nil
	}

	m := testManifest(t)
	res, err := b.Build(context.Background(), venv, m, true)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Crypto.Strategy != "os-package-substitute" {
		t.Fatalf("Strategy = %q, want os-package-substitute", res.Crypto.Strategy)
	}

	// The venv recreation discards every pip install made before it;
	// the GUI toolkit from the pip fallback must come back afterwards.
	cmds := rec.CommandStrings()
	guiInstall := paths.VenvPip(venv) + " install " + m.GUIToolkit.PipFallback
	rebuildAt, guiAt := -1, -1
	for i, c := range cmds {
		if strings.Contains(c, "--system-site-packages") {
			rebuildAt = i
		}
		if c == guiInstall {
			guiAt = i
		}
	}
	if rebuildAt == -1 {
		t.Fatal("expected venv recreation with --system-site-packages")
	}
	if guiAt < rebuildAt {
		t.Errorf("GUI toolkit installed at %d, before the rebuild at %d; the final venv has no GUI binding", guiAt, rebuildAt)
	}
}

func TestBuildEnvBrewPrefix(t *testing.T) {
	rec := rn.NewRecorder()
	rec.Responses["brew --prefix openssl@3"] = rn.Result{Stdout: "/opt/homebrew/opt/openssl@3\n"}

	b := newBuilder(rec)
	b.Profile = platform.Profile{OSFamily: platform.OSDarwin, PackageManager: platform.PMBrew}

	env := b.buildEnv(context.Background())
	if env["LDFLAGS"] != "-L/opt/homebrew/opt/openssl@3/lib" {
		t.Errorf("LDFLAGS = %q", env["LDFLAGS"])
	}
	if env["CPPFLAGS"] != "-I/opt/homebrew/opt/openssl@3/include" {
		t.Errorf("CPPFLAGS = %q", env["CPPFLAGS"])
	}
}

func TestBuildEnvNonBrewIsNil(t *testing.T) {
	b := newBuilder(rn.NewRecorder())
	if env := b.buildEnv(context.Background()); env != nil {
		t.Errorf("buildEnv on apt = %v, want nil", env)
	}
}
