package provision

import (
	"context"
	"strings"
	"testing"

	"github.com/team-slide/y1setup/internal/depspec"
	"github.com/team-slide/y1setup/internal/logging"
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

func newProvisioner(r rn.Runner, manager string) *Provisioner {
	return &Provisioner{
		Runner: r,
		Log:    logging.Discard(),
		Profile: platform.Profile{
			OSFamily:       platform.OSLinux,
			Arch:           "amd64",
			PackageManager: manager,
		},
	}
}

// failAllChecks scripts every dpkg/pacman/rpm/brew presence probe to
// miss so the provisioner actually issues installs.
func failAllChecks(rec *rn.Recorder, m *depspec.Manifest, manager string) {
	br := branches[manager]
	seen := map[string]bool{}
	for _, sp := range m.System {
		for _, pkg := range sp.PackagesFor(manager) {
			seen[pkg] = true
		}
	}
	for _, pkg := range m.GUIToolkit.SystemCandidates[manager] {
		seen[pkg] = true
	}
	for pkg := range seen {
		rec.Responses[br.check(pkg).String()] = rn.Result{ExitCode: 1}
	}
}

func TestRunSingleBranchOnly(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	// Binaries absent so installs are attempted.
	rec.Missing["python3"] = true
	rec.Missing["git"] = true
	failAllChecks(rec, m, platform.PMApt)

	p := newProvisioner(rec, platform.PMApt)
	report, err := p.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	foreign := []string{"pacman", "dnf", "zypper", "brew"}
	for _, cmd := range rec.CommandStrings() {
		for _, other := range foreign {
			if strings.Contains(cmd, other+" ") || strings.HasPrefix(cmd, other) {
				t.Errorf("apt branch invoked foreign manager: %q", cmd)
			}
		}
	}
	if len(report.Installed) == 0 {
		t.Error("expected installed dependencies in report")
	}
}

func TestRunSkipsPresentBinaries(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	// All check binaries resolve; anything without a check binary
	// answers "installed" to the package probe (exit 0 default).
	p := newProvisioner(rec, platform.PMApt)

	report, err := p.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, cmd := range rec.CommandStrings() {
		if strings.Contains(cmd, "apt-get install") {
			t.Errorf("unexpected install for already satisfied system: %q", cmd)
		}
	}
	if len(report.Installed) != 0 {
		t.Errorf("Installed = %v, want empty", report.Installed)
	}
}

func TestRunRequiredFailureAborts(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	rec.Missing["python3"] = true
	failAllChecks(rec, m, platform.PMApt)
	for _, pkg := range []string{"python3", "python3-venv", "python3-pip"} {
		cmd := branches[platform.PMApt].install(pkg)
		rec.Responses[cmd.String()] = rn.Result{ExitCode: 100, Stderr: "E: Unable to locate package"}
	}

	p := newProvisioner(rec, platform.PMApt)
	if _, err := p.Run(context.Background(), m); err == nil {
		t.Fatal("expected error when required dependency fails to install")
	}
}

func TestRunOptionalFailureContinues(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	failAllChecks(rec, m, platform.PMApt)
	// python/git binaries present, libusb install fails.
	cmd := branches[platform.PMApt].install("libusb-1.0-0")
	rec.Responses[cmd.String()] = rn.Result{ExitCode: 100}

	p := newProvisioner(rec, platform.PMApt)
	report, err := p.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	found := false
	for _, name := range report.Failed {
		if name == "libusb" {
			found = true
		}
	}
	if !found {
		t.Errorf("Failed = %v, want libusb recorded", report.Failed)
	}
}

func TestGUIToolkitFallbackChain(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	failAllChecks(rec, m, platform.PMApt)
	br := branches[platform.PMApt]
	// Primary binding fails, secondary succeeds.
	rec.Responses[br.install("python3-pyside6.qtcore").String()] = rn.Result{ExitCode: 100}

	p := newProvisioner(rec, platform.PMApt)
	report, err := p.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.GUIPipFallback {
		t.Error("secondary binding succeeded; pip fallback should not be requested")
	}
}

func TestGUIToolkitAllCandidatesFailDefersToPip(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	failAllChecks(rec, m, platform.PMApt)
	br := branches[platform.PMApt]
	for _, pkg := range m.GUIToolkit.SystemCandidates[platform.PMApt] {
		rec.Responses[br.install(pkg).String()] = rn.Result{ExitCode: 100}
	}

	p := newProvisioner(rec, platform.PMApt)
	report, err := p.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.GUIPipFallback {
		t.Error("expected pip fallback after all system candidates failed")
	}
}

func TestGenericProfileVerifiesRequired(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()

	p := newProvisioner(rec, platform.PMUnknown)
	report, err := p.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.GUIPipFallback {
		t.Error("generic branch must defer GUI toolkit to pip")
	}
	for _, cmd := range rec.CommandStrings() {
		if strings.Contains(cmd, "install") {
			t.Errorf("generic branch must not install anything, ran %q", cmd)
		}
	}
}

func TestGenericProfileMissingInterpreterFatal(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	rec.Missing["python3"] = true

	p := newProvisioner(rec, platform.PMUnknown)
	if _, err := p.Run(context.Background(), m); err == nil {
		t.Fatal("expected fatal error: interpreter missing and nothing can install it")
	}
}

func TestAptInstallNoninteractiveSurvivesSudo(t *testing.T) {
	got := branches[platform.PMApt].install("git").String()
	want := "sudo -n env DEBIAN_FRONTEND=noninteractive apt-get install -y git"
	if got != want {
		t.Errorf("apt install command = %q, want %q", got, want)
	}
}

func TestBrewBranchNeverSudo(t *testing.T) {
	m := testManifest(t)
	rec := rn.NewRecorder()
	rec.Missing["python3"] = true
	rec.Missing["git"] = true
	failAllChecks(rec, m, platform.PMBrew)

	p := newProvisioner(rec, platform.PMBrew)
	p.Profile.OSFamily = platform.OSDarwin
	if _, err := p.Run(context.Background(), m); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, c := range rec.Calls {
		if c.Sudo {
			t.Errorf("brew branch must not use sudo: %q", c.String())
		}
	}
}
