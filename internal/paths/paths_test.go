package paths

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/team-slide/y1setup/internal/branding"
)

func TestInstallRootEnvOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(branding.EnvVar("HOME"), tmp)

	root, err := InstallRoot()
	if err != nil {
		t.Fatalf("InstallRoot() error = %v", err)
	}
	if root != tmp {
		t.Errorf("InstallRoot() = %q, want %q", root, tmp)
	}
}

func TestInstallRootDefault(t *testing.T) {
	t.Setenv(branding.EnvVar("HOME"), "")

	root, err := InstallRoot()
	if err != nil {
		t.Fatalf("InstallRoot() error = %v", err)
	}
	if runtime.GOOS == "darwin" {
		if !strings.Contains(root, "Application Support") {
			t.Errorf("expected Application Support path on darwin, got %q", root)
		}
	} else if !strings.Contains(root, branding.AppDirName()) {
		t.Errorf("expected %q in path, got %q", branding.AppDirName(), root)
	}
}

func TestMarkerPathUnderVenv(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(branding.EnvVar("HOME"), tmp)

	marker, err := MarkerPath()
	if err != nil {
		t.Fatalf("MarkerPath() error = %v", err)
	}
	want := filepath.Join(tmp, VenvDir, MarkerFile)
	if marker != want {
		t.Errorf("MarkerPath() = %q, want %q", marker, want)
	}
}

func TestVenvPython(t *testing.T) {
	got := VenvPython("/opt/app/venv")
	if runtime.GOOS == "windows" {
		if got != filepath.Join("/opt/app/venv", "Scripts", "python.exe") {
			t.Errorf("unexpected interpreter path %q", got)
		}
		return
	}
	if got != filepath.Join("/opt/app/venv", "bin", "python3") {
		t.Errorf("unexpected interpreter path %q", got)
	}
}

func TestLogDirEnvOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(branding.EnvVar("LOGS"), tmp)
	if got := LogDir(); got != tmp {
		t.Errorf("LogDir() = %q, want %q", got, tmp)
	}
}
