package payload

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/team-slide/y1setup/internal/logging"
	rn "github.com/team-slide/y1setup/internal/runner"
)

// repoTarball builds a GitHub-style tarball: a single top-level
// directory wrapping the repository files.
func repoTarball(t *testing.T, topDir string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{Name: topDir + "/", Typeflag: tar.TypeDir, Mode: 0755}); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		hdr := &tar.Header{
			Name: topDir + "/" + name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchPrefersGitClone(t *testing.T) {
	root := t.TempDir()
	rec := rn.NewRecorder()

	f := &Fetcher{Runner: rec, Log: logging.Discard(), RepoURL: "https://example.com/repo.git"}
	if err := f.Fetch(context.Background(), root); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	cmds := rec.CommandStrings()
	if len(cmds) != 1 || !strings.HasPrefix(cmds[0], "git clone --depth 1") {
		t.Errorf("expected a single shallow clone, got %v", cmds)
	}
}

func TestFetchFallsBackToArchive(t *testing.T) {
	archive := repoTarball(t, "innioasis-updater-main", map[string]string{
		"firmware_downloader.py": "print('hi')\n",
		"assets/icon.png":        "png",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	root := t.TempDir()
	rec := rn.NewRecorder()
	rec.Responses["git clone --depth 1 https://example.com/repo.git "+filepath.Join(root, AppDir)] =
		rn.Result{ExitCode: 128, Stderr: "fatal: unable to access"}

	f := &Fetcher{
		Runner:     rec,
		Log:        logging.Discard(),
		RepoURL:    "https://example.com/repo.git",
		ArchiveURL: srv.URL,
		HTTPClient: srv.Client(),
	}
	if err := f.Fetch(context.Background(), root); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// Top-level directory must be stripped.
	entry := filepath.Join(root, AppDir, "firmware_downloader.py")
	data, err := os.ReadFile(entry)
	if err != nil {
		t.Fatalf("expected extracted entry point: %v", err)
	}
	if string(data) != "print('hi')\n" {
		t.Errorf("unexpected content %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, AppDir, "assets", "icon.png")); err != nil {
		t.Errorf("expected nested file extracted: %v", err)
	}
}

func TestFetchBothTransportsFailIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	root := t.TempDir()
	rec := rn.NewRecorder()
	rec.Missing["git"] = true

	f := &Fetcher{
		Runner:     rec,
		Log:        logging.Discard(),
		RepoURL:    "https://example.com/repo.git",
		ArchiveURL: srv.URL,
		HTTPClient: srv.Client(),
	}
	if err := f.Fetch(context.Background(), root); err == nil {
		t.Fatal("expected fatal error when clone and archive both fail")
	}
}

func TestUpdatePullsExistingClone(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, AppDir)
	if err := os.MkdirAll(filepath.Join(dest, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	rec := rn.NewRecorder()
	f := &Fetcher{Runner: rec, Log: logging.Discard(), RepoURL: "https://example.com/repo.git"}
	if err := f.Update(context.Background(), root); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	cmds := rec.CommandStrings()
	if len(cmds) != 1 || cmds[0] != "git pull --ff-only" {
		t.Errorf("expected git pull, got %v", cmds)
	}
	if rec.Calls[0].Dir != dest {
		t.Errorf("pull ran in %q, want %q", rec.Calls[0].Dir, dest)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := "owned"
	if err := tw.WriteHeader(&tar.Header{Name: "top/../../escape.txt", Mode: 0644, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	tw.Write([]byte(content))
	tw.Close()
	gz.Close()

	tmp := filepath.Join(t.TempDir(), "evil.tar.gz")
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(tmp, t.TempDir()); err == nil {
		t.Fatal("expected traversal rejection")
	}
}

func TestExtractZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("repo-main/main.py")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("entry"))
	zw.Close()

	tmp := filepath.Join(t.TempDir(), "payload.zip")
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	dest := t.TempDir()
	if err := extractArchive(tmp, dest); err != nil {
		t.Fatalf("extractArchive() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "main.py")); err != nil {
		t.Errorf("expected stripped zip entry: %v", err)
	}
}
