// Package payload fetches the application payload into the install
// directory: a git clone of the updater repository, falling back to a
// tarball download-and-extract when the clone fails (git missing,
// proxy mangling, rate limits).
package payload

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/team-slide/y1setup/internal/branding"
	rn "github.com/team-slide/y1setup/internal/runner"
)

// AppDir is the payload directory name under the install root.
const AppDir = "app"

// Fetcher obtains the application payload.
type Fetcher struct {
	Runner rn.Runner
	Log    hclog.Logger

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// RepoURL defaults to the branded payload repository.
	RepoURL string
	// ArchiveURL defaults to the repository's main-branch tarball.
	ArchiveURL string
}

func (f *Fetcher) client() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func (f *Fetcher) repoURL() string {
	if f.RepoURL != "" {
		return f.RepoURL
	}
	return branding.PayloadRepoURL()
}

func (f *Fetcher) archiveURL() string {
	if f.ArchiveURL != "" {
		return f.ArchiveURL
	}
	return fmt.Sprintf("https://codeload.github.com/%s/tar.gz/refs/heads/main", branding.PayloadRepo())
}

// Fetch obtains a fresh payload copy under installRoot, replacing any
// existing one. Both transports failing is fatal for provisioning.
func (f *Fetcher) Fetch(ctx context.Context, installRoot string) error {
	dest := filepath.Join(installRoot, AppDir)
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("removing previous payload: %w", err)
	}
	if err := os.MkdirAll(installRoot, 0755); err != nil {
		return fmt.Errorf("creating install directory: %w", err)
	}

	cloneErr := f.clone(ctx, dest)
	if cloneErr == nil {
		return nil
	}
	f.Log.Warn("git clone failed, falling back to archive download", "error", cloneErr)

	if err := f.downloadArchive(ctx, dest); err != nil {
		return fmt.Errorf("payload fetch failed via clone (%v) and archive: %w", cloneErr, err)
	}
	return nil
}

// Update refreshes an existing clone with git pull, or re-fetches when
// the payload is not a git checkout (archive-extracted installs).
func (f *Fetcher) Update(ctx context.Context, installRoot string) error {
	dest := filepath.Join(installRoot, AppDir)
	if _, err := os.Stat(filepath.Join(dest, ".git")); err != nil {
		f.Log.Info("payload is not a git checkout, re-fetching")
		return f.Fetch(ctx, installRoot)
	}

	res, err := f.Runner.Run(ctx, rn.Cmd{Name: "git", Args: []string{"pull", "--ff-only"}, Dir: dest})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		f.Log.Warn("git pull failed, re-fetching payload", "stderr", strings.TrimSpace(res.Stderr))
		return f.Fetch(ctx, installRoot)
	}
	return nil
}

// clone runs a shallow git clone into dest.
func (f *Fetcher) clone(ctx context.Context, dest string) error {
	if _, err := f.Runner.LookPath("git"); err != nil {
		return fmt.Errorf("git not available: %w", err)
	}
	cmd := rn.Cmd{Name: "git", Args: []string{"clone", "--depth", "1", f.repoURL(), dest}}
	f.Log.Info("cloning payload", "url", f.repoURL())
	res, err := f.Runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("git clone exited with code %d: %s", res.ExitCode, lastLine(res.Stderr))
	}
	return nil
}

// downloadArchive fetches the repository tarball and extracts it into
// dest, stripping the archive's top-level directory.
func (f *Fetcher) downloadArchive(ctx context.Context, dest string) error {
	url := f.archiveURL()
	f.Log.Info("downloading payload archive", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating archive request: %w", err)
	}
	req.Header.Set("User-Agent", branding.CLIName())

	resp, err := f.client().Do(req)
	if err != nil {
		return fmt.Errorf("downloading archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "y1-payload-*.tar.gz")
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := copyWithProgress(tmp, resp.Body, resp.ContentLength, f.Log); err != nil {
		tmp.Close()
		return fmt.Errorf("writing archive: %w", err)
	}
	tmp.Close()

	if err := extractArchive(tmp.Name(), dest); err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
