// Package selfupdate checks GitHub for newer releases of the setup
// tool itself. The check is advisory: a banner points the user at the
// release page, nothing is replaced in place. Results are cached so
// ordinary invocations never block on the network.
package selfupdate

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/team-slide/y1setup/internal/branding"
)

const githubAPIBase = "https://api.github.com"

// Release is the subset of a GitHub release the checker needs.
type Release struct {
	Version   string    `json:"tag_name"`
	Published time.Time `json:"published_at"`
	HTMLURL   string    `json:"html_url"`
}

// Checker queries GitHub for the latest release.
type Checker struct {
	currentVersion string
	httpClient     *http.Client
	apiBase        string
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Checker) { ch.httpClient = c }
}

// WithAPIBase points the checker at a different API host (testing).
func WithAPIBase(base string) Option {
	return func(ch *Checker) { ch.apiBase = base }
}

// New creates a Checker for the given running version.
func New(currentVersion string, opts ...Option) *Checker {
	ch := &Checker{
		currentVersion: currentVersion,
		httpClient:     http.DefaultClient,
		apiBase:        githubAPIBase,
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Latest fetches the latest release of the setup tool.
func (ch *Checker) Latest() (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", ch.apiBase, branding.GitHubRepo())

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", branding.CLIName())
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := ch.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("release not found")
	case http.StatusForbidden:
		return nil, fmt.Errorf("GitHub API rate limit exceeded; set GITHUB_TOKEN for higher limits")
	default:
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var release Release
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, fmt.Errorf("parsing release JSON: %w", err)
	}
	return &release, nil
}

// CheckAndPrintBanner prints an upgrade hint from the cached check and
// refreshes the cache in the background when stale. Never blocks.
func (ch *Checker) CheckAndPrintBanner(w io.Writer, configDir string) {
	cache, err := ch.loadCache(configDir)
	if err != nil {
		return
	}

	if cache != nil && cache.UpdateAvailable {
		fmt.Fprintf(w, "\nA newer %s release is available: %s -> %s\n",
			branding.DisplayName(), cache.CurrentVersion, cache.LatestVersion)
		fmt.Fprintf(w, "    https://github.com/%s/releases\n\n", branding.GitHubRepo())
	}

	if cache.Stale(DefaultCacheMaxAge) {
		go ch.refreshCache(configDir)
	}
}

// refreshCache fetches the latest version and rewrites the cache.
// Runs in a background goroutine and never fails loudly.
func (ch *Checker) refreshCache(configDir string) {
	release, err := ch.Latest()
	if err != nil {
		return
	}
	available, err := IsUpdateAvailable(ch.currentVersion, release.Version)
	if err != nil {
		return
	}
	_ = ch.saveCache(configDir, &VersionCache{
		LatestVersion:   strings.TrimSpace(release.Version),
		CurrentVersion:  ch.currentVersion,
		CheckedAt:       time.Now(),
		UpdateAvailable: available,
	})
}
