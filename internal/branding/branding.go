// Package branding provides compile-time identity values for the CLI.
//
// The values live in branding.yaml next to this file and are baked into
// the binary with //go:embed, so a fork only has to edit one file to
// rename the tool and point it at a different payload repository.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName        string `yaml:"cli_name"`
	DisplayName    string `yaml:"display_name"`
	Description    string `yaml:"description"`
	HomeDir        string `yaml:"home_dir"`
	EnvPrefix      string `yaml:"env_prefix"`
	GoModule       string `yaml:"go_module"`
	GitHubRepo     string `yaml:"github_repo"`
	PayloadRepo    string `yaml:"payload_repo"`
	PayloadRepoURL string `yaml:"payload_repo_url"`
	AppDirName     string `yaml:"app_dir_name"`
	AppDisplayDir  string `yaml:"app_display_dir"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:        "y1setup",
			DisplayName:    "Innioasis Y1 Setup",
			Description:    "Provisions and launches the Innioasis Y1 firmware updater",
			HomeDir:        ".y1setup",
			EnvPrefix:      "Y1SETUP",
			GoModule:       "github.com/team-slide/y1setup",
			GitHubRepo:     "team-slide/y1setup",
			PayloadRepo:    "team-slide/innioasis-updater",
			PayloadRepoURL: "https://github.com/team-slide/innioasis-updater.git",
			AppDirName:     "innioasis-updater",
			AppDisplayDir:  "Innioasis Updater",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "y1setup").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".y1setup").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "Y1SETUP").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GitHubRepo returns the "owner/repo" string for this tool's own releases.
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// PayloadRepo returns the "owner/repo" string of the application payload.
func PayloadRepo() string { load(); return defaults.PayloadRepo }

// PayloadRepoURL returns the git clone URL of the application payload.
func PayloadRepoURL() string { load(); return defaults.PayloadRepoURL }

// AppDirName returns the lowercase directory name used for the install
// directory on Linux (e.g., "innioasis-updater").
func AppDirName() string { load(); return defaults.AppDirName }

// AppDisplayDir returns the display-cased directory name used for the
// install directory under macOS Application Support.
func AppDisplayDir() string { load(); return defaults.AppDisplayDir }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "Y1SETUP_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
