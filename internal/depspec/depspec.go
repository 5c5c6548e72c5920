// Package depspec holds the static dependency manifest: which system
// packages each package-manager branch installs, the GUI-toolkit
// fallback chain, the Python package set, and the cryptography
// dependency with its substitutes. The manifest is embedded YAML and
// is schema-validated at load so a bad edit fails fast rather than
// mid-provisioning.
package depspec

import (
	_ "embed"
	"fmt"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed deps.yaml
var rawManifest []byte

// SystemPackage is one system-level dependency with its per-manager
// package name sets.
type SystemPackage struct {
	Name        string              `yaml:"name"`
	Required    bool                `yaml:"required"`
	CheckBinary string              `yaml:"check_binary"`
	Packages    map[string][]string `yaml:"packages"`
}

// PackagesFor returns the package names to install under the given
// manager, or nil if the manifest names none for it.
func (s SystemPackage) PackagesFor(manager string) []string {
	return s.Packages[manager]
}

// GUIToolkit describes the GUI-binding fallback chain: ordered system
// package candidates per manager, then a pip package of last resort.
type GUIToolkit struct {
	SystemCandidates map[string][]string `yaml:"system_candidates"`
	PipFallback      string              `yaml:"pip_fallback"`
}

// PipPackage is one Python-level dependency installed into the venv.
type PipPackage struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
}

// Crypto describes the native-extension cryptography dependency and
// its fallback identities.
type Crypto struct {
	Package          string            `yaml:"package"`
	AltName          string            `yaml:"alt_name"`
	SystemSubstitute map[string]string `yaml:"system_substitute"`
}

// Manifest is the complete set of dependencies. Static, versioned
// with the tool, never mutated at runtime.
type Manifest struct {
	System     []SystemPackage `yaml:"system"`
	GUIToolkit GUIToolkit      `yaml:"gui_toolkit"`
	Python     []PipPackage    `yaml:"python"`
	Crypto     Crypto          `yaml:"cryptography"`
}

var (
	loadOnce sync.Once
	loaded   *Manifest
	loadErr  error
)

// Load parses and validates the embedded manifest. The result is
// cached; the manifest is immutable.
func Load() (*Manifest, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(rawManifest)
	})
	return loaded, loadErr
}

// Parse validates raw manifest YAML against the embedded schema and
// decodes it.
func Parse(data []byte) (*Manifest, error) {
	result, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("validating dependency manifest: %w", err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("dependency manifest is invalid: %s", result.Issues[0].Message)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing dependency manifest: %w", err)
	}
	return &m, nil
}
