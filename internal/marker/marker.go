// Package marker persists the provisioning completion state. The
// marker file's presence is the single source of truth for "setup is
// done": entry points take the fast launch path when it exists and
// the full provisioning path when it does not. It lives inside the
// venv so destroying the environment also invalidates it.
package marker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotProvisioned is returned when no completion marker exists.
var ErrNotProvisioned = errors.New("environment has not been provisioned")

// State is the persisted provisioning outcome. Completed is only ever
// written as true: a run that fails a required step writes nothing, so
// partial provisioning can never be mistaken for completion.
type State struct {
	Completed      bool      `json:"completed"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	LogPath        string    `json:"log_path,omitempty"`
	CryptoVerified bool      `json:"crypto_verified"`
	// GUIPipFallback records that the GUI toolkit came from pip, so
	// environment rebuilds keep installing it.
	GUIPipFallback bool     `json:"gui_pip_fallback,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Write persists the state. It refuses a non-completed state rather
// than trusting callers to uphold the invariant.
func Write(path string, s State) error {
	if !s.Completed {
		return fmt.Errorf("refusing to write marker with completed=false")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling marker: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	return nil
}

// Read loads the marker. Returns ErrNotProvisioned when the file does
// not exist or is unreadable garbage; a corrupt marker must fall back
// to the slow path, never pretend completion.
func Read(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotProvisioned
	}
	if err != nil {
		return nil, fmt.Errorf("reading marker: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ErrNotProvisioned
	}
	if !s.Completed {
		return nil, ErrNotProvisioned
	}
	return &s, nil
}

// Exists reports whether a valid completion marker is present.
func Exists(path string) bool {
	_, err := Read(path)
	return err == nil
}

// Remove deletes the marker. Absence is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing marker: %w", err)
	}
	return nil
}
