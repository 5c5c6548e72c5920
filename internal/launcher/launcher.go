// Package launcher starts the installed GUI application with the
// isolated environment's interpreter, and manages the shell launcher
// and freedesktop entry that let the user start it without this CLI.
package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/team-slide/y1setup/internal/branding"
	"github.com/team-slide/y1setup/internal/paths"
	"github.com/team-slide/y1setup/internal/payload"
)

// Launch starts the GUI entry point as a detached subprocess: the
// venv interpreter running the payload's entry script. The bootstrap
// does not wait for the GUI to exit.
func Launch(ctx context.Context, log hclog.Logger, installRoot string) error {
	appDir := filepath.Join(installRoot, payload.AppDir)
	entry := filepath.Join(appDir, paths.PayloadEntry)
	if _, err := os.Stat(entry); err != nil {
		return fmt.Errorf("application entry point not found at %s: %w", entry, err)
	}

	venv := filepath.Join(installRoot, paths.VenvDir)
	python := paths.VenvPython(venv)
	if _, err := os.Stat(python); err != nil {
		return fmt.Errorf("environment interpreter not found at %s: %w", python, err)
	}

	cmd := exec.CommandContext(ctx, python, entry)
	cmd.Dir = appDir
	// The venv activation contract: VIRTUAL_ENV set and its bin
	// directory first on PATH.
	cmd.Env = append(os.Environ(),
		"VIRTUAL_ENV="+venv,
		"PATH="+filepath.Join(venv, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Info("launching application", "entry", entry)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching application: %w", err)
	}
	// Detach: the GUI owns its own lifetime.
	return cmd.Process.Release()
}

// WriteScript writes the shell launcher that activates the fast path
// (`y1setup launch`). Returns the script path.
func WriteScript(installRoot string) (string, error) {
	scriptPath, err := paths.LauncherScriptPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(scriptPath), 0755); err != nil {
		return "", fmt.Errorf("creating launcher directory: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		exe = branding.CLIName()
	}
	content := fmt.Sprintf("#!/bin/sh\nexec %q launch\n", exe)
	if err := os.WriteFile(scriptPath, []byte(content), 0755); err != nil {
		return "", fmt.Errorf("writing launcher script: %w", err)
	}
	return scriptPath, nil
}

// RemoveArtifacts deletes the launcher script and desktop entry.
// Absent files are not errors; uninstall is idempotent.
func RemoveArtifacts() error {
	scriptPath, err := paths.LauncherScriptPath()
	if err == nil {
		if err := os.Remove(scriptPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing launcher script: %w", err)
		}
	}
	entryPath, err := paths.DesktopEntryPath()
	if err == nil {
		if err := os.Remove(entryPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing desktop entry: %w", err)
		}
	}
	return nil
}
