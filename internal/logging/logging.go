// Package logging builds the hclog loggers used across the bootstrap.
// Every run logs to stderr and to a persistent per-run file under the
// log directory, so a failed provisioning can be diagnosed afterwards
// without re-running verbosely.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/team-slide/y1setup/internal/branding"
)

// Run bundles the logger for one bootstrap invocation with the file it
// writes to. Close the run when the invocation exits.
type Run struct {
	Logger  hclog.Logger
	ID      string
	LogPath string

	file *os.File
}

// NewRun creates a per-run logger teeing stderr and a log file named
// after a fresh run ID. If the log directory cannot be created the run
// degrades to stderr-only rather than failing the bootstrap.
func NewRun(logDir string) *Run {
	id := uuid.NewString()[:8]
	r := &Run{ID: id}

	var out io.Writer = os.Stderr
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logPath := filepath.Join(logDir, fmt.Sprintf("setup-%s-%s.log", time.Now().Format("20060102-150405"), id))
		if f, err := os.Create(logPath); err == nil {
			r.file = f
			r.LogPath = logPath
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	r.Logger = hclog.New(&hclog.LoggerOptions{
		Name:   branding.CLIName(),
		Level:  hclog.LevelFromString(Level()),
		Output: out,
	})
	r.Logger.Debug("run started", "run_id", id)
	return r
}

// Close flushes and closes the underlying log file, if any.
func (r *Run) Close() {
	if r.file != nil {
		_ = r.file.Close()
	}
}

// Level returns the configured log level, defaulting to info.
func Level() string {
	if v := os.Getenv(branding.EnvVar("LOG_LEVEL")); v != "" {
		return v
	}
	return "info"
}

// Stderr returns a plain stderr logger for commands that do not need
// a persistent log file.
func Stderr() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  branding.CLIName(),
		Level: hclog.LevelFromString(Level()),
	})
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
