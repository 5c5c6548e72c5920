package runner

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is a Runner for tests: it records every command and answers
// from a scripted table instead of spawning processes.
type Recorder struct {
	mu sync.Mutex

	// Calls holds every command run, in order.
	Calls []Cmd

	// Responses maps a command's String() to its scripted result.
	// Commands without an entry succeed with exit code 0.
	Responses map[string]Result

	// Missing lists binary names LookPath should report as absent.
	Missing map[string]bool
}

// NewRecorder returns an empty recorder where every command succeeds
// and every binary resolves.
func NewRecorder() *Recorder {
	return &Recorder{
		Responses: map[string]Result{},
		Missing:   map[string]bool{},
	}
}

// Run records the command and returns its scripted result.
func (r *Recorder) Run(_ context.Context, c Cmd) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, c)
	if res, ok := r.Responses[c.String()]; ok {
		return res, nil
	}
	return Result{}, nil
}

// LookPath resolves unless the name is scripted as missing.
func (r *Recorder) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Missing[name] {
		return "", fmt.Errorf("%s: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// CommandStrings returns the String() form of every recorded call.
func (r *Recorder) CommandStrings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.String()
	}
	return out
}
