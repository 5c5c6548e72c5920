// Package runner is the single place subprocesses are spawned from.
// Each invocation carries its own explicit environment additions
// instead of mutating process-global state, so compiler and package
// manager hints (LDFLAGS, PKG_CONFIG_PATH) stay scoped to the step
// that needs them.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Cmd describes one subprocess invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	// Env holds additions layered over the inherited environment,
	// scoped to this invocation only.
	Env map[string]string
	// Sudo prefixes the command with sudo -n (non-interactive; the
	// keepalive goroutine holds the credential cache warm).
	Sudo bool
}

// String renders the command for logs.
func (c Cmd) String() string {
	parts := []string{c.Name}
	parts = append(parts, c.Args...)
	if c.Sudo {
		parts = append([]string{"sudo", "-n"}, parts...)
	}
	return strings.Join(parts, " ")
}

// Result captures a finished subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes commands. The exec-backed implementation is used in
// production; tests substitute a recorder.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
	// LookPath reports whether a binary is resolvable on PATH.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command, returning its captured output. A non-zero
// exit is not an error at this layer; callers inspect ExitCode.
func (ExecRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	name := c.Name
	args := c.Args
	if c.Sudo {
		args = append([]string{"-n", name}, args...)
		name = "sudo"
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("executing %s: %w", c.String(), err)
	}
	return res, nil
}

// LookPath resolves a binary on PATH.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// mergeEnv layers additions over a base environment, replacing
// duplicate keys so the addition wins.
func mergeEnv(base []string, additions map[string]string) []string {
	if len(additions) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(additions))
	for _, e := range base {
		key, _, ok := strings.Cut(e, "=")
		if ok {
			if _, shadowed := additions[key]; shadowed {
				continue
			}
		}
		env = append(env, e)
	}
	// Deterministic order keeps logs and tests stable.
	keys := make([]string, 0, len(additions))
	for k := range additions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+additions[k])
	}
	return env
}
