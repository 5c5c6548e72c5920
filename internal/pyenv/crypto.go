package pyenv

import (
	"context"
	"fmt"
	"strings"

	"github.com/team-slide/y1setup/internal/depspec"
	"github.com/team-slide/y1setup/internal/paths"
	rn "github.com/team-slide/y1setup/internal/runner"
)

// CryptoResult records how the cryptography dependency ended up.
type CryptoResult struct {
	Verified bool
	// Strategy names the fallback that produced a working install,
	// empty when every strategy failed.
	Strategy string
	// Substitute is set when the working install is the alternative
	// package rather than the primary one.
	Substitute string
}

// cryptoStrategy is one attempt at getting a working cryptography
// install. The builder runs the ordered list with a uniform
// verify-after-each-attempt loop.
type cryptoStrategy struct {
	name    string
	attempt func(ctx context.Context) error
	verify  func(ctx context.Context) error
}

// fernetVerify is the runtime round-trip check for the primary
// package: encrypt 20 bytes of known plaintext under a fresh key,
// decrypt, compare.
const fernetVerify = `
from cryptography.fernet import Fernet
pt = b"01234567890123456789"
f = Fernet(Fernet.generate_key())
assert f.decrypt(f.encrypt(pt)) == pt
print("ok")
`

// aesVerify is the equivalent round-trip for the pycryptodome
// substitute, using a fresh key and IV.
const aesVerify = `
from Crypto.Cipher import AES
from Crypto.Random import get_random_bytes
pt = b"01234567890123456789"
key = get_random_bytes(32)
iv = get_random_bytes(16)
ct = AES.new(key, AES.MODE_CFB, iv=iv).encrypt(pt)
assert AES.new(key, AES.MODE_CFB, iv=iv).decrypt(ct) == pt
print("ok")
`

// installCrypto works through the fallback strategies until one
// verifies. Total failure is reported, never silently swallowed: the
// caller surfaces the warning and records it in the marker.
func (b *Builder) installCrypto(ctx context.Context, venvRoot string, env map[string]string, spec depspec.Crypto, guiPip bool) CryptoResult {
	verifyPrimary := func(ctx context.Context) error {
		return b.runPythonCheck(ctx, venvRoot, fernetVerify)
	}
	verifyAlt := func(ctx context.Context) error {
		return b.runPythonCheck(ctx, venvRoot, aesVerify)
	}
	pip := func(args ...string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return b.pipInstall(ctx, venvRoot, env, args...)
		}
	}

	strategies := []cryptoStrategy{
		{name: "plain", attempt: pip(spec.Package), verify: verifyPrimary},
	}
	if spec.AltName != "" {
		strategies = append(strategies, cryptoStrategy{
			name:    "alternate-package",
			attempt: pip(spec.AltName),
			verify:  verifyAlt,
		})
	}
	strategies = append(strategies,
		cryptoStrategy{name: "no-cache", attempt: pip("--no-cache-dir", spec.Package), verify: verifyPrimary},
		cryptoStrategy{name: "force-reinstall", attempt: pip("--force-reinstall", "--no-cache-dir", spec.Package), verify: verifyPrimary},
		cryptoStrategy{name: "pre-release", attempt: pip("--pre", spec.Package), verify: verifyPrimary},
		cryptoStrategy{name: "source-build", attempt: pip("--no-binary", ":all:", spec.Package), verify: verifyPrimary},
	)
	if sub, ok := spec.SystemSubstitute[b.Profile.PackageManager]; ok && b.SystemInstall != nil {
		strategies = append(strategies, cryptoStrategy{
			name: "os-package-substitute",
			attempt: func(ctx context.Context) error {
				if err := b.SystemInstall(ctx, sub); err != nil {
					return err
				}
				// The venv must see distro site-packages for the
				// substitute to be importable.
				if err := b.createVenv(ctx, venvRoot, true); err != nil {
					return err
				}
				return b.reinstallBase(ctx, venvRoot, env, guiPip)
			},
			verify: verifyPrimary,
		})
	}

	for _, s := range strategies {
		if err := s.attempt(ctx); err != nil {
			b.Log.Warn("cryptography install attempt failed", "strategy", s.name, "error", err)
			continue
		}
		if err := s.verify(ctx); err != nil {
			b.Log.Warn("cryptography verification failed after install", "strategy", s.name, "error", err)
			continue
		}
		b.Log.Info("cryptography dependency verified", "strategy", s.name)
		res := CryptoResult{Verified: true, Strategy: s.name}
		if s.name == "alternate-package" {
			res.Substitute = spec.AltName
		}
		return res
	}

	b.Log.Error("cryptography dependency could not be installed by any strategy; " +
		"the application may not function until it is fixed manually")
	return CryptoResult{}
}

// VerifyCrypto round-trips against an existing environment, accepting
// either the primary package or its substitute. Used by health checks
// on environments built in an earlier run.
func VerifyCrypto(ctx context.Context, r rn.Runner, venvRoot string) error {
	b := &Builder{Runner: r}
	if err := b.runPythonCheck(ctx, venvRoot, fernetVerify); err == nil {
		return nil
	}
	return b.runPythonCheck(ctx, venvRoot, aesVerify)
}

// runPythonCheck executes a short verification script with the venv's
// interpreter. The script prints "ok" on success.
func (b *Builder) runPythonCheck(ctx context.Context, venvRoot, script string) error {
	res, err := b.Runner.Run(ctx, rn.Cmd{
		Name: paths.VenvPython(venvRoot),
		Args: []string{"-c", script},
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("verification script exited with code %d: %s", res.ExitCode, tail(res.Stderr))
	}
	if !strings.Contains(res.Stdout, "ok") {
		return fmt.Errorf("verification script produced unexpected output %q", strings.TrimSpace(res.Stdout))
	}
	return nil
}

// reinstallBase restores everything pip put into the venv before a
// recreation by the os-package-substitute strategy: the self-upgraded
// pip, the core package set, and the GUI toolkit when it came from
// the pip fallback. Losing any of these would leave a marker claiming
// completion over a venv missing packages it was verified with.
func (b *Builder) reinstallBase(ctx context.Context, venvRoot string, env map[string]string, guiPip bool) error {
	m, err := depspec.Load()
	if err != nil {
		return err
	}
	if err := b.pipInstall(ctx, venvRoot, env, "--upgrade", "pip"); err != nil {
		b.Log.Warn("pip self-upgrade failed after environment rebuild", "error", err)
	}
	for _, pkg := range m.Python {
		if err := b.pipInstall(ctx, venvRoot, env, pkg.Name); err != nil && pkg.Required {
			return fmt.Errorf("reinstalling %q after environment rebuild: %w", pkg.Name, err)
		}
	}
	if guiPip {
		if err := b.pipInstall(ctx, venvRoot, env, m.GUIToolkit.PipFallback); err != nil {
			return fmt.Errorf("reinstalling GUI toolkit %q after environment rebuild: %w", m.GUIToolkit.PipFallback, err)
		}
	}
	return nil
}

// tail returns the last non-empty line of subprocess output.
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// firstLine returns the first line of subprocess output, trimmed.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
