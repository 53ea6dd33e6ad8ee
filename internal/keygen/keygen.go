// Package keygen produces the wizard's keypairs by driving the native
// tools (ssh-keygen, gpg). The tools' exit status is the sole success
// signal; the generated artifact is re-detected from disk or the
// keyring afterwards, never assumed.
package keygen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/devforge/gitsetup/internal/identity"
)

// ErrToolMissing indicates the required generation tool is not on
// PATH. There is no safe fallback: the wizard must not mint keys the
// system keystores cannot manage.
var ErrToolMissing = errors.New("key generation tool not found")

// Generator runs the generation tools attached to the wizard's
// terminal, so passphrase prompts reach the user.
type Generator struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// EnsureSSH returns the existing authentication identity unchanged, or
// generates a new ed25519 keypair at the deterministic path under
// sshDir. The second return reports whether generation ran.
func (g *Generator) EnsureSSH(ctx context.Context, sshDir, email string, existing *identity.Identity) (*identity.Identity, bool, error) {
	if existing != nil {
		return existing, false, nil
	}
	if _, err := exec.LookPath("ssh-keygen"); err != nil {
		return nil, false, fmt.Errorf("%w: ssh-keygen (install openssh)", ErrToolMissing)
	}
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		return nil, false, fmt.Errorf("create %s: %w", sshDir, err)
	}

	keyPath := identity.SSHKeyPath(sshDir)
	cmd := exec.CommandContext(ctx, "ssh-keygen", "-t", identity.Algorithm, "-C", email, "-f", keyPath)
	cmd.Stdin = g.Stdin
	cmd.Stdout = g.Stdout
	cmd.Stderr = g.Stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, fmt.Errorf("ssh-keygen: %w", err)
	}

	id, err := identity.DetectSSH(sshDir)
	if err != nil {
		return nil, false, err
	}
	if id == nil {
		return nil, false, fmt.Errorf("ssh-keygen exited cleanly but %s is missing", keyPath)
	}
	log.Debug().Str("fingerprint", id.Fingerprint).Msg("ssh key generated")
	return id, true, nil
}

// EnsureGPG returns the existing signing identity unchanged, or
// generates an ed25519 signing key (plus a cv25519 encryption subkey)
// in the gpg keyring for the given name and email.
func (g *Generator) EnsureGPG(ctx context.Context, name, email string, existing *identity.Identity) (*identity.Identity, bool, error) {
	if existing != nil {
		return existing, false, nil
	}
	if _, err := exec.LookPath("gpg"); err != nil {
		return nil, false, fmt.Errorf("%w: gpg (install gnupg)", ErrToolMissing)
	}

	uid := fmt.Sprintf("%s <%s>", name, email)
	quick := exec.CommandContext(ctx, "gpg", "--batch", "--passphrase", "", "--quick-gen-key", uid, identity.Algorithm, "sign", "3y")
	quick.Stdout = g.Stdout
	quick.Stderr = g.Stderr
	if err := quick.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		// Older gpg builds reject quick generation; fall back to the
		// interactive flow and let the user drive it.
		fmt.Fprintln(g.Stdout, "Falling back to interactive gpg key generation (pick ed25519, 2-3 year expiry).")
		full := exec.CommandContext(ctx, "gpg", "--full-generate-key")
		full.Stdin = g.Stdin
		full.Stdout = g.Stdout
		full.Stderr = g.Stderr
		if err := full.Run(); err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			return nil, false, fmt.Errorf("gpg key generation: %w", err)
		}
	}

	id, err := identity.DetectGPG(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if id == nil {
		return nil, false, fmt.Errorf("gpg exited cleanly but no secret key exists for %s", email)
	}

	// Encryption subkey for completeness; signing works without it.
	sub := exec.CommandContext(ctx, "gpg", "--batch", "--passphrase", "", "--quick-add-key", id.KeyID, "cv25519", "encr", "3y")
	sub.Stdout = io.Discard
	sub.Stderr = io.Discard
	if err := sub.Run(); err != nil {
		log.Debug().Err(err).Msg("encryption subkey not added")
	}

	log.Debug().Str("key_id", id.KeyID).Msg("gpg key generated")
	return id, true, nil
}

// LoadAgent adds the private key to the running ssh-agent so pushes
// don't re-prompt for the passphrase. Failure is advisory; the key
// still works without the agent.
func LoadAgent(ctx context.Context, keyPath string) error {
	args := []string{keyPath}
	if runtime.GOOS == "darwin" {
		args = []string{"--apple-use-keychain", keyPath}
	}
	cmd := exec.CommandContext(ctx, "ssh-add", args...)
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ssh-add: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

// RestartGPGAgent reloads gpg-agent so pinentry configuration takes
// effect. Best effort.
func RestartGPGAgent(ctx context.Context) {
	kill := exec.CommandContext(ctx, "gpgconf", "--kill", "gpg-agent")
	kill.Stdout = io.Discard
	kill.Stderr = io.Discard
	_ = kill.Run()
	launch := exec.CommandContext(ctx, "gpgconf", "--launch", "gpg-agent")
	launch.Stdout = io.Discard
	launch.Stderr = io.Discard
	_ = launch.Run()
}
