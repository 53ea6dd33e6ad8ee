// Package dotfiles upserts the wizard's stanzas into user-owned files:
// the github host block in ~/.ssh/config, the pinentry line in
// gpg-agent.conf, and the GPG_TTY export in the shell rc. Every write
// replaces the whole file through an atomic rename so an interrupted
// run can never leave a torn file, and unrelated user content is
// always preserved verbatim.
package dotfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
)

// Upsert appends addition to the file at path unless present already
// reports the stanza is there. It reports whether the file changed.
func Upsert(path string, present func(content string) bool, addition string, perm os.FileMode) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(content)
	if present(text) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	text += addition
	if err := atomic.WriteFile(path, strings.NewReader(text)); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return false, fmt.Errorf("chmod %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("dotfile updated")
	return true, nil
}

// SSHConfigBlock is the host stanza that points ssh at the generated
// authentication key. keychain adds the macOS keychain directive.
func SSHConfigBlock(keyPath string, keychain bool) string {
	var b strings.Builder
	b.WriteString("\nHost github.com\n")
	b.WriteString("  AddKeysToAgent yes\n")
	if keychain {
		b.WriteString("  UseKeychain yes\n")
	}
	fmt.Fprintf(&b, "  IdentityFile %s\n", keyPath)
	return b.String()
}

// HasGitHubHost reports whether an ssh config already mentions
// github.com; the wizard never rewrites an existing host block.
func HasGitHubHost(content string) bool {
	return strings.Contains(strings.ToLower(content), "github.com")
}

// EnsureSSHConfig upserts the github host block into the ssh config.
func EnsureSSHConfig(path, keyPath string, keychain bool) (bool, error) {
	block := SSHConfigBlock(keyPath, keychain)
	return Upsert(path, HasGitHubHost, strings.TrimPrefix(block, "\n"), 0o600)
}

// EnsurePinentry points gpg-agent at a pinentry program so passphrase
// prompts work outside a plain tty.
func EnsurePinentry(confPath, pinentryPath string) (bool, error) {
	present := func(content string) bool {
		return strings.Contains(content, "pinentry-program")
	}
	line := fmt.Sprintf("pinentry-program %s\n", pinentryPath)
	return Upsert(confPath, present, line, 0o600)
}

// EnsureGPGTTY appends the GPG_TTY export gpg needs for terminal
// passphrase prompts.
func EnsureGPGTTY(rcPath string) (bool, error) {
	present := func(content string) bool {
		return strings.Contains(content, "GPG_TTY")
	}
	block := "\n# GPG commit signing\nexport GPG_TTY=$(tty)\n"
	return Upsert(rcPath, present, strings.TrimPrefix(block, "\n"), 0o644)
}

// ShellRCPath picks the rc file for the user's login shell.
func ShellRCPath(home, shell string) string {
	switch {
	case strings.Contains(shell, "zsh"):
		return filepath.Join(home, ".zshrc")
	case strings.Contains(shell, "bash"):
		return filepath.Join(home, ".bash_profile")
	default:
		return filepath.Join(home, ".profile")
	}
}
