package dotfiles

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestEnsureSSHConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ssh", "config")
	changed, err := EnsureSSHConfig(path, "~/.ssh/id_ed25519", false)
	if err != nil {
		t.Fatalf("EnsureSSHConfig: %v", err)
	}
	if !changed {
		t.Fatal("expected a write")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Host github.com") {
		t.Fatalf("missing host block:\n%s", data)
	}
	if !strings.Contains(string(data), "IdentityFile ~/.ssh/id_ed25519") {
		t.Fatalf("missing identity file:\n%s", data)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Fatalf("perm = %o, want 600", info.Mode().Perm())
		}
	}
}

func TestEnsureSSHConfigPreservesUnrelatedHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	existing := "Host staging\n  HostName staging.internal\n  User deploy\n"
	if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureSSHConfig(path, "~/.ssh/id_ed25519", true); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "Host staging") || !strings.Contains(got, "User deploy") {
		t.Fatalf("unrelated content lost:\n%s", got)
	}
	if !strings.Contains(got, "UseKeychain yes") {
		t.Fatalf("keychain directive missing:\n%s", got)
	}
}

func TestEnsureSSHConfigIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if _, err := EnsureSSHConfig(path, "~/.ssh/id_ed25519", false); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := EnsureSSHConfig(path, "~/.ssh/id_ed25519", false)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("second run should be a no-op")
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("file not byte-stable across runs:\n%q\nvs\n%q", first, second)
	}
}

func TestEnsureSSHConfigRespectsExistingGitHubBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	existing := "Host GitHub.com\n  IdentityFile ~/.ssh/custom_key\n"
	if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
		t.Fatal(err)
	}
	changed, err := EnsureSSHConfig(path, "~/.ssh/id_ed25519", false)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("must not touch a user-managed github block")
	}
}

func TestEnsurePinentry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpg-agent.conf")
	changed, err := EnsurePinentry(path, "/opt/homebrew/bin/pinentry-mac")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected a write")
	}
	changed, err = EnsurePinentry(path, "/usr/local/bin/pinentry-mac")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("existing pinentry-program line must win")
	}
}

func TestEnsureGPGTTYAppendsWithoutClobbering(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".zshrc")
	if err := os.WriteFile(path, []byte("alias ll='ls -l'"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureGPGTTY(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "alias ll='ls -l'\n") {
		t.Fatalf("existing rc content mangled:\n%s", got)
	}
	if !strings.Contains(got, "export GPG_TTY=$(tty)") {
		t.Fatalf("export missing:\n%s", got)
	}
}

func TestShellRCPath(t *testing.T) {
	cases := []struct {
		shell string
		want  string
	}{
		{"/bin/zsh", ".zshrc"},
		{"/opt/homebrew/bin/bash", ".bash_profile"},
		{"/bin/fish", ".profile"},
		{"", ".profile"},
	}
	for _, c := range cases {
		got := ShellRCPath("/home/dev", c.shell)
		if filepath.Base(got) != c.want {
			t.Fatalf("ShellRCPath(%q) = %q, want base %q", c.shell, got, c.want)
		}
	}
}
