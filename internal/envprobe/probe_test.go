package envprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/devforge/gitsetup/internal/identity"
)

const fixturePub = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAN986NJwVK1jyQBjdXz/94EvByFCJsLHz81NgJAcx+o dev@example.com\n"

func TestProbeBareMachine(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	p := &Prober{SSHDir: t.TempDir()}
	st := p.Probe(context.Background())

	for _, tool := range RequiredTools {
		if st.HasTool(tool) {
			t.Fatalf("tool %s reported present with empty PATH", tool)
		}
	}
	if st.Auth != nil || st.Signing != nil {
		t.Fatal("expected no identities")
	}
	if st.RemoteAuth != PresenceUnknown || st.RemoteSigning != PresenceUnknown {
		t.Fatalf("remote presence = %v/%v, want unknown without gh", st.RemoteAuth, st.RemoteSigning)
	}
	if st.GHAuthenticated {
		t.Fatal("gh cannot be authenticated without gh")
	}
}

func TestProbeFindsLocalAuthIdentity(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	sshDir := t.TempDir()
	priv := identity.SSHKeyPath(sshDir)
	if err := os.WriteFile(priv, []byte("PRIVATE"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(priv+".pub", []byte(fixturePub), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &Prober{SSHDir: sshDir}
	st := p.Probe(context.Background())
	if st.Auth == nil {
		t.Fatal("expected auth identity")
	}
	if got := st.Identity(identity.PurposeAuth); got != st.Auth {
		t.Fatal("Identity accessor mismatch")
	}
}

func TestProbeReadsDotfileMarkers(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	dir := t.TempDir()
	sshConfig := filepath.Join(dir, "config")
	rc := filepath.Join(dir, ".zshrc")
	if err := os.WriteFile(sshConfig, []byte("Host github.com\n  IdentityFile ~/.ssh/id_ed25519\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(rc, []byte("export GPG_TTY=$(tty)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &Prober{
		SSHDir:        t.TempDir(),
		SSHConfigPath: sshConfig,
		ShellRCPath:   rc,
		GPGAgentConf:  filepath.Join(dir, "gpg-agent.conf"), // absent
	}
	st := p.Probe(context.Background())
	if !st.SSHConfigured {
		t.Fatal("ssh config marker not detected")
	}
	if !st.GPGTTYConfigured {
		t.Fatal("GPG_TTY marker not detected")
	}
	if st.PinentryConfigured {
		t.Fatal("absent gpg-agent.conf reported configured")
	}
}

func TestProbeRecordsWarningForUnreadableKey(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	sshDir := t.TempDir()
	pub := identity.SSHKeyPath(sshDir) + ".pub"
	// Public key present, private key missing: detection errors, probe
	// must degrade to a warning rather than fail.
	if err := os.WriteFile(pub, []byte(fixturePub), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &Prober{SSHDir: sshDir}
	st := p.Probe(context.Background())
	if st.Auth != nil {
		t.Fatal("broken identity must read as absent")
	}
	if len(st.Warnings) == 0 {
		t.Fatal("expected a warning")
	}
}

func TestPresenceString(t *testing.T) {
	if PresencePresent.String() != "present" || PresenceAbsent.String() != "absent" || PresenceUnknown.String() != "unknown" {
		t.Fatal("presence strings wrong")
	}
}
