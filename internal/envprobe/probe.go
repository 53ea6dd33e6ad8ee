// Package envprobe observes the host: which tools exist, which
// identities already live on disk or in the keyring, what git config
// currently says, and whether the public keys appear on GitHub. A
// probe never mutates anything; the orchestrator re-probes before
// every transition instead of trusting earlier in-memory state.
package envprobe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/devforge/gitsetup/internal/dotfiles"
	"github.com/devforge/gitsetup/internal/gitutil"
	"github.com/devforge/gitsetup/internal/identity"
	"github.com/devforge/gitsetup/internal/registrar"
)

// Presence is a three-valued answer about a remote key. Unknown and
// Absent are deliberately distinct: Absent means GitHub was asked and
// said no, Unknown means GitHub could not be asked, and only the
// latter permits an optimistic registration attempt.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresenceAbsent
	PresencePresent
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// ManagedConfigKeys are the git config keys the wizard owns.
var ManagedConfigKeys = []string{
	"user.name",
	"user.email",
	"user.signingkey",
	"commit.gpgsign",
	"gpg.program",
}

// RequiredTools must exist for the full wizard to run.
var RequiredTools = []string{"git", "gh", "ssh", "ssh-keygen", "gpg", "gpgconf"}

// State is one observation of the host. It is never cached between
// transitions.
type State struct {
	OS              string
	Tools           map[string]bool
	GHAuthenticated bool

	Auth    *identity.Identity
	Signing *identity.Identity

	GitConfig map[string]string

	SSHConfigured      bool // github host block in ssh config
	PinentryConfigured bool
	GPGTTYConfigured   bool

	RemoteAuth    Presence
	RemoteSigning Presence

	Warnings []string
}

// HasTool reports tool availability from the snapshot.
func (s *State) HasTool(name string) bool { return s.Tools[name] }

// Identity returns the snapshot's identity for a purpose.
func (s *State) Identity(p identity.Purpose) *identity.Identity {
	if p == identity.PurposeAuth {
		return s.Auth
	}
	return s.Signing
}

// RemotePresence returns the snapshot's remote answer for a purpose.
func (s *State) RemotePresence(p identity.Purpose) Presence {
	if p == identity.PurposeAuth {
		return s.RemoteAuth
	}
	return s.RemoteSigning
}

// Prober inspects the host. Zero-value fields fall back to the user's
// real home; tests point them elsewhere.
type Prober struct {
	SSHDir        string // directory holding the authentication key
	SSHConfigPath string // ssh client config
	GPGAgentConf  string // gpg-agent.conf
	ShellRCPath   string // rc file that should export GPG_TTY
	Email         string // identity email, for keyring lookup
}

// Probe takes a fresh snapshot. It never fails outright; unreadable
// paths become warnings on the state and the affected field reads as
// absent or unknown.
func (p *Prober) Probe(ctx context.Context) *State {
	st := &State{
		OS:        runtime.GOOS,
		Tools:     make(map[string]bool, len(RequiredTools)),
		GitConfig: make(map[string]string, len(ManagedConfigKeys)),
	}

	for _, tool := range RequiredTools {
		_, err := exec.LookPath(tool)
		st.Tools[tool] = err == nil
	}

	if st.Tools["git"] {
		for _, key := range ManagedConfigKeys {
			value, err := gitutil.ConfigGet(ctx, key)
			if err != nil {
				st.warnf("read git config %s: %v", key, err)
				continue
			}
			if value != "" {
				st.GitConfig[key] = value
			}
		}
	}

	auth, err := identity.DetectSSH(p.SSHDir)
	if err != nil {
		st.warnf("%v", err)
	}
	st.Auth = auth

	if st.Tools["gpg"] {
		signing, err := identity.DetectGPG(ctx, p.Email)
		if err != nil {
			st.warnf("%v", err)
		}
		st.Signing = signing
	}

	st.SSHConfigured = p.fileContains(st, p.SSHConfigPath, dotfiles.HasGitHubHost)
	st.PinentryConfigured = p.fileContains(st, p.GPGAgentConf, func(c string) bool {
		return strings.Contains(c, "pinentry-program")
	})
	st.GPGTTYConfigured = p.fileContains(st, p.ShellRCPath, func(c string) bool {
		return strings.Contains(c, "GPG_TTY")
	})

	p.probeRemote(ctx, st)
	log.Debug().
		Bool("gh_auth", st.GHAuthenticated).
		Str("remote_auth", st.RemoteAuth.String()).
		Str("remote_signing", st.RemoteSigning.String()).
		Msg("environment probed")
	return st
}

// probeRemote asks GitHub which keys it knows. Anything that prevents
// the question being answered yields Unknown, never Absent.
func (p *Prober) probeRemote(ctx context.Context, st *State) {
	st.RemoteAuth = PresenceUnknown
	st.RemoteSigning = PresenceUnknown

	if !st.Tools["gh"] {
		return
	}
	st.GHAuthenticated = registrar.Authenticated(ctx)
	if !st.GHAuthenticated {
		return
	}

	if st.Auth != nil {
		keys, err := registrar.ListAuthKeys(ctx)
		if err != nil {
			st.warnf("list remote ssh keys: %v", err)
		} else if registrar.MatchAuthKey(keys, st.Auth) {
			st.RemoteAuth = PresencePresent
		} else {
			st.RemoteAuth = PresenceAbsent
		}
	} else {
		st.RemoteAuth = PresenceAbsent
	}

	if st.Signing != nil {
		keys, err := registrar.ListSigningKeys(ctx)
		if err != nil {
			st.warnf("list remote gpg keys: %v", err)
		} else if registrar.MatchSigningKey(keys, st.Signing) {
			st.RemoteSigning = PresencePresent
		} else {
			st.RemoteSigning = PresenceAbsent
		}
	} else {
		st.RemoteSigning = PresenceAbsent
	}
}

func (p *Prober) fileContains(st *State, path string, pred func(string) bool) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.warnf("read %s: %v", path, err)
		}
		return false
	}
	return pred(string(data))
}

func (s *State) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}
