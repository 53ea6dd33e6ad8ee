// Package registrar publishes public key material to the user's GitHub
// account through the gh CLI. gh owns token storage and the
// browser-driven authorization flow; the wizard only consumes its exit
// status and JSON output.
//
// Registration is idempotent by construction: a "key already exists"
// response from GitHub is a success outcome, not an error, because two
// runs racing the same key must converge on the same end state.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/devforge/gitsetup/internal/identity"
)

// Outcome tags how a registration concluded. Both values advance the
// capability to the same state; the tag exists for reporting.
type Outcome int

const (
	// OutcomeCreated means GitHub accepted a new key.
	OutcomeCreated Outcome = iota
	// OutcomeAlreadyPresent means GitHub already had this key.
	OutcomeAlreadyPresent
)

func (o Outcome) String() string {
	if o == OutcomeAlreadyPresent {
		return "already present"
	}
	return "created"
}

// ErrUnreachable indicates GitHub could not be contacted. Callers
// degrade to local-only configuration rather than aborting.
var ErrUnreachable = errors.New("github unreachable")

// Record confirms a public key is registered remotely.
type Record struct {
	Outcome      Outcome
	Fingerprint  string
	RemoteID     string
	RegisteredAt time.Time
}

// RemoteKey is one entry from GitHub's key listing.
type RemoteKey struct {
	ID        int64  `json:"id"`
	Key       string `json:"key"`
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// Authenticated reports whether gh has a usable GitHub login.
func Authenticated(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "gh", "auth", "status")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

// EnsureAuth runs gh's browser login when no session exists. The wait
// is unbounded: the human finishes the authorization in their browser,
// and only context cancellation interrupts it.
func EnsureAuth(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	if Authenticated(ctx) {
		return nil
	}
	cmd := exec.CommandContext(ctx, "gh", "auth", "login", "--web", "--git-protocol", "ssh")
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("gh auth login: %w", err)
	}
	return nil
}

// ListAuthKeys fetches the account's registered SSH keys.
func ListAuthKeys(ctx context.Context) ([]RemoteKey, error) {
	out, err := ghAPI(ctx, "user/keys")
	if err != nil {
		return nil, err
	}
	return parseRemoteKeys(out)
}

// ListSigningKeys fetches the account's registered GPG keys.
func ListSigningKeys(ctx context.Context) ([]RemoteKey, error) {
	out, err := ghAPI(ctx, "user/gpg_keys")
	if err != nil {
		return nil, err
	}
	return parseRemoteKeys(out)
}

func ghAPI(ctx context.Context, endpoint string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", "api", endpoint)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if isUnreachable(msg) {
			return nil, fmt.Errorf("%w: %s", ErrUnreachable, msg)
		}
		return nil, fmt.Errorf("gh api %s: %s", endpoint, firstLine(msg, err))
	}
	return stdout.Bytes(), nil
}

func parseRemoteKeys(data []byte) ([]RemoteKey, error) {
	var keys []RemoteKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse key listing: %w", err)
	}
	return keys, nil
}

// MatchAuthKey reports whether the identity's public key appears in
// the listing. GitHub stores the "type base64" blob without comment.
func MatchAuthKey(keys []RemoteKey, id *identity.Identity) bool {
	if id == nil || id.PublicPath == "" {
		return false
	}
	data, err := os.ReadFile(id.PublicPath)
	if err != nil {
		return false
	}
	blob := identity.PublicKeyBlob(data)
	for _, k := range keys {
		if identity.PublicKeyBlob([]byte(k.Key)) == blob {
			return true
		}
	}
	return false
}

// MatchSigningKey reports whether the identity's GPG key id appears in
// the listing. GitHub exposes the long (16 hex) key id, which is the
// fingerprint's tail.
func MatchSigningKey(keys []RemoteKey, id *identity.Identity) bool {
	if id == nil || id.KeyID == "" {
		return false
	}
	for _, k := range keys {
		if strings.EqualFold(k.KeyID, id.KeyID) {
			return true
		}
		if id.Fingerprint != "" && strings.EqualFold(k.KeyID, tail(id.Fingerprint, 16)) {
			return true
		}
	}
	return false
}

// RegisterSSH submits the authentication public key.
func RegisterSSH(ctx context.Context, id *identity.Identity, title string) (*Record, error) {
	cmd := exec.CommandContext(ctx, "gh", "ssh-key", "add", id.PublicPath, "--title", title)
	return register(ctx, cmd, id)
}

// RegisterGPG exports the signing key's armored public half to a temp
// file and submits it.
func RegisterGPG(ctx context.Context, id *identity.Identity) (*Record, error) {
	armor, err := exportArmor(ctx, id.KeyID)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp("", "gitsetup-gpg-*.asc")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(armor); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, "gh", "gpg-key", "add", tmp.Name())
	return register(ctx, cmd, id)
}

func register(ctx context.Context, cmd *exec.Cmd, id *identity.Identity) (*Record, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
		switch {
		case isConflict(msg):
			// Expected and benign: a previous run (or the user, by
			// hand) already registered this key.
			log.Debug().Str("fingerprint", id.Fingerprint).Msg("key already registered")
			return &Record{
				Outcome:      OutcomeAlreadyPresent,
				Fingerprint:  id.Fingerprint,
				RegisteredAt: time.Now(),
			}, nil
		case isUnreachable(msg):
			return nil, fmt.Errorf("%w: %s", ErrUnreachable, firstLine(msg, err))
		default:
			return nil, fmt.Errorf("register %s key: %s", id.Purpose, firstLine(msg, err))
		}
	}
	return &Record{
		Outcome:      OutcomeCreated,
		Fingerprint:  id.Fingerprint,
		RegisteredAt: time.Now(),
	}, nil
}

func exportArmor(ctx context.Context, keyID string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gpg", "--armor", "--export", keyID)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gpg --export %s: %s", keyID, firstLine(stderr.String(), err))
	}
	if !bytes.Contains(stdout.Bytes(), []byte("BEGIN PGP PUBLIC KEY BLOCK")) {
		return nil, fmt.Errorf("gpg --export %s produced no key material", keyID)
	}
	return stdout.Bytes(), nil
}

// isConflict recognizes GitHub's duplicate-key responses across the
// phrasings gh surfaces them with.
func isConflict(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range []string{
		"already in use",
		"already exists",
		"key_id already exists",
		"duplicate",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// isUnreachable recognizes network-level failures, as opposed to
// GitHub rejecting the request.
func isUnreachable(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range []string{
		"could not resolve",
		"no such host",
		"network is unreachable",
		"connection refused",
		"connection timed out",
		"timeout",
		"error connecting",
		"dial tcp",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func firstLine(msg string, fallback error) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return fallback.Error()
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
