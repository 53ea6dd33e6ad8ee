// Package identity models the local keypairs the wizard provisions: an
// SSH key for authenticating to GitHub and a GPG key for signing
// commits. Detection is read-only; generation lives in keygen.
package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// Purpose distinguishes what a keypair is for.
type Purpose string

const (
	// PurposeAuth is the SSH key GitHub authenticates pushes with.
	PurposeAuth Purpose = "authentication"
	// PurposeSigning is the GPG key git signs commits with.
	PurposeSigning Purpose = "signing"
)

// Algorithm is fixed: the wizard only ever generates ed25519 keys.
const Algorithm = "ed25519"

// Identity is one local keypair. The private half never leaves disk
// (SSH) or the gpg keyring (GPG); only Fingerprint and the public half
// are ever shared.
type Identity struct {
	Purpose     Purpose
	Algorithm   string
	Fingerprint string // SHA256:... for SSH, 40-hex for GPG
	KeyID       string // GPG long key id; empty for SSH
	PrivatePath string // private key file (SSH) or keyring dir (GPG)
	PublicPath  string // .pub file; empty for GPG
	Comment     string
	CreatedAt   time.Time
}

// SSHKeyPath returns the deterministic private key location for the
// authentication identity, so re-runs find what earlier runs made.
func SSHKeyPath(sshDir string) string {
	return filepath.Join(sshDir, "id_"+Algorithm)
}

// DefaultSSHDir is ~/.ssh unless overridden by configuration.
func DefaultSSHDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ssh"), nil
}

// DetectSSH looks for an existing authentication identity under sshDir.
// Absence is not an error; it returns (nil, nil). Unreadable files do
// return an error so the caller can surface a permissions warning.
func DetectSSH(sshDir string) (*Identity, error) {
	priv := SSHKeyPath(sshDir)
	pub := priv + ".pub"

	data, err := os.ReadFile(pub)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", pub, err)
	}
	info, err := os.Stat(priv)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Orphaned public key; treat the identity as absent so the
			// generator can refuse to clobber it explicitly.
			return nil, fmt.Errorf("public key %s exists but private key is missing", pub)
		}
		return nil, fmt.Errorf("stat %s: %w", priv, err)
	}

	fingerprint, comment, err := FingerprintPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pub, err)
	}

	return &Identity{
		Purpose:     PurposeAuth,
		Algorithm:   Algorithm,
		Fingerprint: fingerprint,
		PrivatePath: priv,
		PublicPath:  pub,
		Comment:     comment,
		CreatedAt:   info.ModTime(),
	}, nil
}

// FingerprintPublicKey computes the SHA256 fingerprint of an
// authorized-keys formatted public key, matching what ssh-keygen -lf
// and GitHub's key listing display.
func FingerprintPublicKey(data []byte) (fingerprint, comment string, err error) {
	key, comment, _, _, err := ssh.ParseAuthorizedKey(bytes.TrimSpace(data))
	if err != nil {
		return "", "", err
	}
	return ssh.FingerprintSHA256(key), comment, nil
}

// PublicKeyBlob returns the "type base64" portion of an authorized-keys
// line, dropping the comment. GitHub stores keys in this form.
func PublicKeyBlob(data []byte) string {
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return strings.TrimSpace(string(data))
	}
	return fields[0] + " " + fields[1]
}

// DetectGPG looks for an existing signing identity in the gpg keyring
// matching email. Returns (nil, nil) when no secret key exists.
func DetectGPG(ctx context.Context, email string) (*Identity, error) {
	if email == "" {
		return nil, nil
	}
	if _, err := exec.LookPath("gpg"); err != nil {
		return nil, nil
	}
	cmd := exec.CommandContext(ctx, "gpg", "--batch", "--with-colons", "--list-secret-keys", email)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// gpg exits nonzero when no secret key matches; that's absence.
		log.Debug().Str("email", email).Msg("gpg reported no secret key")
		return nil, nil
	}
	id, ok := ParseSecretKeyListing(stdout.String())
	if !ok {
		return nil, nil
	}
	id.PrivatePath = gnupgHome()
	return id, nil
}

// ParseSecretKeyListing extracts the first secret key from gpg's
// machine-readable (--with-colons) listing. The sec record carries the
// long key id and creation time; the following fpr record carries the
// full fingerprint.
func ParseSecretKeyListing(out string) (*Identity, bool) {
	var id *Identity
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, ":")
		switch fields[0] {
		case "sec":
			if id != nil {
				return id, true // only the first key
			}
			if len(fields) < 6 {
				continue
			}
			id = &Identity{
				Purpose:   PurposeSigning,
				Algorithm: algorithmName(fields[3]),
				KeyID:     fields[4],
			}
			if epoch, err := strconv.ParseInt(fields[5], 10, 64); err == nil {
				id.CreatedAt = time.Unix(epoch, 0)
			}
		case "fpr":
			if id != nil && id.Fingerprint == "" && len(fields) > 9 {
				id.Fingerprint = fields[9]
			}
		case "uid":
			if id != nil && id.Comment == "" && len(fields) > 9 {
				id.Comment = fields[9]
			}
		}
	}
	return id, id != nil
}

// algorithmName maps gpg's numeric public key algorithm field to a
// human name. 22 is EdDSA (RFC 4880bis).
func algorithmName(field string) string {
	switch field {
	case "22":
		return "ed25519"
	case "1":
		return "rsa"
	default:
		return "algo-" + field
	}
}

func gnupgHome() string {
	if dir := os.Getenv("GNUPGHOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gnupg")
}
