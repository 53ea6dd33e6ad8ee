package identity

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	fixturePub         = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAN986NJwVK1jyQBjdXz/94EvByFCJsLHz81NgJAcx+o dev@example.com\n"
	fixtureFingerprint = "SHA256:Gvb6bJMjodJuUsyxSr1Lkxt/vKoEMha3+6gQjg3rY6k"
)

func TestFingerprintPublicKeyMatchesSSHKeygen(t *testing.T) {
	fp, comment, err := FingerprintPublicKey([]byte(fixturePub))
	if err != nil {
		t.Fatalf("FingerprintPublicKey: %v", err)
	}
	if fp != fixtureFingerprint {
		t.Fatalf("fingerprint = %q, want %q", fp, fixtureFingerprint)
	}
	if comment != "dev@example.com" {
		t.Fatalf("comment = %q", comment)
	}
}

func TestFingerprintPublicKeyRejectsGarbage(t *testing.T) {
	if _, _, err := FingerprintPublicKey([]byte("not a key")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPublicKeyBlobDropsComment(t *testing.T) {
	blob := PublicKeyBlob([]byte(fixturePub))
	want := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAN986NJwVK1jyQBjdXz/94EvByFCJsLHz81NgJAcx+o"
	if blob != want {
		t.Fatalf("blob = %q, want %q", blob, want)
	}
}

func TestDetectSSHAbsent(t *testing.T) {
	id, err := DetectSSH(t.TempDir())
	if err != nil {
		t.Fatalf("DetectSSH: %v", err)
	}
	if id != nil {
		t.Fatalf("expected nil identity, got %+v", id)
	}
}

func TestDetectSSHFindsExistingKey(t *testing.T) {
	dir := t.TempDir()
	priv := SSHKeyPath(dir)
	if err := os.WriteFile(priv, []byte("PRIVATE"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(priv+".pub", []byte(fixturePub), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := DetectSSH(dir)
	if err != nil {
		t.Fatalf("DetectSSH: %v", err)
	}
	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Purpose != PurposeAuth {
		t.Fatalf("purpose = %q", id.Purpose)
	}
	if id.Fingerprint != fixtureFingerprint {
		t.Fatalf("fingerprint = %q", id.Fingerprint)
	}
	if id.PrivatePath != priv {
		t.Fatalf("private path = %q", id.PrivatePath)
	}
	if id.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt from file mtime")
	}
}

func TestDetectSSHOrphanedPublicKey(t *testing.T) {
	dir := t.TempDir()
	pub := SSHKeyPath(dir) + ".pub"
	if err := os.WriteFile(pub, []byte(fixturePub), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DetectSSH(dir); err == nil {
		t.Fatal("expected error for public key without private key")
	}
}

func TestSSHKeyPathIsDeterministic(t *testing.T) {
	got := SSHKeyPath("/home/dev/.ssh")
	if got != filepath.Join("/home/dev/.ssh", "id_ed25519") {
		t.Fatalf("path = %q", got)
	}
}

const colonListing = `sec:u:256:22:4AEE18F83AFDEB23:1697040000:1791648000::u:::scESC:::+::ed25519:::0:
fpr:::::::::B5690EEEBB952194C09C32FA4AEE18F83AFDEB23:
grp:::::::::0123456789ABCDEF0123456789ABCDEF01234567:
uid:u::::1697040000::DEADBEEF::Ada Lovelace <dev@example.com>::::::::::0:
ssb:u:256:18:AABBCCDDEEFF0011:1697040000::::::e:::+::cv25519:
`

func TestParseSecretKeyListing(t *testing.T) {
	id, ok := ParseSecretKeyListing(colonListing)
	if !ok {
		t.Fatal("expected a key")
	}
	if id.KeyID != "4AEE18F83AFDEB23" {
		t.Fatalf("key id = %q", id.KeyID)
	}
	if id.Fingerprint != "B5690EEEBB952194C09C32FA4AEE18F83AFDEB23" {
		t.Fatalf("fingerprint = %q", id.Fingerprint)
	}
	if id.Algorithm != "ed25519" {
		t.Fatalf("algorithm = %q", id.Algorithm)
	}
	if id.Comment != "Ada Lovelace <dev@example.com>" {
		t.Fatalf("comment = %q", id.Comment)
	}
	if id.CreatedAt.IsZero() {
		t.Fatal("expected creation time")
	}
}

func TestParseSecretKeyListingEmpty(t *testing.T) {
	if _, ok := ParseSecretKeyListing(""); ok {
		t.Fatal("expected no key from empty listing")
	}
}

func TestParseSecretKeyListingTakesFirstKey(t *testing.T) {
	double := colonListing + colonListing
	id, ok := ParseSecretKeyListing(double)
	if !ok || id.KeyID != "4AEE18F83AFDEB23" {
		t.Fatalf("expected first key, got %+v ok=%v", id, ok)
	}
}
