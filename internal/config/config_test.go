package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "github.com" {
		t.Fatalf("host = %q", cfg.Host)
	}
	if cfg.KeyTitle == "" {
		t.Fatal("expected a default key title")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	in := Config{
		Name:     "Ada Lovelace",
		Email:    "dev@example.com",
		Host:     "github.com",
		KeyTitle: "work-macbook",
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Name != in.Name || out.Email != in.Email || out.KeyTitle != in.KeyTitle {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestLoadRejectsClearedHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("host = \"\"\nname = \"Ada\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// applyDefaults restores the host before validation.
	if cfg.Host != "github.com" {
		t.Fatalf("host = %q", cfg.Host)
	}
}

func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("host = [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolveSSHDirPrefersOverride(t *testing.T) {
	cfg := Config{SSHDir: "/custom/.ssh"}
	dir, err := cfg.ResolveSSHDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/custom/.ssh" {
		t.Fatalf("dir = %q", dir)
	}
}
