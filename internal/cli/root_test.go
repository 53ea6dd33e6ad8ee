package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Fatalf("version printed nothing")
	}
}

func TestRootSubcommands(t *testing.T) {
	cmd := newRootCommand()
	want := []string{"setup", "status", "doctor", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRequireOnPathMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if err := requireOnPath("definitely-not-a-tool")(nil); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}

func TestCheckWritableDir(t *testing.T) {
	dir := t.TempDir()
	if err := checkWritableDir(dir); err != nil {
		t.Fatalf("writable dir rejected: %v", err)
	}
	// Missing directory under a writable parent is fine; setup creates it.
	if err := checkWritableDir(filepath.Join(dir, "not", "yet", "made")); err != nil {
		t.Fatalf("missing dir under writable parent rejected: %v", err)
	}
}
