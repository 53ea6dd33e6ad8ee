// Package gitutil wraps the git CLI. The wizard only ever touches
// global configuration; repository operations are out of scope.
package gitutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Run executes git and returns trimmed stdout.
func Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %v\n%s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Version reports the installed git version line.
func Version(ctx context.Context) (string, error) {
	return Run(ctx, "--version")
}

// ConfigGet reads a global config key. A missing key is not an error;
// it yields the empty string.
func ConfigGet(ctx context.Context, key string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "config", "--global", "--get", key)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git config --get %s: %v\n%s", key, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ConfigSet writes a global config key. git replaces the value in
// place, so repeated calls never accumulate duplicate entries.
func ConfigSet(ctx context.Context, key, value string) error {
	_, err := Run(ctx, "config", "--global", key, value)
	return err
}
