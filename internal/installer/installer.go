// Package installer ensures OS-level tools exist before the wizard
// needs them. It is a deliberately thin collaborator: the wizard asks
// for a tool and gets back "installed" or a diagnosable error, nothing
// else. Installation is the only place in the wizard that retries, and
// it is bounded to two attempts.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// ErrNoPackageManager indicates no supported package manager exists.
var ErrNoPackageManager = errors.New("no supported package manager found (brew or apt-get)")

// Installer installs packages through the host's package manager.
type Installer struct {
	Stdout io.Writer
	Stderr io.Writer

	// RetryInterval is the pause before the second install attempt.
	RetryInterval time.Duration

	// run is the subprocess seam, replaceable in tests.
	run func(ctx context.Context, name string, args ...string) error
	// lookPath is the PATH probe seam.
	lookPath func(name string) (string, error)
}

// New builds an Installer writing tool output to the given streams.
func New(stdout, stderr io.Writer) *Installer {
	inst := &Installer{Stdout: stdout, Stderr: stderr, lookPath: exec.LookPath}
	inst.run = func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = inst.Stdout
		cmd.Stderr = inst.Stderr
		return cmd.Run()
	}
	return inst
}

// packageFor maps a tool name to the package that provides it.
func packageFor(tool string) string {
	switch tool {
	case "gpg", "gpgconf":
		return "gnupg"
	case "ssh-keygen", "ssh":
		return "openssh"
	default:
		return tool
	}
}

// EnsureTool makes tool available on PATH, installing its package if
// needed. At most two install attempts run before giving up.
func (i *Installer) EnsureTool(ctx context.Context, tool string) error {
	if _, err := i.lookPath(tool); err == nil {
		return nil
	}

	mgr, installArgs, err := i.detectManager()
	if err != nil {
		return fmt.Errorf("install %s: %w", tool, err)
	}
	pkg := packageFor(tool)
	log.Debug().Str("tool", tool).Str("package", pkg).Str("manager", mgr).Msg("installing")

	attempt := func() (struct{}, error) {
		args := append(installArgs[:len(installArgs):len(installArgs)], pkg)
		if err := i.run(ctx, mgr, args...); err != nil {
			return struct{}{}, fmt.Errorf("%s install %s: %w", mgr, pkg, err)
		}
		return struct{}{}, nil
	}
	interval := i.RetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if _, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(2),
	); err != nil {
		return err
	}

	if _, err := i.lookPath(tool); err != nil {
		return fmt.Errorf("%s installed but %s still not on PATH (restart your terminal?)", pkg, tool)
	}
	return nil
}

func (i *Installer) detectManager() (string, []string, error) {
	if runtime.GOOS == "darwin" {
		if _, err := i.lookPath("brew"); err == nil {
			return "brew", []string{"install"}, nil
		}
		return "", nil, ErrNoPackageManager
	}
	if _, err := i.lookPath("brew"); err == nil {
		return "brew", []string{"install"}, nil
	}
	if _, err := i.lookPath("apt-get"); err == nil {
		return "apt-get", []string{"install", "-y"}, nil
	}
	return "", nil, ErrNoPackageManager
}
