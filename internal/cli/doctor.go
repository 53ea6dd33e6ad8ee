package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/devforge/gitsetup/internal/config"
	"github.com/devforge/gitsetup/internal/envprobe"
)

func newDoctorCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose prerequisites and environment issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show passing checks too")
	return cmd
}

type doctorContext struct {
	SSHDir string
	Home   string
}

type doctorCheck struct {
	Name string
	Fn   func(*doctorContext) error
}

func runDoctor(cmd *cobra.Command, verbose bool) error {
	ctx := &doctorContext{}
	checks := []doctorCheck{}
	for _, tool := range envprobe.RequiredTools {
		checks = append(checks, doctorCheck{
			Name: tool + " installed",
			Fn:   requireOnPath(tool),
		})
	}
	checks = append(checks,
		doctorCheck{Name: "gh authenticated", Fn: checkGhAuth},
		doctorCheck{Name: "home directory resolvable", Fn: func(c *doctorContext) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			c.Home = home
			return nil
		}},
		doctorCheck{Name: "ssh directory writable", Fn: func(c *doctorContext) error {
			cfgPath, err := config.DefaultPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			dir, err := cfg.ResolveSSHDir()
			if err != nil {
				return err
			}
			c.SSHDir = dir
			return checkWritableDir(dir)
		}},
		doctorCheck{Name: "gnupg directory writable", Fn: func(c *doctorContext) error {
			if c.Home == "" {
				return errors.New("home not resolved")
			}
			return checkWritableDir(filepath.Join(c.Home, ".gnupg"))
		}},
	)

	var failures []string
	for _, check := range checks {
		err := check.Fn(ctx)
		if err != nil {
			failures = append(failures, fmt.Sprintf("✗ %s: %v", check.Name, err))
			continue
		}
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", check.Name)
		}
	}

	if len(failures) > 0 {
		for _, failure := range failures {
			fmt.Fprintln(cmd.ErrOrStderr(), failure)
		}
		return fmt.Errorf("%d doctor checks failed", len(failures))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "healthy!")
	return nil
}

func requireOnPath(binary string) func(*doctorContext) error {
	return func(*doctorContext) error {
		if _, err := exec.LookPath(binary); err != nil {
			return fmt.Errorf("%s not found on PATH", binary)
		}
		return nil
	}
}

func checkGhAuth(*doctorContext) error {
	cmd := exec.Command("gh", "auth", "status", "--exit-status")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

// checkWritableDir accepts a missing directory: the wizard creates it
// with the right permissions, so only an unwritable parent is a fault.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return checkWritableDir(filepath.Dir(dir))
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	probe := filepath.Join(dir, ".gitsetup-doctor")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("cannot write in %s", dir)
	}
	f.Close()
	os.Remove(probe)
	return nil
}
