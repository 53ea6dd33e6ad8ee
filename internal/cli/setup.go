package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/devforge/gitsetup/internal/config"
	"github.com/devforge/gitsetup/internal/dotfiles"
	"github.com/devforge/gitsetup/internal/envprobe"
	"github.com/devforge/gitsetup/internal/gitcfg"
	"github.com/devforge/gitsetup/internal/gitutil"
	"github.com/devforge/gitsetup/internal/identity"
	"github.com/devforge/gitsetup/internal/installer"
	"github.com/devforge/gitsetup/internal/keygen"
	"github.com/devforge/gitsetup/internal/registrar"
	"github.com/devforge/gitsetup/internal/timefmt"
	"github.com/devforge/gitsetup/internal/ui"
	"github.com/devforge/gitsetup/internal/verify"
	"github.com/devforge/gitsetup/internal/wizard"
)

type setupOptions struct {
	name       string
	email      string
	yes        bool
	skipVerify bool
}

func defaultSetupOptions() *setupOptions {
	return &setupOptions{}
}

func newSetupCommand() *cobra.Command {
	opts := defaultSetupOptions()
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the provisioning wizard (the default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, opts)
		},
	}
	addSetupFlags(cmd, opts)
	return cmd
}

func addSetupFlags(cmd *cobra.Command, opts *setupOptions) {
	cmd.Flags().StringVar(&opts.name, "name", "", "full name for git commits and key comments")
	cmd.Flags().StringVar(&opts.email, "email", "", "email matching your GitHub account")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "never prompt; fail if name or email is unknown")
	cmd.Flags().BoolVar(&opts.skipVerify, "skip-verify", false, "configure without the live verification pass")
}

func runSetup(cmd *cobra.Command, opts *setupOptions) error {
	ctx := cmd.Context()
	out := ui.New(cmd.OutOrStdout())
	stdin := bufio.NewReader(cmd.InOrStdin())

	cfgPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	out.Phase(1, "Your identity")
	if err := collectIdentity(ctx, opts, &cfg, out, stdin); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("save %s: %w", cfgPath, err)
	}

	out.Phase(2, "Preflight")
	if err := preflight(ctx, out, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		out.Fail("%v", err)
		return &exitError{code: 2}
	}

	env, err := buildEnvironment(cfg)
	if err != nil {
		return err
	}

	out.Phase(3, "Provisioning")
	w := buildWizard(cmd, opts, cfg, env, out)
	report, runErr := w.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		return runErr
	}

	out.Phase(4, "Summary")
	printReport(ctx, out, env, report, runErr)

	if runErr != nil {
		return &exitError{code: 2}
	}
	if code := report.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// collectIdentity resolves name and email: flags win, then saved
// config, then existing git config, then an interactive prompt.
func collectIdentity(ctx context.Context, opts *setupOptions, cfg *config.Config, out *ui.Printer, stdin *bufio.Reader) error {
	if opts.name != "" {
		cfg.Name = opts.name
	}
	if opts.email != "" {
		cfg.Email = opts.email
	}
	if cfg.Name == "" {
		if v, err := gitutil.ConfigGet(ctx, "user.name"); err == nil && v != "" {
			cfg.Name = v
		}
	}
	if cfg.Email == "" {
		if v, err := gitutil.ConfigGet(ctx, "user.email"); err == nil && v != "" {
			cfg.Email = v
		}
	}

	if opts.yes {
		if cfg.Name == "" || cfg.Email == "" {
			return errors.New("--yes requires --name and --email (or previously saved values)")
		}
	} else {
		var err error
		cfg.Name, err = out.Ask(stdin, "Full name", cfg.Name)
		if err != nil {
			return err
		}
		cfg.Email, err = out.Ask(stdin, "Email (must match your GitHub account)", cfg.Email)
		if err != nil {
			return err
		}
	}
	if cfg.Name == "" || cfg.Email == "" {
		return errors.New("name and email are required")
	}
	out.Ok("Using %s <%s>", cfg.Name, cfg.Email)
	return nil
}

// preflight verifies the tools the wizard cannot run without and asks
// the installer for the ones it can supply.
func preflight(ctx context.Context, out *ui.Printer, stdout, stderr io.Writer) error {
	if _, err := gitutil.Version(ctx); err != nil {
		return errors.New("git not found on PATH; install git first (macOS: xcode-select --install)")
	}
	out.Ok("git installed")

	inst := installer.New(stdout, stderr)
	for _, tool := range []string{"gh", "gpg"} {
		if err := inst.EnsureTool(ctx, tool); err != nil {
			// Registration and signing degrade without these; the
			// wizard surfaces that later rather than aborting here.
			out.Warn("%s unavailable: %v", tool, err)
			continue
		}
		out.Ok("%s installed", tool)
	}
	return nil
}

// environment bundles the resolved host paths one run operates on.
type environment struct {
	sshDir   string
	prober   *envprobe.Prober
	gpgAgent string
	shellRC  string
}

func buildEnvironment(cfg config.Config) (*environment, error) {
	sshDir, err := cfg.ResolveSSHDir()
	if err != nil {
		return nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	gpgAgent := filepath.Join(home, ".gnupg", "gpg-agent.conf")
	shellRC := dotfiles.ShellRCPath(home, os.Getenv("SHELL"))
	return &environment{
		sshDir:   sshDir,
		gpgAgent: gpgAgent,
		shellRC:  shellRC,
		prober: &envprobe.Prober{
			SSHDir:        sshDir,
			SSHConfigPath: filepath.Join(sshDir, "config"),
			GPGAgentConf:  gpgAgent,
			ShellRCPath:   shellRC,
			Email:         cfg.Email,
		},
	}, nil
}

func buildWizard(cmd *cobra.Command, opts *setupOptions, cfg config.Config, env *environment, out *ui.Printer) *wizard.Wizard {
	gen := &keygen.Generator{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}

	w := &wizard.Wizard{
		Name:       cfg.Name,
		Email:      cfg.Email,
		SkipVerify: opts.skipVerify,
	}
	w.Probe = env.prober.Probe

	w.Generate = func(ctx context.Context, p identity.Purpose, st *envprobe.State) error {
		switch p {
		case identity.PurposeAuth:
			out.Info("Generating %s SSH key (a passphrase is recommended; Enter skips it)", identity.Algorithm)
			id, generated, err := gen.EnsureSSH(ctx, env.sshDir, cfg.Email, st.Auth)
			if err != nil {
				return err
			}
			if generated {
				out.Ok("SSH key generated: %s", id.Fingerprint)
				if err := keygen.LoadAgent(ctx, id.PrivatePath); err != nil {
					out.Warn("could not load key into ssh-agent: %v", err)
				}
			}
			return nil
		default:
			out.Info("Generating GPG signing key for %s", cfg.Email)
			id, generated, err := gen.EnsureGPG(ctx, cfg.Name, cfg.Email, st.Signing)
			if err != nil {
				return err
			}
			if generated {
				out.Ok("GPG key generated: %s", id.KeyID)
			}
			return nil
		}
	}

	w.Register = func(ctx context.Context, p identity.Purpose, st *envprobe.State) (*registrar.Record, error) {
		if !st.HasTool("gh") {
			return nil, fmt.Errorf("%w: gh CLI not installed", registrar.ErrUnreachable)
		}
		if !st.GHAuthenticated {
			out.Info("GitHub sign-in required; finish the authorization in your browser")
			if err := registrar.EnsureAuth(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
				return nil, err
			}
		}
		var rec *registrar.Record
		var err error
		if p == identity.PurposeAuth {
			rec, err = registrar.RegisterSSH(ctx, st.Auth, cfg.KeyTitle)
		} else {
			rec, err = registrar.RegisterGPG(ctx, st.Signing)
		}
		if err != nil {
			return nil, err
		}
		out.Ok("%s key %s on GitHub", p, rec.Outcome)
		return rec, nil
	}

	w.Configure = func(ctx context.Context, p identity.Purpose, st *envprobe.State) error {
		if p == identity.PurposeAuth {
			return configureAuth(env, st, out)
		}
		return configureSigning(ctx, cfg, env, st, out)
	}

	w.Verify = func(ctx context.Context, st *envprobe.State) verify.Result {
		out.Info("Verifying: ssh handshake and a detached test signature")
		return verify.Run(ctx, st)
	}
	return w
}

func configureAuth(env *environment, st *envprobe.State, out *ui.Printer) error {
	if st.Auth == nil {
		return errors.New("authentication identity disappeared before configuration")
	}
	changed, err := dotfiles.EnsureSSHConfig(env.prober.SSHConfigPath, st.Auth.PrivatePath, runtime.GOOS == "darwin")
	if err != nil {
		return err
	}
	if changed {
		out.Ok("ssh config: github.com host block written")
	} else {
		out.Ok("ssh config already set")
	}
	return nil
}

func configureSigning(ctx context.Context, cfg config.Config, env *environment, st *envprobe.State, out *ui.Printer) error {
	if st.Signing == nil {
		return errors.New("signing identity disappeared before configuration")
	}

	entries := append(
		gitcfg.IdentityEntries(cfg.Name, cfg.Email),
		gitcfg.SigningEntries(st.Signing.KeyID)...,
	)
	changed, err := gitcfg.ApplyAll(ctx, entries)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		out.Ok("git config updated: %v", changed)
	} else {
		out.Ok("git config already set")
	}

	if runtime.GOOS == "darwin" {
		if pinentry := findPinentry(); pinentry != "" {
			if _, err := dotfiles.EnsurePinentry(env.gpgAgent, pinentry); err != nil {
				return err
			}
			keygen.RestartGPGAgent(ctx)
		} else {
			out.Warn("pinentry-mac not found; gpg passphrase prompts may misbehave")
		}
	}

	if _, err := dotfiles.EnsureGPGTTY(env.shellRC); err != nil {
		return err
	}
	out.Ok("GPG_TTY exported in %s", filepath.Base(env.shellRC))
	return nil
}

func findPinentry() string {
	for _, path := range []string{
		"/opt/homebrew/bin/pinentry-mac",
		"/usr/local/bin/pinentry-mac",
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func printReport(ctx context.Context, out *ui.Printer, env *environment, report *wizard.Report, runErr error) {
	if report == nil {
		return
	}
	if report.AlreadyConfigured {
		out.Ok("Already configured; nothing to do")
	}

	st := env.prober.Probe(ctx)
	rows := make([]ui.Row, 0, 8)
	for _, run := range report.Runs {
		mark := out.MarkOK()
		if run.Final == wizard.StateBlocked {
			mark = out.MarkFail()
		} else if run.RegistrationSkipped {
			mark = out.MarkWarn()
		}
		detail := string(run.Final)
		if run.RegistrationSkipped {
			detail += " (registration skipped: github unreachable)"
		}
		rows = append(rows, ui.Row{Label: string(run.Purpose), Value: detail, Mark: mark})
	}
	if id := st.Auth; id != nil {
		rows = append(rows, ui.Row{Label: "SSH key", Value: fmt.Sprintf("%s (%s)", id.Fingerprint, timefmt.Age(id.CreatedAt, time.Now())), Mark: out.MarkOK()})
	}
	if id := st.Signing; id != nil {
		rows = append(rows, ui.Row{Label: "GPG key", Value: id.KeyID, Mark: out.MarkOK()})
	}
	if report.Verification != nil {
		rows = append(rows,
			verificationRow(out, "auth probe", report.Verification.Auth, report.Verification.AuthDetail),
			verificationRow(out, "signing probe", report.Verification.Signing, report.Verification.SigningDetail),
		)
	}
	out.Table(rows)

	for _, warning := range st.Warnings {
		out.Warn("%s", warning)
	}
	if runErr != nil {
		out.Fail("%v", runErr)
		out.Dim("Fix the step above and re-run; completed steps are kept.")
	}
}

func verificationRow(out *ui.Printer, label string, status verify.Status, detail string) ui.Row {
	mark := out.MarkOK()
	switch status {
	case verify.StatusFailed:
		mark = out.MarkFail()
	case verify.StatusSkipped:
		mark = out.MarkWarn()
	}
	return ui.Row{Label: label, Value: fmt.Sprintf("%s: %s", status, detail), Mark: mark}
}
