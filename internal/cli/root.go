package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// Execute runs the CLI and returns the process exit code: 0 fully
// configured and verified, 1 configured with degraded verification,
// 2 fatal, 130 cancelled.
func Execute(ctx context.Context) int {
	err := newRootCommand().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "\nCancelled. Re-run whenever; completed steps are kept.")
		return 130
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 2
}

func newRootCommand() *cobra.Command {
	var debug bool
	opts := defaultSetupOptions()
	cmd := &cobra.Command{
		Use:           "gitsetup",
		Short:         "Provision SSH and GPG credentials for GitHub",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.Disabled)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, opts)
		},
	}
	addSetupFlags(cmd, opts)
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "log diagnostic detail to stderr")

	cmd.AddCommand(
		newSetupCommand(),
		newStatusCommand(),
		newDoctorCommand(),
		newVersionCommand(),
	)
	return cmd
}
