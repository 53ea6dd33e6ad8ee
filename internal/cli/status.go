package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devforge/gitsetup/internal/config"
	"github.com/devforge/gitsetup/internal/envprobe"
	"github.com/devforge/gitsetup/internal/identity"
	"github.com/devforge/gitsetup/internal/timefmt"
	"github.com/devforge/gitsetup/internal/ui"
	"github.com/devforge/gitsetup/internal/wizard"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is provisioned without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := ui.New(cmd.OutOrStdout())

	cfgPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	env, err := buildEnvironment(cfg)
	if err != nil {
		return err
	}
	st := env.prober.Probe(ctx)

	w := &wizard.Wizard{Name: cfg.Name, Email: cfg.Email}
	now := time.Now()
	rows := make([]ui.Row, 0, 10)

	authState := w.Derive(identity.PurposeAuth, st)
	signState := w.Derive(identity.PurposeSigning, st)
	rows = append(rows,
		ui.Row{Label: "authentication", Value: string(authState), Mark: stateMark(out, authState)},
		ui.Row{Label: "signing", Value: string(signState), Mark: stateMark(out, signState)},
	)
	if id := st.Auth; id != nil {
		rows = append(rows, ui.Row{
			Label: "SSH key",
			Value: fmt.Sprintf("%s %s (%s)", id.Fingerprint, id.Comment, timefmt.Age(id.CreatedAt, now)),
			Mark:  out.MarkOK(),
		})
	}
	if id := st.Signing; id != nil {
		rows = append(rows, ui.Row{
			Label: "GPG key",
			Value: fmt.Sprintf("%s (%s)", id.KeyID, timefmt.Age(id.CreatedAt, now)),
			Mark:  out.MarkOK(),
		})
	}
	rows = append(rows,
		presenceRow(out, "key on github (auth)", st.RemoteAuth),
		presenceRow(out, "key on github (signing)", st.RemoteSigning),
	)
	for _, key := range envprobe.ManagedConfigKeys {
		value := st.GitConfig[key]
		mark := out.MarkOK()
		if value == "" {
			value = "(unset)"
			mark = out.MarkWarn()
		}
		rows = append(rows, ui.Row{Label: key, Value: value, Mark: mark})
	}
	out.Table(rows)

	for _, warning := range st.Warnings {
		out.Warn("%s", warning)
	}
	return nil
}

func presenceRow(out *ui.Printer, label string, p envprobe.Presence) ui.Row {
	mark := out.MarkOK()
	switch p {
	case envprobe.PresenceAbsent:
		mark = out.MarkWarn()
	case envprobe.PresenceUnknown:
		mark = out.MarkWarn()
	}
	return ui.Row{Label: label, Value: p.String(), Mark: mark}
}

func stateMark(out *ui.Printer, s wizard.StateName) string {
	switch s {
	case wizard.StateConfigured, wizard.StateVerified:
		return out.MarkOK()
	case wizard.StateBlocked:
		return out.MarkFail()
	default:
		return out.MarkWarn()
	}
}
