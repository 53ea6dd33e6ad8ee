// Package wizard orchestrates credential provisioning. It owns the
// per-capability state machine and the idempotency discipline: state
// is always re-derived from a fresh environment probe, never replayed
// from memory, so an interrupted run resumes from what is actually on
// disk and a repeated run changes nothing.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/devforge/gitsetup/internal/envprobe"
	"github.com/devforge/gitsetup/internal/identity"
	"github.com/devforge/gitsetup/internal/registrar"
	"github.com/devforge/gitsetup/internal/verify"
)

// StateName is a capability's position in the provisioning pipeline.
type StateName string

const (
	StateAbsent     StateName = "absent"
	StateGenerated  StateName = "generated"
	StateRegistered StateName = "registered"
	StateConfigured StateName = "configured"
	StateVerified   StateName = "verified"
	StateBlocked    StateName = "blocked"
)

// Purposes lists the capabilities in execution order. Authentication
// runs first: registering the signing key over ssh benefits from a
// working ssh setup.
var Purposes = []identity.Purpose{identity.PurposeAuth, identity.PurposeSigning}

// Steps are the pluggable pipeline stages. Each receives the freshest
// probe snapshot; none may rely on snapshots from earlier stages.
type Steps struct {
	Probe     func(ctx context.Context) *envprobe.State
	Generate  func(ctx context.Context, p identity.Purpose, st *envprobe.State) error
	Register  func(ctx context.Context, p identity.Purpose, st *envprobe.State) (*registrar.Record, error)
	Configure func(ctx context.Context, p identity.Purpose, st *envprobe.State) error
	Verify    func(ctx context.Context, st *envprobe.State) verify.Result
}

// Wizard drives both capabilities strictly sequentially.
type Wizard struct {
	Steps

	// Name and Email are the target identity values; when set, derive
	// treats mismatched git config as unconfigured.
	Name  string
	Email string

	SkipVerify bool
}

// CapabilityRun records one capability's traversal.
type CapabilityRun struct {
	Purpose             identity.Purpose
	Initial             StateName
	Final               StateName
	Registration        *registrar.Record
	RegistrationSkipped bool // remote unreachable; local config proceeded
	Err                 error
}

// Report is the outcome of one wizard run.
type Report struct {
	Runs              []CapabilityRun
	Verification      *verify.Result
	AlreadyConfigured bool
}

// ExitCode maps the report onto the process exit contract: 0 fully
// configured and verified, 1 configured with verification degraded,
// 2 fatal.
func (r *Report) ExitCode() int {
	for _, run := range r.Runs {
		if run.Final == StateBlocked {
			return 2
		}
	}
	if r.Verification != nil && r.Verification.AllPassed() {
		return 0
	}
	return 1
}

// Derive computes a capability's state purely from an observed
// environment snapshot.
func (w *Wizard) Derive(p identity.Purpose, st *envprobe.State) StateName {
	id := st.Identity(p)
	if id == nil {
		return StateAbsent
	}
	if st.RemotePresence(p) != envprobe.PresencePresent {
		return StateGenerated
	}
	if !w.configured(p, st) {
		return StateRegistered
	}
	return StateConfigured
}

func (w *Wizard) configured(p identity.Purpose, st *envprobe.State) bool {
	if p == identity.PurposeAuth {
		return st.SSHConfigured
	}
	cfg := st.GitConfig
	if st.Signing == nil || cfg["user.signingkey"] != st.Signing.KeyID {
		return false
	}
	if cfg["commit.gpgsign"] != "true" {
		return false
	}
	if w.Name != "" && cfg["user.name"] != w.Name {
		return false
	}
	if w.Email != "" && cfg["user.email"] != w.Email {
		return false
	}
	return cfg["user.name"] != "" && cfg["user.email"] != ""
}

// Run executes the full wizard: each capability's pipeline to
// Configured, then one verification pass over both.
func (w *Wizard) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	st := w.Probe(ctx)
	report.AlreadyConfigured = true
	for _, p := range Purposes {
		if w.Derive(p, st) != StateConfigured {
			report.AlreadyConfigured = false
			break
		}
	}

	for _, p := range Purposes {
		run := w.runCapability(ctx, p)
		report.Runs = append(report.Runs, run)
		if run.Err != nil {
			return report, run.Err
		}
	}

	if !w.SkipVerify {
		st = w.Probe(ctx)
		result := w.Verify(ctx, st)
		report.Verification = &result
		for i := range report.Runs {
			if report.Runs[i].Final != StateConfigured {
				continue
			}
			status := result.Auth
			if report.Runs[i].Purpose == identity.PurposeSigning {
				status = result.Signing
			}
			if status == verify.StatusPassed {
				report.Runs[i].Final = StateVerified
			}
		}
	}

	return report, nil
}

// runCapability walks one capability forward. Every transition starts
// from a fresh probe so partial prior runs resume at their true state.
func (w *Wizard) runCapability(ctx context.Context, p identity.Purpose) CapabilityRun {
	run := CapabilityRun{Purpose: p}

	st := w.Probe(ctx)
	state := w.Derive(p, st)
	run.Initial = state
	log.Debug().Str("capability", string(p)).Str("state", string(state)).Msg("capability pipeline start")

	if state == StateAbsent {
		if err := ctx.Err(); err != nil {
			return blocked(run, state, err)
		}
		if err := w.Generate(ctx, p, st); err != nil {
			return blocked(run, StateAbsent, err)
		}
		st = w.Probe(ctx)
		if st.Identity(p) == nil {
			return blocked(run, StateAbsent, fmt.Errorf("%s identity missing after generation", p))
		}
		state = StateGenerated
	}

	if state == StateGenerated {
		switch st.RemotePresence(p) {
		case envprobe.PresencePresent:
			// A previous partial run already registered this key.
		default:
			// Absent: an orphaned local key is registered, never
			// regenerated. Unknown: register optimistically and let
			// conflict classification absorb duplicates.
			rec, err := w.Register(ctx, p, st)
			switch {
			case err == nil:
				run.Registration = rec
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				// Cancelled mid-wait: on-disk state is exactly the
				// last completed step, so the capability stays
				// Generated.
				run.Final = StateGenerated
				run.Err = context.Canceled
				return run
			case errors.Is(err, registrar.ErrUnreachable):
				run.RegistrationSkipped = true
			default:
				return blocked(run, StateGenerated, err)
			}
		}
		state = StateRegistered
	}

	if state == StateRegistered {
		st = w.Probe(ctx)
		if err := ctx.Err(); err != nil {
			run.Final = state
			run.Err = context.Canceled
			return run
		}
		if err := w.Configure(ctx, p, st); err != nil {
			return blocked(run, StateRegistered, err)
		}
		state = StateConfigured
	}

	run.Final = state
	return run
}

func blocked(run CapabilityRun, from StateName, err error) CapabilityRun {
	run.Final = StateBlocked
	run.Err = fmt.Errorf("%s pipeline (at %s): %w", run.Purpose, from, err)
	if errors.Is(err, context.Canceled) {
		run.Final = from
		run.Err = context.Canceled
	}
	return run
}
