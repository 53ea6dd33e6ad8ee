// Package gitcfg applies the wizard's managed git configuration.
// Writes are idempotent by comparison: the current value is read first
// and equal values are left untouched, so user-maintained settings in
// the same config file are never churned.
package gitcfg

import (
	"context"
	"fmt"

	"github.com/devforge/gitsetup/internal/gitutil"
	"github.com/rs/zerolog/log"
)

// Entry is a single dotted-key assignment in git's global config.
type Entry struct {
	Key   string
	Value string
}

// WriteError reports exactly which key could not be written, as fatal
// configuration failures must name the offending key.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write git config %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IdentityEntries are the config keys establishing who commits are by.
func IdentityEntries(name, email string) []Entry {
	return []Entry{
		{Key: "user.name", Value: name},
		{Key: "user.email", Value: email},
	}
}

// SigningEntries are the config keys that make git sign every commit
// with the given GPG key.
func SigningEntries(keyID string) []Entry {
	return []Entry{
		{Key: "user.signingkey", Value: keyID},
		{Key: "gpg.program", Value: "gpg"},
		{Key: "commit.gpgsign", Value: "true"},
	}
}

// Apply upserts one entry. It reports whether a write happened.
func Apply(ctx context.Context, e Entry) (bool, error) {
	current, err := gitutil.ConfigGet(ctx, e.Key)
	if err != nil {
		return false, &WriteError{Key: e.Key, Err: err}
	}
	if current == e.Value {
		return false, nil
	}
	if err := gitutil.ConfigSet(ctx, e.Key, e.Value); err != nil {
		return false, &WriteError{Key: e.Key, Err: err}
	}
	log.Debug().Str("key", e.Key).Msg("git config updated")
	return true, nil
}

// ApplyAll upserts entries in order and returns the keys that changed.
// The first failure aborts; earlier writes are each individually
// complete, so no torn state is possible.
func ApplyAll(ctx context.Context, entries []Entry) ([]string, error) {
	var changed []string
	for _, e := range entries {
		did, err := Apply(ctx, e)
		if err != nil {
			return changed, err
		}
		if did {
			changed = append(changed, e.Key)
		}
	}
	return changed, nil
}

// Satisfied reports whether every entry already holds its target value,
// using a previously probed snapshot of the config.
func Satisfied(current map[string]string, entries []Entry) bool {
	for _, e := range entries {
		if current[e.Key] != e.Value {
			return false
		}
	}
	return true
}
