package db

import (
	"context"
	"fmt"

	"github.com/callummance/marshal/guildmodels"
)

//Backend persists guild policies. SavePolicy must replace the stored record atomically: a crash part way through
//a save leaves either the old record or the new one, never a mix.
type Backend interface {
	LoadPolicies(ctx context.Context) ([]*guildmodels.GuildPolicy, error)
	SavePolicy(ctx context.Context, policy *guildmodels.GuildPolicy) error
	Close() error
}

//PersistenceError is returned when a policy could not be written to or read from the backend.
//It is never swallowed: callers must report it to whoever requested the change.
type PersistenceError struct {
	GuildID string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.GuildID == "" {
		return fmt.Sprintf("failed to %v policies: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %v policy for guild %v: %v", e.Op, e.GuildID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
