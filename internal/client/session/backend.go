package session

import (
	"context"

	"hotelchat/internal/model"
)

// Record is the persisted form of a session. A record with an empty token is a tombstone left
// by a logout; its revision orders it against logins of other processes.
type Record struct {
	Token    string         `json:"token"`
	Identity model.Identity `json:"user"`
	Revision int64          `json:"revision"`

	// Origin identifies the Store that wrote the record.
	Origin string `json:"origin"`
}

func (r Record) session() Session {
	return Session{
		Token:    r.Token,
		Identity: r.Identity,
		Resolved: r.Identity.Role.Valid(),
		Revision: r.Revision,
	}
}

// Backend persists the session and reports changes written by other processes.
type Backend interface {
	// Load returns the persisted session. ok is false when nothing is persisted.
	Load(ctx context.Context) (rec Record, ok bool, err error)

	// Save persists rec.
	Save(ctx context.Context, rec Record) error

	// Clear removes the persisted session, leaving tombstone for watchers.
	Clear(ctx context.Context, tombstone Record) error

	// Watch streams records written by any process until ctx ends. The channel is closed then.
	Watch(ctx context.Context) (<-chan Record, error)

	Close() error
}
