// Package store persists chat sessions and transcripts as opaque JSON blobs.
package store

import (
	"context"
	"errors"

	"github.com/mindecho/backend/internal/model/chat"
)

// ErrPersistence marks failures of the underlying blob store. Callers decide
// whether to retry; the error is never raised for missing data.
var ErrPersistence = errors.New("persistence failure")

// Snapshot is the full durable state: the ordered session list plus the
// per-session transcripts. Save must persist both atomically so a crash can
// never leave a load observing one without the other.
type Snapshot struct {
	Sessions []chat.Session            `json:"sessions"`
	Messages map[string][]chat.Message `json:"messages"`
}

// EmptySnapshot returns a snapshot with allocated, empty collections.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Sessions: []chat.Session{},
		Messages: make(map[string][]chat.Message),
	}
}

// Clone deep-copies the snapshot so callers can mutate their working copy
// without aliasing the stored one.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Sessions: append([]chat.Session(nil), s.Sessions...),
		Messages: make(map[string][]chat.Message, len(s.Messages)),
	}
	for id, msgs := range s.Messages {
		out.Messages[id] = append([]chat.Message(nil), msgs...)
	}
	return out
}

// Store is the durable home of chat state.
type Store interface {
	// Load returns the last saved snapshot, or empty collections when
	// nothing has been saved yet. Missing data is not an error.
	Load(ctx context.Context) (Snapshot, error)
	// Save atomically replaces the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}
