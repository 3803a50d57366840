// Package reply provides the pluggable algorithms that produce the
// assistant's next message. Which implementation runs is an explicit
// configuration choice of the caller, never inferred from token presence.
package reply

import (
	"context"

	"github.com/mindecho/backend/internal/model/chat"
)

// Request carries everything a strategy may use to produce a reply.
// History is a read-only view of the transcript up to and including the
// user message being answered; keyword strategies ignore it.
type Request struct {
	SessionID string
	Text      string
	Mode      chat.TherapyMode
	History   []chat.Message
}

// Strategy maps a user message and therapy mode to the assistant reply.
type Strategy interface {
	Reply(ctx context.Context, req Request) (string, error)
}
