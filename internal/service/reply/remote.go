package reply

import (
	"context"

	"github.com/mindecho/backend/internal/client"
)

// Sender is the slice of the remote chat API the strategy needs.
type Sender interface {
	SendMessage(ctx context.Context, req client.SendMessageRequest) (client.SendMessageResponse, error)
}

// RemoteStrategy asks the server-side assistant for the reply. Errors from
// the transport (unauthorized, server, network) propagate unmodified; the
// session manager decides what to do with them.
type RemoteStrategy struct {
	api    Sender
	userID string
}

// NewRemoteStrategy wraps the chat API client for the given user.
func NewRemoteStrategy(api Sender, userID string) *RemoteStrategy {
	return &RemoteStrategy{api: api, userID: userID}
}

// Reply forwards the literal user text and active mode to the server.
func (s *RemoteStrategy) Reply(ctx context.Context, req Request) (string, error) {
	resp, err := s.api.SendMessage(ctx, client.SendMessageRequest{
		Message:     req.Text,
		UserID:      s.userID,
		SessionID:   req.SessionID,
		TherapyMode: req.Mode,
	})
	if err != nil {
		return "", err
	}
	return resp.Reply, nil
}
