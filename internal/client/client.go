// Package client implements the HTTP contract of the remote chat backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mindecho/backend/internal/model/chat"
)

// DefaultTimeout bounds every remote call unless configured otherwise.
const DefaultTimeout = 30 * time.Second

// ErrUnauthorized is returned for 401 responses; the caller should obtain a
// fresh token before retrying.
var ErrUnauthorized = errors.New("unauthorized")

// ServerError reports a non-2xx, non-401 response.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d)", e.Code)
}

// NetworkError reports a transport-level failure, including timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TokenProvider supplies the current bearer token, or false when the user is
// not authenticated. Token management itself lives outside this package.
type TokenProvider func() (string, bool)

// SendMessageRequest is the payload of POST /chat/send.
type SendMessageRequest struct {
	Message     string           `json:"message"`
	UserID      string           `json:"userId"`
	SessionID   string           `json:"sessionId"`
	TherapyMode chat.TherapyMode `json:"therapyMode"`
}

// SendMessageResponse carries the assistant reply.
type SendMessageResponse struct {
	Reply     string `json:"reply"`
	MessageID string `json:"messageId"`
	Timestamp string `json:"timestamp"`
}

// HistoryMessage is one transcript entry as the server represents it.
// Timestamps are ISO-8601 strings at the wire boundary.
type HistoryMessage struct {
	ID         string           `json:"id"`
	Content    string           `json:"content"`
	IsFromUser bool             `json:"isFromUser"`
	Timestamp  string           `json:"timestamp"`
	Mode       chat.TherapyMode `json:"mode"`
}

// SessionInfo is the server-side session metadata.
type SessionInfo struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Mode        chat.TherapyMode `json:"mode"`
	LastUpdated string           `json:"lastUpdated"`
}

// HistoryResponse is the payload of GET /chat/history/{sessionId}.
type HistoryResponse struct {
	Messages    []HistoryMessage `json:"messages"`
	SessionInfo SessionInfo      `json:"sessionInfo"`
}

// Client talks to the remote chat API.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenProvider
}

// New builds a client for the given base URL. A zero timeout falls back to
// DefaultTimeout.
func New(baseURL string, timeout time.Duration, token TokenProvider) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		token:   token,
	}
}

// SendMessage submits a user message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	var resp SendMessageResponse
	err := c.do(ctx, http.MethodPost, "/chat/send", req, &resp)
	return resp, err
}

// GetHistory fetches the full transcript and session metadata.
func (c *Client) GetHistory(ctx context.Context, sessionID string) (HistoryResponse, error) {
	var resp HistoryResponse
	err := c.do(ctx, http.MethodGet, "/chat/history/"+sessionID, nil, &resp)
	return resp, err
}

// CreateSession provisions a remote session for the given mode.
func (c *Client) CreateSession(ctx context.Context, mode chat.TherapyMode) (SessionInfo, error) {
	var resp SessionInfo
	err := c.do(ctx, http.MethodPost, "/chat/session/new", map[string]chat.TherapyMode{"therapyMode": mode}, &resp)
	return resp, err
}

// DeleteSession removes the remote counterpart of a session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/chat/session/"+sessionID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &NetworkError{Op: "encode request", Err: err}
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return &NetworkError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := c.token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ServerError{Code: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: "decode response", Err: err}
	}
	return nil
}
