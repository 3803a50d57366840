package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	model "github.com/mindecho/backend/internal/model/chat"
)

func staticToken(token string) TokenProvider {
	return func() (string, bool) { return token, token != "" }
}

func TestSendMessageContract(t *testing.T) {
	var gotAuth string
	var gotBody SendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/send" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(SendMessageResponse{
			Reply:     "伺服器回覆",
			MessageID: "msg-1",
			Timestamp: "2025-06-01T12:00:00Z",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, staticToken("tok-123"))
	resp, err := c.SendMessage(context.Background(), SendMessageRequest{
		Message:     "你好",
		UserID:      "user-1",
		SessionID:   "sess-1",
		TherapyMode: model.ModeMBT,
	})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if resp.Reply != "伺服器回覆" || resp.MessageID != "msg-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody.Message != "你好" || gotBody.TherapyMode != model.ModeMBT {
		t.Fatalf("payload = %+v", gotBody)
	}
}

func TestGetHistoryContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/history/sess-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(HistoryResponse{
			Messages: []HistoryMessage{
				{ID: "m1", Content: "你好", IsFromUser: true, Timestamp: "2025-06-01T12:00:00Z", Mode: model.ModeChat},
			},
			SessionInfo: SessionInfo{ID: "sess-1", Title: "新會話", Mode: model.ModeChat, LastUpdated: "2025-06-01T12:00:00Z"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, staticToken("tok"))
	resp, err := c.GetHistory(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetHistory err: %v", err)
	}
	if len(resp.Messages) != 1 || !resp.Messages[0].IsFromUser {
		t.Fatalf("unexpected history: %+v", resp)
	}
	if resp.SessionInfo.Mode != model.ModeChat {
		t.Fatalf("session info = %+v", resp.SessionInfo)
	}
}

func TestCreateAndDeleteSessionContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/chat/session/new":
			var body map[string]model.TherapyMode
			json.NewDecoder(r.Body).Decode(&body)
			if body["therapyMode"] != model.ModeCBT {
				t.Fatalf("create payload = %v", body)
			}
			json.NewEncoder(w).Encode(SessionInfo{ID: "remote-1", Title: "新會話", Mode: model.ModeCBT})
		case r.Method == http.MethodDelete && r.URL.Path == "/chat/session/remote-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, staticToken("tok"))
	info, err := c.CreateSession(context.Background(), model.ModeCBT)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if info.ID != "remote-1" {
		t.Fatalf("session info = %+v", info)
	}
	if err := c.DeleteSession(context.Background(), "remote-1"); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, staticToken("expired"))
	_, err := c.SendMessage(context.Background(), SendMessageRequest{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestServerErrorCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, staticToken("tok"))
	_, err := c.GetHistory(context.Background(), "sess-1")

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if serverErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", serverErr.Code)
	}
}

func TestNetworkError(t *testing.T) {
	// A closed server produces a transport failure.
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	c := New(srv.URL, time.Second, staticToken("tok"))
	_, err := c.SendMessage(context.Background(), SendMessageRequest{})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
}

func TestNoTokenOmitsHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(SendMessageResponse{})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, staticToken(""))
	if _, err := c.SendMessage(context.Background(), SendMessageRequest{}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("Authorization sent without a token: %q", gotAuth)
	}
}
