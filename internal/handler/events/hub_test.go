package events

import (
	"testing"
	"time"

	chatservice "github.com/mindecho/backend/internal/service/chat"
)

func TestHubDeliversToSessionSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("sess-1")
	defer cancel()

	otherCh, otherCancel := hub.Subscribe("sess-2")
	defer otherCancel()

	hub.Notify(chatservice.Event{Type: chatservice.EventTypingStarted, SessionID: "sess-1"})

	select {
	case event := <-ch:
		if event.Type != chatservice.EventTypingStarted {
			t.Fatalf("event = %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}

	select {
	case event := <-otherCh:
		t.Fatalf("other session received foreign event: %+v", event)
	default:
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("sess-1")
	defer cancel()

	// Publishing more than the buffer must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Notify(chatservice.Event{Type: chatservice.EventMessage, SessionID: "sess-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow subscriber")
	}
}

func TestHubCancelRemovesSubscription(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("sess-1")
	cancel()

	hub.Notify(chatservice.Event{Type: chatservice.EventMessage, SessionID: "sess-1"})
	select {
	case event := <-ch:
		t.Fatalf("cancelled subscriber received event: %+v", event)
	default:
	}
}
