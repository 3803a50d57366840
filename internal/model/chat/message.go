package chat

import "time"

// Author identifies which side of the conversation produced a message.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Message is one immutable turn in a session transcript.
// Mode captures the therapy mode that was active when the message was
// appended; later mode switches never rewrite it.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Content   string      `json:"content"`
	Author    Author      `json:"author"`
	Mode      TherapyMode `json:"mode"`
	CreatedAt time.Time   `json:"createdAt"`
}
