package chat

import "time"

// Session is one persistent conversation thread.
//
// LastMessagePreview mirrors the content of the most recently appended
// message and MessageCount always equals the length of the session's
// transcript; both are derived fields maintained by the session manager,
// never mutated independently.
type Session struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	TherapyMode        TherapyMode `json:"therapyMode"`
	LastMessagePreview string      `json:"lastMessagePreview"`
	LastUpdated        time.Time   `json:"lastUpdated"`
	MessageCount       int         `json:"messageCount"`
	Tags               []string    `json:"tags"`
	CreatedAt          time.Time   `json:"createdAt"`
}
