// Package chat implements the session and messaging engine: session
// lifecycle, transcript append, derived-field maintenance, and reply
// generation sequencing.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindecho/backend/internal/client"
	model "github.com/mindecho/backend/internal/model/chat"
	"github.com/mindecho/backend/internal/service/reply"
	"github.com/mindecho/backend/internal/store"
)

var (
	// ErrSessionNotFound is returned for operations on unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrBusy rejects an operation while a send is in flight on the same
	// session. The caller retries once the pending send settles.
	ErrBusy = errors.New("send already in progress")
	// ErrRemoteDelete reports that the advisory remote deletion failed.
	// Local deletion proceeds regardless.
	ErrRemoteDelete = errors.New("remote delete failed")
)

// SessionState is the per-session send lifecycle.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateSending       SessionState = "sending"
	StateAwaitingReply SessionState = "awaitingReply"
)

// titleRunes is how many leading runes of the first user message become the
// session title.
const titleRunes = 20

// EventType labels notifications pushed to observers.
type EventType string

const (
	EventTypingStarted  EventType = "typingStarted"
	EventTypingStopped  EventType = "typingStopped"
	EventMessage        EventType = "message"
	EventSessionUpdated EventType = "sessionUpdated"
	EventSessionDeleted EventType = "sessionDeleted"
)

// Event is an out-of-band signal about session activity. Errors are never
// injected into the transcript; they surface here and via LastError.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"sessionId"`
	Message   *model.Message `json:"message,omitempty"`
	Session   *model.Session `json:"session,omitempty"`
}

// Notifier receives events. Implementations must not block; the manager
// calls it outside its lock but on the operation's goroutine.
type Notifier interface {
	Notify(Event)
}

// RemoteCleaner deletes the server-side counterpart of a session.
type RemoteCleaner interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

// HistorySource fetches a session transcript from the remote backend.
type HistorySource interface {
	GetHistory(ctx context.Context, sessionID string) (client.HistoryResponse, error)
}

// Config wires the manager's collaborators. Store and Strategy are
// required; everything else is optional.
type Config struct {
	Store    store.Store
	Strategy reply.Strategy
	Remote   RemoteCleaner
	History  HistorySource
	Notifier Notifier
	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// Manager owns the live working copy of all sessions and is the sole writer
// to the store. Operations on one session are serialized by the session
// state guard; the single mutex also keeps most-recently-active reordering
// and store writes atomic across sessions.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	strategy reply.Strategy
	remote   RemoteCleaner
	history  HistorySource
	notifier Notifier
	now      func() time.Time
	newID    func() string

	sessions []*model.Session // most recently active first
	messages map[string][]model.Message
	states   map[string]SessionState
	lastErr  map[string]error
}

// NewManager loads persisted state and returns a ready manager.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("chat: store is required")
	}
	if cfg.Strategy == nil {
		return nil, errors.New("chat: reply strategy is required")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	snap, err := cfg.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat: load sessions: %w", err)
	}

	m := &Manager{
		store:    cfg.Store,
		strategy: cfg.Strategy,
		remote:   cfg.Remote,
		history:  cfg.History,
		notifier: cfg.Notifier,
		now:      cfg.Now,
		newID:    cfg.NewID,
		messages: make(map[string][]model.Message, len(snap.Messages)),
		states:   make(map[string]SessionState, len(snap.Sessions)),
		lastErr:  make(map[string]error),
	}
	for i := range snap.Sessions {
		s := snap.Sessions[i]
		m.sessions = append(m.sessions, &s)
		m.states[s.ID] = StateIdle
		m.messages[s.ID] = append([]model.Message(nil), snap.Messages[s.ID]...)
	}
	return m, nil
}

// CreateSession allocates a session for the mode, seeds the mode's welcome
// message, and persists. On a persistence failure the in-memory session
// stays usable: the session is returned together with the wrapped error.
func (m *Manager) CreateSession(ctx context.Context, mode model.TherapyMode) (model.Session, error) {
	if !mode.Valid() {
		return model.Session{}, fmt.Errorf("chat: unknown therapy mode %q", mode)
	}

	m.mu.Lock()
	now := m.now()
	session := &model.Session{
		ID:          m.newID(),
		Title:       "新會話",
		TherapyMode: mode,
		LastUpdated: now,
		Tags:        []string{mode.ShortName()},
		CreatedAt:   now,
	}
	m.sessions = append([]*model.Session{session}, m.sessions...)
	m.messages[session.ID] = []model.Message{}
	m.states[session.ID] = StateIdle

	welcome := m.appendLocked(session, mode.WelcomeMessage(), model.AuthorAssistant, mode)
	saveErr := m.persistLocked(ctx)
	created := *session
	m.mu.Unlock()

	m.notify(Event{Type: EventMessage, SessionID: created.ID, Message: &welcome})
	m.notify(Event{Type: EventSessionUpdated, SessionID: created.ID, Session: &created})

	if saveErr != nil {
		log.Printf("[chat] create session %s: save failed: %v", created.ID, saveErr)
		return created, saveErr
	}
	return created, nil
}

// SendMessage appends the user's message, asks the reply strategy for the
// assistant's answer, then appends that too. Only one send may be in flight
// per session; a second call returns ErrBusy. A failed reply leaves the
// user's message in place, records the error, and returns the session to
// idle.
func (m *Manager) SendMessage(ctx context.Context, sessionID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		// Blank sends are ignored by design; nothing changes.
		return nil
	}

	m.mu.Lock()
	session := m.findLocked(sessionID)
	if session == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if m.states[sessionID] != StateIdle {
		m.mu.Unlock()
		return ErrBusy
	}
	m.states[sessionID] = StateSending

	userMsg := m.appendLocked(session, text, model.AuthorUser, session.TherapyMode)
	mode := session.TherapyMode
	history := append([]model.Message(nil), m.messages[sessionID]...)
	if err := m.persistLocked(ctx); err != nil {
		// The user's message stays in memory; a later save reconciles.
		log.Printf("[chat] send on session %s: save failed: %v", sessionID, err)
	}
	m.states[sessionID] = StateAwaitingReply
	m.mu.Unlock()

	m.notify(Event{Type: EventMessage, SessionID: sessionID, Message: &userMsg})
	m.notify(Event{Type: EventTypingStarted, SessionID: sessionID})

	replyText, replyErr := m.strategy.Reply(ctx, reply.Request{
		SessionID: sessionID,
		Text:      text,
		Mode:      mode,
		History:   history,
	})

	m.mu.Lock()
	m.states[sessionID] = StateIdle
	if replyErr != nil {
		m.lastErr[sessionID] = replyErr
		m.mu.Unlock()
		m.notify(Event{Type: EventTypingStopped, SessionID: sessionID})
		return fmt.Errorf("generate reply: %w", replyErr)
	}
	delete(m.lastErr, sessionID)

	var assistantMsg *model.Message
	// The session may have been deleted while the reply was in flight.
	if session := m.findLocked(sessionID); session != nil {
		msg := m.appendLocked(session, replyText, model.AuthorAssistant, mode)
		assistantMsg = &msg
		if err := m.persistLocked(ctx); err != nil {
			log.Printf("[chat] reply on session %s: save failed: %v", sessionID, err)
		}
	}
	m.mu.Unlock()

	m.notify(Event{Type: EventTypingStopped, SessionID: sessionID})
	if assistantMsg != nil {
		m.notify(Event{Type: EventMessage, SessionID: sessionID, Message: assistantMsg})
	}
	return nil
}

// UpdateSessionMode switches the session's therapy mode and greets the user
// with the new mode's welcome message. No-op when the mode is unchanged;
// rejected with ErrBusy while a send is in flight.
func (m *Manager) UpdateSessionMode(ctx context.Context, sessionID string, mode model.TherapyMode) error {
	if !mode.Valid() {
		return fmt.Errorf("chat: unknown therapy mode %q", mode)
	}

	m.mu.Lock()
	session := m.findLocked(sessionID)
	if session == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if m.states[sessionID] != StateIdle {
		m.mu.Unlock()
		return ErrBusy
	}
	if session.TherapyMode == mode {
		m.mu.Unlock()
		return nil
	}

	session.TherapyMode = mode
	welcome := m.appendLocked(session, mode.WelcomeMessage(), model.AuthorAssistant, mode)
	saveErr := m.persistLocked(ctx)
	updated := *session
	m.mu.Unlock()

	m.notify(Event{Type: EventMessage, SessionID: sessionID, Message: &welcome})
	m.notify(Event{Type: EventSessionUpdated, SessionID: sessionID, Session: &updated})
	return saveErr
}

// ClearMessages truncates the transcript and immediately re-seeds it with a
// fresh welcome message for the current mode, so the session invariants hold
// again before the call returns.
func (m *Manager) ClearMessages(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	session := m.findLocked(sessionID)
	if session == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}

	m.messages[sessionID] = []model.Message{}
	session.MessageCount = 0
	session.LastMessagePreview = ""
	session.LastUpdated = m.now()

	welcome := m.appendLocked(session, session.TherapyMode.WelcomeMessage(), model.AuthorAssistant, session.TherapyMode)
	saveErr := m.persistLocked(ctx)
	updated := *session
	m.mu.Unlock()

	m.notify(Event{Type: EventMessage, SessionID: sessionID, Message: &welcome})
	m.notify(Event{Type: EventSessionUpdated, SessionID: sessionID, Session: &updated})
	return saveErr
}

// DeleteSession removes the session and its transcript. When a remote
// counterpart exists, remote deletion is requested first; its failure is
// reported as ErrRemoteDelete but never blocks the local delete.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.findLocked(sessionID) == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	m.mu.Unlock()

	var remoteErr error
	if m.remote != nil {
		if err := m.remote.DeleteSession(ctx, sessionID); err != nil {
			remoteErr = fmt.Errorf("%w: %v", ErrRemoteDelete, err)
			log.Printf("[chat] delete session %s: %v", sessionID, remoteErr)
		}
	}

	m.mu.Lock()
	// A concurrent delete may have won while the remote call was in flight.
	if m.findLocked(sessionID) == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	for i, s := range m.sessions {
		if s.ID == sessionID {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	delete(m.messages, sessionID)
	delete(m.states, sessionID)
	delete(m.lastErr, sessionID)
	if err := m.persistLocked(ctx); err != nil {
		log.Printf("[chat] delete session %s: save failed: %v", sessionID, err)
	}
	m.mu.Unlock()

	m.notify(Event{Type: EventSessionDeleted, SessionID: sessionID})
	return remoteErr
}

// LoadHistory replaces the local transcript of one session with the remote
// one. The session is held busy for the whole fetch, so a concurrent send is
// rejected with ErrBusy rather than racing the replacement.
func (m *Manager) LoadHistory(ctx context.Context, sessionID string) error {
	if m.history == nil {
		return errors.New("chat: no remote history source configured")
	}

	m.mu.Lock()
	if m.findLocked(sessionID) == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if m.states[sessionID] != StateIdle {
		m.mu.Unlock()
		return ErrBusy
	}
	m.states[sessionID] = StateSending
	m.mu.Unlock()

	resp, err := m.history.GetHistory(ctx, sessionID)
	if err != nil {
		m.setIdle(sessionID)
		return fmt.Errorf("fetch history: %w", err)
	}

	msgs := make([]model.Message, 0, len(resp.Messages))
	for _, hm := range resp.Messages {
		author := model.AuthorAssistant
		if hm.IsFromUser {
			author = model.AuthorUser
		}
		msgs = append(msgs, model.Message{
			ID:        hm.ID,
			SessionID: sessionID,
			Content:   hm.Content,
			Author:    author,
			Mode:      hm.Mode,
			CreatedAt: parseWireTime(hm.Timestamp, m.now()),
		})
	}

	m.mu.Lock()
	session := m.findLocked(sessionID)
	if session == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	m.states[sessionID] = StateIdle
	m.messages[sessionID] = msgs
	session.Title = resp.SessionInfo.Title
	if resp.SessionInfo.Mode.Valid() {
		session.TherapyMode = resp.SessionInfo.Mode
	}
	session.LastUpdated = parseWireTime(resp.SessionInfo.LastUpdated, m.now())
	session.MessageCount = len(msgs)
	session.LastMessagePreview = ""
	if len(msgs) > 0 {
		session.LastMessagePreview = msgs[len(msgs)-1].Content
	}
	saveErr := m.persistLocked(ctx)
	updated := *session
	m.mu.Unlock()

	m.notify(Event{Type: EventSessionUpdated, SessionID: sessionID, Session: &updated})
	return saveErr
}

// AddTag appends a label to the session. Tags are append-only.
func (m *Manager) AddTag(ctx context.Context, sessionID, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}

	m.mu.Lock()
	session := m.findLocked(sessionID)
	if session == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	for _, existing := range session.Tags {
		if existing == tag {
			m.mu.Unlock()
			return nil
		}
	}
	session.Tags = append(session.Tags, tag)
	saveErr := m.persistLocked(ctx)
	m.mu.Unlock()
	return saveErr
}

// Sessions returns the session list, most recently active first.
func (m *Manager) Sessions() []model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

// GetSession returns one session's metadata.
func (m *Manager) GetSession(sessionID string) (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findLocked(sessionID); s != nil {
		return *s, true
	}
	return model.Session{}, false
}

// GetMessages returns the transcript. Unknown sessions yield an empty slice,
// not an error; clients render that as an empty thread.
func (m *Manager) GetMessages(sessionID string) []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message{}, m.messages[sessionID]...)
}

// State reports the send lifecycle state of a session.
func (m *Manager) State(sessionID string) SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[sessionID]; ok {
		return state
	}
	return StateIdle
}

// LastError returns the most recent reply-generation failure for the
// session, or nil. It is cleared by the next successful send.
func (m *Manager) LastError(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr[sessionID]
}

// setIdle returns a session to idle unless it was deleted meanwhile.
func (m *Manager) setIdle(sessionID string) {
	m.mu.Lock()
	if _, ok := m.states[sessionID]; ok {
		m.states[sessionID] = StateIdle
	}
	m.mu.Unlock()
}

// findLocked returns the live session pointer, or nil.
func (m *Manager) findLocked(sessionID string) *model.Session {
	for _, s := range m.sessions {
		if s.ID == sessionID {
			return s
		}
	}
	return nil
}

// appendLocked creates a message, maintains every derived session field,
// and moves the session to the front of the list.
func (m *Manager) appendLocked(session *model.Session, content string, author model.Author, mode model.TherapyMode) model.Message {
	ts := m.now()
	transcript := m.messages[session.ID]
	// Append order is authoritative; timestamps never run backwards even at
	// coarse clock resolution.
	if n := len(transcript); n > 0 && ts.Before(transcript[n-1].CreatedAt) {
		ts = transcript[n-1].CreatedAt
	}

	msg := model.Message{
		ID:        m.newID(),
		SessionID: session.ID,
		Content:   content,
		Author:    author,
		Mode:      mode,
		CreatedAt: ts,
	}

	if author == model.AuthorUser && userCount(transcript) == 0 {
		session.Title = deriveTitle(content)
	}

	transcript = append(transcript, msg)
	m.messages[session.ID] = transcript
	session.LastMessagePreview = content
	session.LastUpdated = ts
	session.MessageCount = len(transcript)
	m.moveToFrontLocked(session.ID)
	return msg
}

func (m *Manager) moveToFrontLocked(sessionID string) {
	for i, s := range m.sessions {
		if s.ID == sessionID {
			if i > 0 {
				m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
				m.sessions = append([]*model.Session{s}, m.sessions...)
			}
			return
		}
	}
}

// persistLocked writes the whole working copy through the store. Store
// writes are serialized by the manager mutex, preventing lost updates from
// interleaved saves.
func (m *Manager) persistLocked(ctx context.Context) error {
	snap := store.Snapshot{
		Sessions: make([]model.Session, 0, len(m.sessions)),
		Messages: make(map[string][]model.Message, len(m.messages)),
	}
	for _, s := range m.sessions {
		snap.Sessions = append(snap.Sessions, *s)
	}
	for id, msgs := range m.messages {
		snap.Messages[id] = append([]model.Message(nil), msgs...)
	}
	return m.store.Save(ctx, snap)
}

func (m *Manager) notify(event Event) {
	if m.notifier != nil {
		m.notifier.Notify(event)
	}
}

// deriveTitle builds the auto title from the first user message: the first
// twenty runes, with an ellipsis when truncated.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleRunes {
		return content
	}
	return string(runes[:titleRunes]) + "…"
}

func userCount(msgs []model.Message) int {
	count := 0
	for _, msg := range msgs {
		if msg.Author == model.AuthorUser {
			count++
		}
	}
	return count
}

func parseWireTime(raw string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return fallback
}
