// Package chat exposes the session engine over HTTP.
package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/mindecho/backend/internal/model/chat"
	chatservice "github.com/mindecho/backend/internal/service/chat"
	"github.com/mindecho/backend/pkg/utils"
)

// Handler routes HTTP requests to the session manager.
type Handler struct {
	manager *chatservice.Manager
}

// New creates the chat handler.
func New(manager *chatservice.Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes wires the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/modes", h.handleListModes)
	r.Get("/chat/sessions", h.handleListSessions)
	r.Post("/chat/sessions", h.handleCreateSession)
	r.Get("/chat/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/chat/sessions/{sessionID}", h.handleDeleteSession)
	r.Get("/chat/sessions/{sessionID}/messages", h.handleGetMessages)
	r.Post("/chat/sessions/{sessionID}/messages", h.handleSendMessage)
	r.Put("/chat/sessions/{sessionID}/mode", h.handleUpdateMode)
	r.Post("/chat/sessions/{sessionID}/clear", h.handleClearMessages)
	r.Post("/chat/sessions/{sessionID}/tags", h.handleAddTag)
	r.Post("/chat/sessions/{sessionID}/history", h.handleLoadHistory)
}

type modeInfo struct {
	ID          model.TherapyMode `json:"id"`
	DisplayName string            `json:"displayName"`
	ShortName   string            `json:"shortName"`
	AccentColor string            `json:"accentColor"`
	Welcome     string            `json:"welcomeMessage"`
}

func (h *Handler) handleListModes(w http.ResponseWriter, _ *http.Request) {
	modes := make([]modeInfo, 0, len(model.Modes()))
	for _, mode := range model.Modes() {
		modes = append(modes, modeInfo{
			ID:          mode,
			DisplayName: mode.DisplayName(),
			ShortName:   mode.ShortName(),
			AccentColor: mode.AccentColor(),
			Welcome:     mode.WelcomeMessage(),
		})
	}
	utils.RespondJSON(w, http.StatusOK, modes)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.manager.Sessions())
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TherapyMode string `json:"therapyMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := model.ParseMode(payload.TherapyMode)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.manager.CreateSession(r.Context(), mode)
	if err != nil {
		// The session is still usable in memory; a later save reconciles.
		log.Printf("[chat] created session %s without durable save: %v", session.ID, err)
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, ok := h.manager.GetSession(sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, struct {
		model.Session
		State chatservice.SessionState `json:"state"`
	}{Session: session, State: h.manager.State(sessionID)})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	err := h.manager.DeleteSession(r.Context(), sessionID)
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatservice.ErrRemoteDelete):
		// Local deletion already happened; the remote copy is advisory.
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "deleted",
			"warning": "remote delete failed",
		})
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	// Unknown sessions yield an empty list on purpose.
	utils.RespondJSON(w, http.StatusOK, h.manager.GetMessages(sessionID))
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.manager.SendMessage(r.Context(), sessionID, payload.Content)
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatservice.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "a send is already in progress")
	case err != nil:
		// The user's message is preserved; the reply failed.
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	default:
		utils.RespondJSON(w, http.StatusOK, h.manager.GetMessages(sessionID))
	}
}

func (h *Handler) handleUpdateMode(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		TherapyMode string `json:"therapyMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := model.ParseMode(payload.TherapyMode)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.manager.UpdateSessionMode(r.Context(), sessionID, mode)
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatservice.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "a send is already in progress")
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		session, _ := h.manager.GetSession(sessionID)
		utils.RespondJSON(w, http.StatusOK, session)
	}
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	err := h.manager.ClearMessages(r.Context(), sessionID)
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		utils.RespondJSON(w, http.StatusOK, h.manager.GetMessages(sessionID))
	}
}

func (h *Handler) handleAddTag(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.manager.AddTag(r.Context(), sessionID, payload.Tag)
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		session, _ := h.manager.GetSession(sessionID)
		utils.RespondJSON(w, http.StatusOK, session)
	}
}

func (h *Handler) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	err := h.manager.LoadHistory(r.Context(), sessionID)
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatservice.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "a send is already in progress")
	case err != nil:
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	default:
		utils.RespondJSON(w, http.StatusOK, h.manager.GetMessages(sessionID))
	}
}
