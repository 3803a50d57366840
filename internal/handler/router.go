package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mindecho/backend/internal/handler/chat"
	"github.com/mindecho/backend/internal/handler/events"
	middlewarePkg "github.com/mindecho/backend/internal/middleware"
	chatservice "github.com/mindecho/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to the session engine. The hub must be the
// same one registered as the manager's notifier, otherwise the event
// streams stay silent.
func NewRouter(manager *chatservice.Manager, hub *events.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(manager)
	eventsHandler := events.New(hub)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		eventsHandler.RegisterRoutes(api)
	})

	return r
}
