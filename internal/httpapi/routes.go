package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storyparty/story-party-backend/internal/hub"
	"github.com/storyparty/story-party-backend/internal/story"
	"github.com/storyparty/story-party-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, reg *story.Registry) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/rooms", CreateRoom(h))
	r.Get("/api/stories", ListStories(reg))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h))
	return r
}
