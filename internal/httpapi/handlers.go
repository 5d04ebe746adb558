package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/storyparty/story-party-backend/internal/hub"
	"github.com/storyparty/story-party-backend/internal/room"
	"github.com/storyparty/story-party-backend/internal/story"
)

// CreateRoom opens a room and returns its join code.
func CreateRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.CreateRoom{Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: rm.Code()})
	}
}

// ListStories serves the spoiler-safe catalog for non-realtime clients.
func ListStories(reg *story.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reg.List())
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
