package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/storyparty/story-party-backend/internal/hub"
	"github.com/storyparty/story-party-backend/internal/room"
	"github.com/storyparty/story-party-backend/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler attaches a websocket connection to a room.
//
// Query parameters: code (required), name, avatar, host=1 for the shared
// display, and session to reclaim a seat after an involuntary disconnect.
// Each frame in either direction is a single JSON message.
func Handler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		session := r.URL.Query().Get("session")
		if session == "" {
			session = uuid.NewString()
		}
		isHost := r.URL.Query().Get("host") == "1"

		outbox := make(chan room.Outbound, 8)
		joinErr := make(chan error, 1)
		ok := rm.Send(room.Join{
			SessionID: session,
			Name:      r.URL.Query().Get("name"),
			Avatar:    r.URL.Query().Get("avatar"),
			IsHost:    isHost,
			Outbox:    outbox,
			Reply:     joinErr,
		})
		if !ok {
			writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "room closed"})
			return
		}
		select {
		case err := <-joinErr:
			if err != nil {
				writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: err.Error()})
				return
			}
		case <-rm.Done():
			writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "room closed"})
			return
		}

		voluntary := true
		defer func() { rm.Send(room.Leave{SessionID: session, Voluntary: voluntary}) }()

		// The session handle is the client's reconnection token.
		writeMsg(r.Context(), conn, types.ServerMessage{Type: "welcome", Session: session})

		// Writer goroutine: drains the room's outbox until the room closes it.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for out := range outbox {
				writeMsg(writeCtx, conn, toServerMessage(out))
			}
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Anything else counts as involuntary; the room holds the
				// seat for the grace period.
				voluntary = false
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}

			intent, ok := toIntent(session, cm)
			if !ok {
				writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "unknown type"})
				continue
			}
			if !rm.Send(intent) {
				return
			}
		}
	}
}

func toIntent(session string, m types.ClientMessage) (room.Intent, bool) {
	switch m.Type {
	case "start_game":
		return room.Intent{SessionID: session, Kind: room.IntentStartGame, StoryID: m.StoryID}, true
	case "vote":
		return room.Intent{SessionID: session, Kind: room.IntentVote, ChoiceID: m.ChoiceID}, true
	case "advance":
		return room.Intent{SessionID: session, Kind: room.IntentAdvance}, true
	case "restart":
		return room.Intent{SessionID: session, Kind: room.IntentRestart}, true
	default:
		return room.Intent{}, false
	}
}

func toServerMessage(out room.Outbound) types.ServerMessage {
	switch {
	case out.Snapshot != nil:
		return types.ServerMessage{Type: "state", Version: out.Snapshot.Version, State: &out.Snapshot.State}
	case out.Stories != nil:
		return types.ServerMessage{Type: "story_list", Stories: out.Stories}
	default:
		return types.ServerMessage{Type: "error", Error: out.Error}
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
