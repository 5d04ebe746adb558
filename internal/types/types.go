package types

import (
	"github.com/storyparty/story-party-backend/internal/room"
	"github.com/storyparty/story-party-backend/internal/story"
)

type ClientMessage struct {
	Type     string `json:"type"` // "start_game" | "vote" | "advance" | "restart"
	StoryID  string `json:"story_id,omitempty"`
	ChoiceID string `json:"choice_id,omitempty"`
}

type ServerMessage struct {
	Type    string          `json:"type"` // "welcome" | "state" | "story_list" | "error"
	Session string          `json:"session,omitempty"`
	Version int             `json:"version,omitempty"`
	State   *room.State     `json:"state,omitempty"`
	Stories []story.Summary `json:"stories,omitempty"`
	Error   string          `json:"error,omitempty"`
}
