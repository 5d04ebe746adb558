package room

import (
	"github.com/storyparty/story-party-backend/internal/story"
	"github.com/storyparty/story-party-backend/internal/tally"
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseIntro      Phase = "intro"
	PhaseNarrative  Phase = "narrative"
	PhaseVoting     Phase = "voting"
	PhaseVoteResult Phase = "vote_result"
	PhaseEnding     Phase = "ending"
)

type Player struct {
	SessionID   string `json:"sessionId"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	IsVIP       bool   `json:"isVIP"`
	IsConnected bool   `json:"isConnected"`
	HasVoted    bool   `json:"hasVoted"`
}

// State is the full room snapshot broadcast to every connected client after
// each mutation. Clients are reactive renderers of this struct; nothing here
// is client-computed. Ballots are deliberately absent: votes stay secret
// until the reveal.
type State struct {
	RoomCode   string `json:"roomCode"`
	Phase      Phase  `json:"phase"`
	StoryID    string `json:"storyId"`
	StoryTitle string `json:"storyTitle"`
	StoryGenre string `json:"storyGenre"`

	Players     map[string]Player `json:"players"`
	PlayerCount int               `json:"playerCount"`

	CurrentNodeID    string `json:"currentNodeId"`
	CurrentNarration string `json:"currentNarration"`
	CurrentTitle     string `json:"currentTitle"`
	CurrentImageURL  string `json:"currentImageUrl"`

	Choices         []story.Choice `json:"choices"`
	VoteTimer       int            `json:"voteTimer"`
	VoteResults     []tally.Result `json:"voteResults"`
	WinningChoiceID string         `json:"winningChoiceId"`

	EndingType  string `json:"endingType"`
	EndingTitle string `json:"endingTitle"`

	DecisionsMade  int      `json:"decisionsMade"`
	TotalDecisions int      `json:"totalDecisions"`
	PathHistory    []string `json:"pathHistory"`
}

// Snapshot is one versioned broadcast of the room state.
type Snapshot struct {
	Version int
	State   State
}

// Outbound is a frame addressed to a single client connection: either a state
// snapshot, a one-time story catalog, or a targeted error.
type Outbound struct {
	Snapshot *Snapshot
	Stories  []story.Summary
	Error    string
}
