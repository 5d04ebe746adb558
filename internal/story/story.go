package story

import (
	"errors"
	"fmt"
)

var ErrNodeNotFound = errors.New("story node not found")

const (
	NodeNarrative = "narrative"
	NodeChoice    = "choice"
	NodeEnding    = "ending"
)

type Choice struct {
	ID         string `json:"id"`
	Emoji      string `json:"emoji"`
	Label      string `json:"label"`
	NextNodeID string `json:"nextNodeId"`
}

type Node struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"` // narrative | choice | ending
	Title       string   `json:"title,omitempty"`
	Narration   string   `json:"narration"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Choices     []Choice `json:"choices,omitempty"`
	EndingType  string   `json:"endingType,omitempty"` // good | bad | neutral | secret
	EndingTitle string   `json:"endingTitle,omitempty"`
}

func (n *Node) IsEnding() bool { return n.Type == NodeEnding }

func (n *Node) HasChoices() bool { return len(n.Choices) > 0 }

// Graph is an immutable branching story. Cycles are allowed; the only
// structural requirement is that every referenced node id resolves.
type Graph struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Genre            string           `json:"genre"`
	Description      string           `json:"description"`
	EstimatedMinutes int              `json:"estimatedMinutes"`
	MinPlayers       int              `json:"minPlayers"`
	MaxPlayers       int              `json:"maxPlayers"`
	StartNodeID      string           `json:"startNodeId"`
	Nodes            map[string]*Node `json:"nodes"`
}

func (g *Graph) Node(id string) (*Node, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return n, nil
}

// Validate checks that the start node exists and that every choice points at
// a node inside the graph. A graph that fails validation is rejected at load
// time rather than surfacing as a dead end mid-game.
func (g *Graph) Validate() error {
	if g.ID == "" {
		return errors.New("story has no id")
	}
	if _, ok := g.Nodes[g.StartNodeID]; !ok {
		return fmt.Errorf("start node %q does not exist", g.StartNodeID)
	}
	for id, n := range g.Nodes {
		for _, c := range n.Choices {
			if _, ok := g.Nodes[c.NextNodeID]; !ok {
				return fmt.Errorf("node %q choice %q points at missing node %q", id, c.ID, c.NextNodeID)
			}
		}
	}
	return nil
}

// CountDecisionNodes returns the number of nodes with at least one choice,
// i.e. the total number of votes a full playthrough could hold.
func CountDecisionNodes(g *Graph) int {
	count := 0
	for _, n := range g.Nodes {
		if n.HasChoices() {
			count++
		}
	}
	return count
}

// Summary is the spoiler-safe catalog entry pushed to players: metadata only,
// no node contents.
type Summary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Genre            string `json:"genre"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	MinPlayers       int    `json:"minPlayers"`
	MaxPlayers       int    `json:"maxPlayers"`
}

func (g *Graph) Summary() Summary {
	return Summary{
		ID:               g.ID,
		Title:            g.Title,
		Genre:            g.Genre,
		Description:      g.Description,
		EstimatedMinutes: g.EstimatedMinutes,
		MinPlayers:       g.MinPlayers,
		MaxPlayers:       g.MaxPlayers,
	}
}
