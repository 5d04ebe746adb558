package tally

import (
	"math"
	"math/rand"

	"github.com/storyparty/story-party-backend/internal/story"
)

// Ballot is one recorded vote, in the order it was cast.
type Ballot struct {
	Voter    string // display name
	ChoiceID string
}

// Result is the revealed outcome for a single choice.
type Result struct {
	ChoiceID   string   `json:"choiceId"`
	Emoji      string   `json:"emoji"`
	Label      string   `json:"label"`
	Count      int      `json:"count"`
	Percentage int      `json:"percentage"`
	Voters     []string `json:"voters"`
}

// Resolve turns the ballots for one voting window into per-choice results and
// a winning choice id. Connected players who missed the deadline (nonVoters)
// are assigned a uniformly random choice, with their name annotated so the
// reveal can show the pick was not theirs. Ties for the maximum count are
// broken uniformly at random. Deterministic given rng; callers inject a
// seeded source in tests.
func Resolve(choices []story.Choice, ballots []Ballot, nonVoters []string, rng *rand.Rand) ([]Result, string) {
	if len(choices) == 0 {
		return nil, ""
	}

	counts := make(map[string]int, len(choices))
	voters := make(map[string][]string, len(choices))
	for _, c := range choices {
		counts[c.ID] = 0
		voters[c.ID] = nil
	}

	for _, b := range ballots {
		if _, ok := counts[b.ChoiceID]; !ok {
			continue
		}
		counts[b.ChoiceID]++
		voters[b.ChoiceID] = append(voters[b.ChoiceID], b.Voter)
	}

	for _, name := range nonVoters {
		c := choices[rng.Intn(len(choices))]
		counts[c.ID]++
		voters[c.ID] = append(voters[c.ID], name+" (random)")
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	results := make([]Result, 0, len(choices))
	maxCount := 0
	var leaders []string
	for _, c := range choices {
		n := counts[c.ID]
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(n) / float64(total) * 100))
		}
		results = append(results, Result{
			ChoiceID:   c.ID,
			Emoji:      c.Emoji,
			Label:      c.Label,
			Count:      n,
			Percentage: pct,
			Voters:     voters[c.ID],
		})

		if n > maxCount {
			maxCount = n
			leaders = []string{c.ID}
		} else if n == maxCount {
			leaders = append(leaders, c.ID)
		}
	}

	winner := leaders[rng.Intn(len(leaders))]
	return results, winner
}
