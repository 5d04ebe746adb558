package tally

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyparty/story-party-backend/internal/story"
)

func twoChoices() []story.Choice {
	return []story.Choice{
		{ID: "a", Emoji: "🅰️", Label: "Door A", NextNodeID: "n1"},
		{ID: "b", Emoji: "🅱️", Label: "Door B", NextNodeID: "n2"},
	}
}

func TestResolve_CountsAndPercentages(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ballots := []Ballot{
		{Voter: "Ann", ChoiceID: "a"},
		{Voter: "Ben", ChoiceID: "a"},
		{Voter: "Cam", ChoiceID: "b"},
	}

	results, winner := Resolve(twoChoices(), ballots, nil, rng)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChoiceID)
	assert.Equal(t, 2, results[0].Count)
	assert.Equal(t, 67, results[0].Percentage)
	assert.Equal(t, []string{"Ann", "Ben"}, results[0].Voters)
	assert.Equal(t, 1, results[1].Count)
	assert.Equal(t, 33, results[1].Percentage)
	assert.Equal(t, []string{"Cam"}, results[1].Voters)
	assert.Equal(t, "a", winner)
}

func TestResolve_SumsMatchTotals(t *testing.T) {
	cases := []struct {
		name      string
		ballots   []Ballot
		nonVoters []string
	}{
		{name: "no votes at all"},
		{name: "single ballot", ballots: []Ballot{{Voter: "Ann", ChoiceID: "b"}}},
		{
			name:      "ballots plus defaults",
			ballots:   []Ballot{{Voter: "Ann", ChoiceID: "a"}, {Voter: "Ben", ChoiceID: "a"}},
			nonVoters: []string{"Cam", "Dee"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			results, winner := Resolve(twoChoices(), tc.ballots, tc.nonVoters, rng)

			total := len(tc.ballots) + len(tc.nonVoters)
			sum, pctSum := 0, 0
			for _, r := range results {
				sum += r.Count
				pctSum += r.Percentage
			}
			assert.Equal(t, total, sum)
			if total > 0 {
				assert.InDelta(t, 100, pctSum, 1) // rounding tolerance
			} else {
				assert.Equal(t, 0, pctSum)
			}

			// winner always carries the maximum count
			max := 0
			winnerCount := -1
			for _, r := range results {
				if r.Count > max {
					max = r.Count
				}
				if r.ChoiceID == winner {
					winnerCount = r.Count
				}
			}
			assert.Equal(t, max, winnerCount)
		})
	}
}

func TestResolve_DeadlineDefaultIsAnnotated(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	results, _ := Resolve(twoChoices(), nil, []string{"Ann"}, rng)

	total := 0
	var voters []string
	for _, r := range results {
		total += r.Count
		voters = append(voters, r.Voters...)
	}
	assert.Equal(t, 1, total)
	require.Len(t, voters, 1)
	assert.Equal(t, "Ann (random)", voters[0])
}

func TestResolve_IgnoresBallotForUnknownChoice(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ballots := []Ballot{
		{Voter: "Ann", ChoiceID: "a"},
		{Voter: "Ben", ChoiceID: "stale"},
	}
	results, winner := Resolve(twoChoices(), ballots, nil, rng)

	assert.Equal(t, 1, results[0].Count)
	assert.Equal(t, 0, results[1].Count)
	assert.Equal(t, "a", winner)
}

func TestResolve_TieBreakIsRoughlyUniform(t *testing.T) {
	ballots := []Ballot{
		{Voter: "Ann", ChoiceID: "a"},
		{Voter: "Ben", ChoiceID: "b"},
	}

	wins := map[string]int{}
	const trials = 2000
	for seed := 0; seed < trials; seed++ {
		rng := rand.New(rand.NewSource(int64(seed)))
		_, winner := Resolve(twoChoices(), ballots, nil, rng)
		wins[winner]++
	}

	// Both tied choices must win a substantial share across seeds.
	assert.Greater(t, wins["a"], trials/3)
	assert.Greater(t, wins["b"], trials/3)
}

func TestResolve_EmptyChoiceList(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	results, winner := Resolve(nil, nil, nil, rng)
	assert.Nil(t, results)
	assert.Empty(t, winner)
}
