package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func graphFixture() *Graph {
	return &Graph{
		ID:          "g",
		Title:       "G",
		StartNodeID: "n0",
		Nodes: map[string]*Node{
			"n0": {
				ID:   "n0",
				Type: NodeChoice,
				Choices: []Choice{
					{ID: "a", Label: "A", NextNodeID: "n1"},
					{ID: "b", Label: "B", NextNodeID: "n2"},
				},
			},
			"n1": {ID: "n1", Type: NodeEnding, EndingType: "good"},
			"n2": {ID: "n2", Type: NodeEnding, EndingType: "bad"},
		},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Graph)
		wantErr bool
	}{
		{
			name:   "valid graph",
			mutate: func(g *Graph) {},
		},
		{
			name:    "missing start node",
			mutate:  func(g *Graph) { g.StartNodeID = "ghost" },
			wantErr: true,
		},
		{
			name: "choice points at missing node",
			mutate: func(g *Graph) {
				g.Nodes["n0"].Choices[1].NextNodeID = "ghost"
			},
			wantErr: true,
		},
		{
			name: "cycles are allowed",
			mutate: func(g *Graph) {
				g.Nodes["n0"].Choices[1].NextNodeID = "n0"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := graphFixture()
			tc.mutate(g)
			err := g.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNodeLookup(t *testing.T) {
	g := graphFixture()

	n, err := g.Node("n1")
	require.NoError(t, err)
	assert.True(t, n.IsEnding())

	_, err = g.Node("ghost")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCountDecisionNodes(t *testing.T) {
	g := graphFixture()
	assert.Equal(t, 1, CountDecisionNodes(g))

	g.Nodes["n3"] = &Node{
		ID:      "n3",
		Type:    NodeChoice,
		Choices: []Choice{{ID: "c", NextNodeID: "n1"}},
	}
	assert.Equal(t, 2, CountDecisionNodes(g))
}

func TestLoadDir_SkipsBrokenStories(t *testing.T) {
	reg, err := LoadDir("testdata", zap.NewNop())
	require.NoError(t, err)

	// tiny.json loads; broken.json (dangling edge) and notjson.json are
	// skipped without failing the load.
	require.Equal(t, 1, reg.Len())
	g := reg.Get("tiny")
	require.NotNil(t, g)
	assert.Equal(t, "n0", g.StartNodeID)
	assert.Nil(t, reg.Get("broken"))

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Tiny Tale", list[0].Title)
	assert.Equal(t, 1, list[0].EstimatedMinutes)
}

func TestLoadDir_MissingDirIsError(t *testing.T) {
	_, err := LoadDir("testdata/does-not-exist", zap.NewNop())
	require.Error(t, err)
}
