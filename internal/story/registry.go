package story

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry holds every loaded story, keyed by id. Read-only after LoadDir,
// so many rooms can share it without copies or locks.
type Registry struct {
	stories map[string]*Graph
}

// NewRegistry builds a registry from already-validated graphs. Used by tests
// and by anything that produces graphs without the JSON loader.
func NewRegistry(graphs ...*Graph) *Registry {
	r := &Registry{stories: make(map[string]*Graph, len(graphs))}
	for _, g := range graphs {
		r.stories[g.ID] = g
	}
	return r
}

// LoadDir reads every *.json file in dir as a story definition. A file that
// fails to parse or validate is logged and skipped; only a missing directory
// is an error.
func LoadDir(dir string, log *zap.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading stories dir: %w", err)
	}

	r := &Registry{stories: make(map[string]*Graph)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		g, err := loadFile(path)
		if err != nil {
			log.Error("skipping story", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		r.stories[g.ID] = g
		log.Info("loaded story",
			zap.String("id", g.ID),
			zap.String("title", g.Title),
			zap.Int("nodes", len(g.Nodes)),
		)
	}

	log.Info("story registry ready", zap.Int("stories", len(r.stories)))
	return r, nil
}

func loadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validating: %w", err)
	}
	return &g, nil
}

func (r *Registry) Get(id string) *Graph {
	return r.stories[id]
}

func (r *Registry) Len() int { return len(r.stories) }

// List returns catalog summaries sorted by title for a stable order.
func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.stories))
	for _, g := range r.stories {
		out = append(out, g.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}
