package dialogue

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/errors"
)

const (
	// StartNode is the entry node of every graph.
	StartNode = "start"
	// RevisitNode is entered when the player talks to a character again in the same chapter.
	RevisitNode = "revisit"
)

var ErrInvalidGraph = errors.NewSentinel("invalid dialogue graph")

type Line struct {
	Speaker string `yaml:"speaker"`
	Text    string `yaml:"text"`
	// SetFlag is set when the line is shown.
	SetFlag string `yaml:"set_flag"`
	Emotion string `yaml:"emotion"`
	Sound   string `yaml:"sound"`
}

type Choice struct {
	Text           string   `yaml:"text"`
	RequiredFlags  []string `yaml:"required_flags"`
	ForbiddenFlags []string `yaml:"forbidden_flags"`
	SetFlag        string   `yaml:"set_flag"`
	// ClearFlag retracts a fact the choice takes back, e.g., an earlier insult.
	ClearFlag     string `yaml:"clear_flag"`
	AffinityDelta int    `yaml:"affinity"`
	Next          string `yaml:"next"`
	// Reveals lists the relations between characters the player learns by picking the choice.
	Reveals []clues.Relation `yaml:"reveals"`
}

// Conditions gate entry into a node.
type Conditions struct {
	RequiredFlags  []string `yaml:"required_flags"`
	ForbiddenFlags []string `yaml:"forbidden_flags"`
	Chapter        string   `yaml:"chapter"`
	TimeSlot       string   `yaml:"time_slot"`
}

type Node struct {
	ID         string     `yaml:"-"`
	Lines      []Line     `yaml:"lines"`
	Choices    []Choice   `yaml:"choices"`
	Next       string     `yaml:"next"`
	Conditions Conditions `yaml:"conditions"`
}

// Graph holds one character's conversation keyed by node id. Graphs may contain cycles.
type Graph map[string]Node

// Catalog holds the dialogue graphs of every character. It is read-only once built.
type Catalog struct {
	graphs map[string]Graph
}

// NewCatalog indexes graphs by character id and fills in the node ids from the map keys.
func NewCatalog(graphs map[string]Graph) (*Catalog, error) {
	c := &Catalog{graphs: make(map[string]Graph, len(graphs))}
	for npc, g := range graphs {
		indexed := make(Graph, len(g))
		for id, n := range g {
			n.ID = id
			indexed[id] = n
		}
		c.graphs[npc] = indexed
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) HasNPC(npc string) bool {
	_, ok := c.graphs[npc]
	return ok
}

func (c *Catalog) Node(npc, id string) (Node, bool) {
	n, ok := c.graphs[npc][id]
	return n, ok
}

// NPCs returns the characters with a dialogue graph in lexical order.
func (c *Catalog) NPCs() []string {
	return slices.Sorted(maps.Keys(c.graphs))
}

// Validate checks that every graph has a start node and that every next reference resolves within the same graph.
func (c *Catalog) Validate() error {
	var errs []error
	invalid := func(npc, node, format string, args ...any) {
		errs = append(errs, errors.Wrap(ErrInvalidGraph, fmt.Sprintf(format, args...),
			slog.String("npc", npc), slog.String("node", node)))
	}
	for _, npc := range c.NPCs() {
		g := c.graphs[npc]
		if _, ok := g[StartNode]; !ok {
			invalid(npc, StartNode, "%s has no %q node", npc, StartNode)
		}
		for _, id := range slices.Sorted(maps.Keys(g)) {
			n := g[id]
			if n.Next != "" {
				if _, ok := g[n.Next]; !ok {
					invalid(npc, id, "%s/%s: next node %q does not exist", npc, id, n.Next)
				}
			}
			for i, ch := range n.Choices {
				if ch.Next == "" {
					continue
				}
				if _, ok := g[ch.Next]; !ok {
					invalid(npc, id, "%s/%s: choice %d leads to missing node %q", npc, id, i, ch.Next)
				}
			}
		}
	}
	return errors.Join(errs...)
}
