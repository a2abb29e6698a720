// Package content loads case files: the chapters, places, people, clues and conversations of one mystery.
//
// A case file is YAML. Unknown keys are rejected so that typos surface at load time instead of as silently missing
// content.
//
// Example:
//
//	case:
//	  id: rue_morgue
//	  title: "Murder at Rue Morgue"
//	culprit: chef
//	start_location: street
//	chapters:
//	  - id: "1"
//	    title: "The Kitchen"
//	    required_clues: [bloody_knife]
//	locations:
//	  - id: street
//	    name: "Rue Morgue"
//	    unlocked: true
//	    free: true
package content

import (
	"bytes"
	_ "embed"
	"io"
	"log/slog"
	"os"

	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/economy"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/flow"
	"github.com/myrjola/casefile/internal/location"
	"github.com/myrjola/casefile/internal/state"
	"gopkg.in/yaml.v3"
)

//go:embed rue_morgue.yaml
var sampleCase []byte

// Meta describes the case as a whole.
type Meta struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	// Intro is shown when a new game starts.
	Intro string `yaml:"intro"`
}

// Case is a decoded case file.
type Case struct {
	Meta          Meta                  `yaml:"case"`
	Culprit       string                `yaml:"culprit"`
	StartLocation string                `yaml:"start_location"`
	Economy       economy.Config        `yaml:"economy"`
	Costs         flow.Costs            `yaml:"costs"`
	Endings       flow.EndingThresholds `yaml:"endings"`
	RestRecovery  int                   `yaml:"rest_recovery"`
	// ResetTimeSlotOnAdvance returns the clock to the morning at every new chapter.
	ResetTimeSlotOnAdvance bool                      `yaml:"reset_time_slot_on_advance"`
	Chapters               []state.Chapter           `yaml:"chapters"`
	Locations              []location.Location       `yaml:"locations"`
	Characters             []clues.Character         `yaml:"characters"`
	Clues                  []clues.Clue              `yaml:"clues"`
	Deductions             []clues.Rule              `yaml:"deductions"`
	Dialogues              map[string]dialogue.Graph `yaml:"dialogues"`
}

// Load reads, decodes and validates a case file from disk.
func Load(path string) (*Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open case file", slog.String("path", path))
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "load case file", slog.String("path", path))
	}
	return c, nil
}

// LoadFromReader decodes and validates a case from r. Omitted costs, endings and economy settings keep their
// defaults.
func LoadFromReader(r io.Reader) (*Case, error) {
	c := Case{
		Economy:      economy.DefaultConfig(),
		Costs:        flow.DefaultCosts(),
		Endings:      flow.DefaultEndingThresholds(),
		RestRecovery: flow.DefaultRestRecovery,
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "decode case yaml")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Sample returns the bundled "Murder at Rue Morgue" case.
func Sample() *Case {
	c, err := LoadFromReader(bytes.NewReader(sampleCase))
	if err != nil {
		panic(errors.Wrap(err, "bundled case is invalid"))
	}
	return c
}

// FlowConfig returns the orchestrator settings the case defines. The exhaustion policy is chosen by the engine.
func (c *Case) FlowConfig() flow.Config {
	cfg := flow.DefaultConfig()
	cfg.Costs = c.Costs
	cfg.Endings = c.Endings
	cfg.Culprit = c.Culprit
	cfg.StartLocation = c.StartLocation
	if c.RestRecovery > 0 {
		cfg.RestRecovery = c.RestRecovery
	}
	return cfg
}

func (c *Case) StateConfig() state.Config {
	return state.Config{Chapters: c.Chapters, ResetTimeSlotOnAdvance: c.ResetTimeSlotOnAdvance}
}

func (c *Case) ClueCatalog() (*clues.Catalog, error) {
	return clues.NewCatalog(c.Clues, c.Characters, c.Deductions)
}

func (c *Case) DialogueCatalog() (*dialogue.Catalog, error) {
	return dialogue.NewCatalog(c.Dialogues)
}

// Character looks up a character by id.
func (c *Case) Character(id string) (clues.Character, bool) {
	for _, ch := range c.Characters {
		if ch.ID == id {
			return ch, true
		}
	}
	return clues.Character{}, false
}

// Greeting returns the line a character says when no scripted conversation is available.
func (c *Case) Greeting(npc string) string {
	ch, _ := c.Character(npc)
	return ch.Greeting
}
