package clues

import (
	"fmt"
	"slices"

	"github.com/myrjola/casefile/internal/errors"
)

var (
	ErrInvalidCatalog  = errors.NewSentinel("invalid clue catalog")
	ErrInvalidRelation = errors.NewSentinel("invalid relation")
)

type Importance string

const (
	Minor     Importance = "minor"
	Important Importance = "important"
	Critical  Importance = "critical"
)

type Role string

const (
	Victim       Role = "victim"
	Suspect      Role = "suspect"
	Witness      Role = "witness"
	Investigator Role = "investigator"
	Neutral      Role = "neutral"
)

type Clue struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Category    string     `yaml:"category"`
	Importance  Importance `yaml:"importance"`
	// Chapter is the chapter the clue belongs to. The clue can't be investigated before it.
	Chapter string `yaml:"chapter"`
	// Location binds the clue to a place. Unbound clues can be investigated anywhere.
	Location string `yaml:"location"`
	// Observable clues are revealed by observing their location.
	Observable        bool     `yaml:"observable"`
	RelatedClues      []string `yaml:"related_clues"`
	RelatedCharacters []string `yaml:"related_characters"`
}

type Character struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Role        Role   `yaml:"role"`
	Suspicion   int    `yaml:"suspicion"`
	Description string `yaml:"description"`
	// Persona instructs the free-form conversation model how to play the character.
	Persona string `yaml:"persona"`
	// Greeting is shown when a scripted conversation can't start.
	Greeting string `yaml:"greeting"`
	// Portrait is the image path of the character, if any.
	Portrait string `yaml:"portrait"`
}

// Rule synthesizes a deduction once all of its clues are discovered.
type Rule struct {
	ID    string   `yaml:"id"`
	Clues []string `yaml:"clues"`
	Text  string   `yaml:"text"`
	Flag  string   `yaml:"flag"`
	// Reveals lists the relations between characters that become known when the rule fires.
	Reveals []Relation `yaml:"reveals"`
}

// Catalog is the static content of a case: what can be found and who can be met.
type Catalog struct {
	clues      []Clue
	clueIndex  map[string]int
	characters []Character
	charIndex  map[string]int
	rules      []Rule
}

func NewCatalog(clues []Clue, characters []Character, rules []Rule) (*Catalog, error) {
	c := &Catalog{
		clues:      slices.Clone(clues),
		clueIndex:  make(map[string]int, len(clues)),
		characters: slices.Clone(characters),
		charIndex:  make(map[string]int, len(characters)),
		rules:      slices.Clone(rules),
	}
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, errors.Wrap(ErrInvalidCatalog, fmt.Sprintf(format, args...)))
	}
	for i, cl := range c.clues {
		if cl.Importance == "" {
			c.clues[i].Importance = Minor
		} else if !slices.Contains([]Importance{Minor, Important, Critical}, cl.Importance) {
			invalid("clue %s has unknown importance %q", cl.ID, cl.Importance)
		}
		if _, ok := c.clueIndex[cl.ID]; ok || cl.ID == "" {
			invalid("clue id %q is empty or duplicated", cl.ID)
			continue
		}
		c.clueIndex[cl.ID] = i
	}
	for i, ch := range c.characters {
		if ch.Role == "" {
			c.characters[i].Role = Neutral
		} else if !slices.Contains([]Role{Victim, Suspect, Witness, Investigator, Neutral}, ch.Role) {
			invalid("character %s has unknown role %q", ch.ID, ch.Role)
		}
		if _, ok := c.charIndex[ch.ID]; ok || ch.ID == "" {
			invalid("character id %q is empty or duplicated", ch.ID)
			continue
		}
		c.charIndex[ch.ID] = i
	}
	ruleIDs := make(map[string]bool, len(rules))
	for _, r := range c.rules {
		if ruleIDs[r.ID] || r.ID == "" {
			invalid("rule id %q is empty or duplicated", r.ID)
		}
		ruleIDs[r.ID] = true
		if len(r.Clues) == 0 {
			invalid("rule %s lists no clues", r.ID)
		}
		for _, id := range r.Clues {
			if _, ok := c.clueIndex[id]; !ok {
				invalid("rule %s references unknown clue %s", r.ID, id)
			}
		}
		for _, rel := range r.Reveals {
			if err := c.CheckRelation(rel); err != nil {
				invalid("rule %s: %s", r.ID, err.Error())
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Clue(id string) (Clue, bool) {
	i, ok := c.clueIndex[id]
	if !ok {
		return Clue{}, false
	}
	return c.clues[i], true
}

// Clues returns every clue in catalog order.
func (c *Catalog) Clues() []Clue {
	return slices.Clone(c.clues)
}

func (c *Catalog) Character(id string) (Character, bool) {
	i, ok := c.charIndex[id]
	if !ok {
		return Character{}, false
	}
	return c.characters[i], true
}

func (c *Catalog) Characters() []Character {
	return slices.Clone(c.characters)
}

// Suspects returns the ids of the characters with the suspect role.
func (c *Catalog) Suspects() []string {
	var ids []string
	for _, ch := range c.characters {
		if ch.Role == Suspect {
			ids = append(ids, ch.ID)
		}
	}
	return ids
}

// CheckRelation reports why rel can't be revealed: a pair of the same character or a character missing from the
// catalog.
func (c *Catalog) CheckRelation(rel Relation) error {
	if rel.A == rel.B {
		return errors.Wrap(ErrInvalidRelation, fmt.Sprintf("%s/%s needs two different characters", rel.A, rel.B))
	}
	for _, id := range []string{rel.A, rel.B} {
		if _, ok := c.charIndex[id]; !ok {
			return errors.Wrap(ErrInvalidRelation, fmt.Sprintf("unknown character %q", id))
		}
	}
	if rel.Label == "" {
		return errors.Wrap(ErrInvalidRelation, fmt.Sprintf("%s/%s has no label", rel.A, rel.B))
	}
	return nil
}

func (c *Catalog) Rules() []Rule {
	return slices.Clone(c.rules)
}

func (c *Catalog) hasRule(id string) bool {
	return slices.ContainsFunc(c.rules, func(r Rule) bool { return r.ID == id })
}
