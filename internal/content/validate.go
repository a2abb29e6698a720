package content

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/state"
)

var ErrInvalidCase = errors.NewSentinel("invalid case")

// Validate checks every cross reference of the case and reports all broken ones at once.
func (c *Case) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, errors.Wrap(ErrInvalidCase, fmt.Sprintf(format, args...)))
	}

	if c.Meta.ID == "" {
		invalid("case id is missing")
	}
	if len(c.Chapters) == 0 {
		invalid("case has no chapters")
	}
	if c.Economy.Max <= 0 {
		invalid("economy max must be positive, got %d", c.Economy.Max)
	}

	chapters := make(map[string]bool, len(c.Chapters))
	for _, ch := range c.Chapters {
		if ch.ID == "" || chapters[ch.ID] {
			invalid("chapter id %q is empty or duplicated", ch.ID)
		}
		chapters[ch.ID] = true
		if ch.MinActions < 0 || ch.ActionPoints < 0 {
			invalid("chapter %s has negative min_actions or action_points", ch.ID)
		}
	}

	catalog, err := c.ClueCatalog()
	if err != nil {
		errs = append(errs, err)
	}
	if _, err := c.DialogueCatalog(); err != nil {
		errs = append(errs, err)
	}

	hasClue := func(id string) bool {
		return slices.ContainsFunc(c.Clues, func(cl clues.Clue) bool { return cl.ID == id })
	}
	hasCharacter := func(id string) bool {
		_, ok := c.Character(id)
		return ok
	}
	locations := make(map[string]bool, len(c.Locations))
	for _, l := range c.Locations {
		if l.ID == "" || locations[l.ID] {
			invalid("location id %q is empty or duplicated", l.ID)
		}
		locations[l.ID] = true
	}

	for _, ch := range c.Chapters {
		for _, id := range ch.RequiredClues {
			if !hasClue(id) {
				invalid("chapter %s requires unknown clue %s", ch.ID, id)
			}
		}
	}
	for _, l := range c.Locations {
		for _, slot := range l.OpenSlots {
			if _, err := state.ParseTimeSlot(slot); err != nil {
				invalid("location %s opens in unknown time slot %q, want one of %s",
					l.ID, slot, strings.Join(state.TimeSlotNames(), ", "))
			}
		}
		for _, id := range l.Chapters {
			if !chapters[id] {
				invalid("location %s is available in unknown chapter %s", l.ID, id)
			}
		}
		for _, id := range l.NPCs {
			if !hasCharacter(id) {
				invalid("location %s hosts unknown character %s", l.ID, id)
			}
		}
		for _, id := range l.Clues {
			if !hasClue(id) {
				invalid("location %s lists unknown clue %s", l.ID, id)
			}
		}
	}
	for _, cl := range c.Clues {
		if cl.Chapter != "" && !chapters[cl.Chapter] {
			invalid("clue %s belongs to unknown chapter %s", cl.ID, cl.Chapter)
		}
		if cl.Location != "" && !locations[cl.Location] {
			invalid("clue %s is bound to unknown location %s", cl.ID, cl.Location)
		}
		for _, id := range cl.RelatedClues {
			if !hasClue(id) {
				invalid("clue %s relates to unknown clue %s", cl.ID, id)
			}
		}
		for _, id := range cl.RelatedCharacters {
			if !hasCharacter(id) {
				invalid("clue %s relates to unknown character %s", cl.ID, id)
			}
		}
	}
	for _, npc := range slices.Sorted(maps.Keys(c.Dialogues)) {
		if !hasCharacter(npc) {
			invalid("dialogue for unknown character %s", npc)
		}
		g := c.Dialogues[npc]
		for _, id := range slices.Sorted(maps.Keys(g)) {
			n := g[id]
			if n.Conditions.Chapter != "" && !chapters[n.Conditions.Chapter] {
				invalid("dialogue %s/%s is conditioned on unknown chapter %s", npc, id, n.Conditions.Chapter)
			}
			if n.Conditions.TimeSlot != "" {
				if _, err := state.ParseTimeSlot(n.Conditions.TimeSlot); err != nil {
					invalid("dialogue %s/%s is conditioned on unknown time slot %q, want one of %s",
						npc, id, n.Conditions.TimeSlot, strings.Join(state.TimeSlotNames(), ", "))
				}
			}
			for i, choice := range n.Choices {
				for _, rel := range choice.Reveals {
					if catalog == nil {
						continue
					}
					if err := catalog.CheckRelation(rel); err != nil {
						invalid("dialogue %s/%s choice %d: %s", npc, id, i, err.Error())
					}
				}
			}
		}
	}

	if c.Culprit == "" {
		invalid("culprit is missing")
	} else if !hasCharacter(c.Culprit) {
		invalid("culprit %s is not a character", c.Culprit)
	}
	if c.StartLocation == "" {
		invalid("start_location is missing")
	} else if !locations[c.StartLocation] {
		invalid("start_location %s does not exist", c.StartLocation)
	}

	return errors.Join(errs...)
}
