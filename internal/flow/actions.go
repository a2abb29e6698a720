package flow

import (
	"log/slog"
	"strings"

	"github.com/myrjola/casefile/internal/clues"
	"github.com/myrjola/casefile/internal/dialogue"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/flags"
	"github.com/myrjola/casefile/internal/location"
	"github.com/myrjola/casefile/internal/state"
)

// StartGame leaves the title screen and places the player at the start location of the first chapter.
func (o *Orchestrator) StartGame() Result {
	return o.run(ActionStart, func(res *Result) *Refusal {
		if o.State.Phase() != state.PhaseTitle {
			return refuse(CodeWrongPhase, "the game has already started")
		}
		start := o.cfg.StartLocation
		if _, ok := o.Locations.Get(start); !ok {
			return refuse(CodeUnknownTarget, "unknown start location %q", start)
		}
		o.Economy.Refill(o.State.Chapter().ActionPoints)
		o.State.SetLocationWithoutCost(start)
		o.State.SetPhase(state.PhaseExploration)
		return nil
	})
}

// RequestMove travels to the location target, paying its move cost.
func (o *Orchestrator) RequestMove(target string) Result {
	return o.run(ActionMove, func(res *Result) *Refusal {
		if r := o.guard(ActionMove, 0); r != nil {
			return r
		}
		loc, ok := o.Locations.Get(target)
		if !ok {
			return refuse(CodeUnknownTarget, "there is no place called %q", target)
		}
		if o.State.Location() == target {
			return refuse(CodeAlreadyDone, "you are already at %s", displayName(loc))
		}
		// Restrictions are checked right before committing so that stale answers from an earlier query can't leak in.
		// They come before points so that the refusal names the restriction.
		if restriction := state.CheckLocation(loc, o.State.View(o.Locations.IsUnlocked(target))); restriction != nil {
			return refuse(CodeRestricted, "%s", restriction.Reason)
		}
		if r := o.afford(loc.Cost()); r != nil {
			return r
		}
		if err := o.State.MoveToLocation(loc, o.Economy); err != nil {
			o.logger.Debug("move refused at commit", errors.SlogError(err))
			return o.afford(loc.Cost())
		}
		res.Cost = loc.Cost()
		if o.State.Phase() == state.PhaseInvestigation {
			o.State.SetPhase(state.PhaseExploration)
		}
		return nil
	})
}

// Destination is a location as seen from the current state.
type Destination struct {
	Location    location.Location  `json:"location"`
	Cost        int                `json:"cost"`
	Restriction *state.Restriction `json:"restriction,omitempty"`
}

// Destinations lists every other location with the restriction that currently applies to it, if any.
func (o *Orchestrator) Destinations() []Destination {
	var destinations []Destination
	for _, loc := range o.Locations.All() {
		if loc.ID == o.State.Location() {
			continue
		}
		destinations = append(destinations, Destination{
			Location:    loc,
			Cost:        loc.Cost(),
			Restriction: state.CheckLocation(loc, o.State.View(o.Locations.IsUnlocked(loc.ID))),
		})
	}
	return destinations
}

// RequestTalk opens a conversation with npc. Talking to someone again in the same chapter enters their revisit node
// for free, or is refused when they have nothing more to say.
func (o *Orchestrator) RequestTalk(npc string) Result {
	return o.run(ActionTalk, func(res *Result) *Refusal {
		if r := o.guard(ActionTalk, 0); r != nil {
			return r
		}
		if !o.Dialogue.HasGraph(npc) {
			return refuse(CodeUnknownTarget, "%s has nothing to say", o.characterName(npc))
		}
		if r := o.present(npc); r != nil {
			return r
		}
		node, cost := dialogue.StartNode, o.cfg.Costs.Talk
		if o.State.HasFlag(flags.Talked(npc, o.State.ChapterID())) {
			if !o.Dialogue.HasNode(npc, dialogue.RevisitNode) {
				return refuse(CodeExhausted, "you already questioned %s in this chapter", o.characterName(npc))
			}
			node, cost = dialogue.RevisitNode, 0
		}
		if r := o.afford(cost); r != nil {
			return r
		}
		if err := o.Dialogue.CanStart(npc, node); err != nil {
			if errors.Is(err, dialogue.ErrNodeUnavailable) {
				// Shows the character's greeting instead.
				_ = o.Dialogue.Start(npc, node)
				return refuse(CodeRestricted, "%s won't talk about that now", o.characterName(npc))
			}
			return refuse(CodeInvalid, "%s", err.Error())
		}
		if r := o.spend(res, cost); r != nil {
			return r
		}
		o.Clues.MeetCharacter(npc)
		if err := o.Dialogue.Start(npc, node); err != nil {
			// CanStart passed a moment ago without anything changing in between.
			o.logger.Error("dialogue failed to start", slog.String("npc", npc), errors.SlogError(err))
		}
		return nil
	})
}

// present refuses when the current location lists its characters and npc is not among them.
func (o *Orchestrator) present(npc string) *Refusal {
	loc, ok := o.Locations.Get(o.State.Location())
	if !ok {
		return refuse(CodeNotHere, "%s is not here", o.characterName(npc))
	}
	if len(loc.NPCs) > 0 && !loc.HasNPC(npc) {
		return refuse(CodeNotHere, "%s is not at %s", o.characterName(npc), displayName(loc))
	}
	return nil
}

// RequestDiscoverClue investigates clue id at the current location.
func (o *Orchestrator) RequestDiscoverClue(id string) Result {
	return o.run(ActionInvestigate, func(res *Result) *Refusal {
		cost := o.cfg.Costs.Investigate
		if r := o.guard(ActionInvestigate, 0); r != nil {
			return r
		}
		clue, ok := o.Clues.Catalog().Clue(id)
		if !ok {
			return refuse(CodeUnknownTarget, "there is no %q to investigate", id)
		}
		if o.Clues.IsDiscovered(id) {
			return refuse(CodeAlreadyDone, "you already examined %s", clueName(clue))
		}
		if !o.reachable(clue) {
			return refuse(CodeNotHere, "%s is not here", clueName(clue))
		}
		if !o.inChapter(clue) {
			return refuse(CodeRestricted, "there is nothing to find about %s yet", clueName(clue))
		}
		if r := o.afford(cost); r != nil {
			return r
		}
		if r := o.spend(res, cost); r != nil {
			return r
		}
		o.Clues.Discover(id)
		res.Revealed = []string{id}
		return nil
	})
}

// reachable reports whether clue can be investigated at the current location. Clues bound to no location can be
// investigated anywhere.
func (o *Orchestrator) reachable(clue clues.Clue) bool {
	return clue.Location == "" || o.here(clue)
}

// here reports whether clue belongs to the current location.
func (o *Orchestrator) here(clue clues.Clue) bool {
	current := o.State.Location()
	if clue.Location == current {
		return true
	}
	loc, ok := o.Locations.Get(current)
	return ok && loc.HasClue(clue.ID)
}

// inChapter reports whether clue belongs to the current or an earlier chapter.
func (o *Orchestrator) inChapter(clue clues.Clue) bool {
	if clue.Chapter == "" {
		return true
	}
	_, idx, ok := o.State.ChapterByID(clue.Chapter)
	return ok && idx <= o.State.ChapterIndex()
}

// RequestObserve looks around the current location and reveals every observable clue there.
func (o *Orchestrator) RequestObserve() Result {
	return o.run(ActionObserve, func(res *Result) *Refusal {
		cost := o.cfg.Costs.Observe
		if r := o.guard(ActionObserve, 0); r != nil {
			return r
		}
		var found []string
		for _, clue := range o.Clues.Catalog().Clues() {
			if !clue.Observable || o.Clues.IsDiscovered(clue.ID) {
				continue
			}
			if o.here(clue) && o.inChapter(clue) {
				found = append(found, clue.ID)
			}
		}
		if len(found) == 0 {
			return refuse(CodeAlreadyDone, "you notice nothing new here")
		}
		if r := o.afford(cost); r != nil {
			return r
		}
		if r := o.spend(res, cost); r != nil {
			return r
		}
		for _, id := range found {
			o.Clues.Discover(id)
		}
		o.State.AddFlag(flags.Observed(o.State.Location()))
		res.Revealed = found
		return nil
	})
}

// RequestRest lets time pass until the next time slot and recovers some action points.
func (o *Orchestrator) RequestRest() Result {
	return o.run(ActionRest, func(res *Result) *Refusal {
		cost := o.cfg.Costs.Rest
		if r := o.guard(ActionRest, cost); r != nil {
			return r
		}
		if o.State.TimeSlot() == state.Night {
			return refuse(CodeRestricted, "it is too late to rest, move on to the next chapter")
		}
		if r := o.spend(res, cost); r != nil {
			return r
		}
		if err := o.State.AdvanceTimeSlot(); err != nil {
			o.logger.Error("advance time slot", errors.SlogError(err))
		}
		o.Economy.Recover(o.cfg.RestRecovery)
		return nil
	})
}

// RequestAccuse names the culprit and closes the case.
func (o *Orchestrator) RequestAccuse(suspect string) Result {
	return o.run(ActionAccuse, func(res *Result) *Refusal {
		cost := o.cfg.Costs.Accuse
		if r := o.guard(ActionAccuse, cost); r != nil {
			return r
		}
		if _, ok := o.Clues.Catalog().Character(suspect); !ok {
			return refuse(CodeUnknownTarget, "there is no one called %q", suspect)
		}
		if r := o.spend(res, cost); r != nil {
			return r
		}
		res.Ending = o.closeCase(suspect)
		return nil
	})
}

func (o *Orchestrator) characterName(id string) string {
	if c, ok := o.Clues.Catalog().Character(id); ok && c.Name != "" {
		return c.Name
	}
	return id
}

func displayName(loc location.Location) string {
	if loc.Name != "" {
		return loc.Name
	}
	return loc.ID
}

func clueName(c clues.Clue) string {
	if c.Name != "" {
		return strings.ToLower(c.Name)
	}
	return c.ID
}
