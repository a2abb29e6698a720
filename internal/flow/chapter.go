package flow

import (
	"fmt"
	"strings"

	"github.com/myrjola/casefile/internal/event"
	"github.com/myrjola/casefile/internal/state"
)

// RecordDeduction draws a conclusion from clueIDs. It is refused, listing the missing clues, unless all of them have
// been discovered.
func (o *Orchestrator) RecordDeduction(clueIDs []string, text, flag string) Result {
	return o.run(ActionDeduce, func(res *Result) *Refusal {
		if r := o.guard(ActionDeduce, 0); r != nil {
			return r
		}
		if len(clueIDs) == 0 {
			return refuse(CodeInvalid, "a deduction needs at least one clue")
		}
		for _, id := range clueIDs {
			if _, ok := o.Clues.Catalog().Clue(id); !ok {
				return refuse(CodeUnknownTarget, "there is no clue %q", id)
			}
		}
		result := o.Clues.RecordDeduction(clueIDs, text, flag)
		if !result.Recorded {
			res.Missing = result.Missing
			return refuse(CodeInvalid, "you lack evidence: %s", strings.Join(result.Missing, ", "))
		}
		return nil
	})
}

// EnterInvestigation switches from roaming to examining the current location.
func (o *Orchestrator) EnterInvestigation() Result {
	return o.run(ActionEnterInvestigation, func(res *Result) *Refusal {
		return o.transition(state.PhaseExploration, state.PhaseInvestigation)
	})
}

// LeaveInvestigation returns to roaming.
func (o *Orchestrator) LeaveInvestigation() Result {
	return o.run(ActionLeaveInvestigation, func(res *Result) *Refusal {
		return o.transition(state.PhaseInvestigation, state.PhaseExploration)
	})
}

func (o *Orchestrator) transition(from, to state.Phase) *Refusal {
	if o.ending != nil {
		return refuse(CodeGameOver, "the case is closed")
	}
	if p := o.State.Phase(); p != from {
		return refuse(CodeWrongPhase, "can't switch to %s during %s", to, p)
	}
	o.State.SetPhase(to)
	return nil
}

// PlayCutscene suspends player actions until FinishCutscene is called.
func (o *Orchestrator) PlayCutscene(id string) Result {
	return o.run(ActionPlayCutscene, func(res *Result) *Refusal {
		if r := o.guard(ActionPlayCutscene, 0); r != nil {
			return r
		}
		if id == "" {
			return refuse(CodeInvalid, "cutscene id is required")
		}
		o.cutscene = id
		o.State.SetPhase(state.PhaseCutscene)
		o.bus.Publish(event.CutsceneStarted{Cutscene: id})
		return nil
	})
}

// FinishCutscene returns control to the player.
func (o *Orchestrator) FinishCutscene() Result {
	return o.run(ActionFinishCutscene, func(res *Result) *Refusal {
		if o.State.Phase() != state.PhaseCutscene {
			return refuse(CodeWrongPhase, "no cutscene is playing")
		}
		id := o.cutscene
		o.cutscene = ""
		o.State.SetPhase(state.PhaseExploration)
		o.bus.Publish(event.CutsceneFinished{Cutscene: id})
		return nil
	})
}

// AdvanceChapter moves on to the next chapter once the current one is complete or the action points are spent.
// Advancing past the terminal chapter closes the case without an accusation.
func (o *Orchestrator) AdvanceChapter() Result {
	return o.run(ActionAdvanceChapter, func(res *Result) *Refusal {
		if r := o.guard(ActionAdvanceChapter, 0); r != nil {
			return r
		}
		if !o.ChapterComplete() && o.Economy.Current() > 0 {
			return refuse(CodeRestricted, "chapter %s is not finished: %s", o.State.ChapterID(), o.remaining())
		}
		if o.State.IsTerminal() {
			res.Ending = o.closeCase("")
			return nil
		}
		o.advanceChapter()
		return nil
	})
}

// remaining describes what the current chapter still requires.
func (o *Orchestrator) remaining() string {
	ch := o.State.Chapter()
	var parts []string
	if missing := o.Clues.Missing(ch.RequiredClues); len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("%d clues to find", len(missing)))
	}
	if left := ch.MinActions - o.actionsInChapter; left > 0 {
		parts = append(parts, fmt.Sprintf("%d more actions to take", left))
	}
	if len(parts) == 0 {
		return "nothing left to do"
	}
	return strings.Join(parts, " and ")
}
