package flow

import (
	"fmt"

	"github.com/myrjola/casefile/internal/dialogue"
)

// Code classifies why an action was refused.
type Code string

const (
	CodeBusy               Code = "busy"
	CodeWrongPhase         Code = "wrong_phase"
	CodeInsufficientPoints Code = "insufficient_points"
	CodeUnknownTarget      Code = "unknown_target"
	CodeRestricted         Code = "restricted"
	CodeExhausted          Code = "exhausted"
	CodeNotHere            Code = "not_here"
	CodeAlreadyDone        Code = "already_done"
	CodeGameOver           Code = "game_over"
	CodeInvalid            Code = "invalid"
)

// Refusal is a recoverable "cannot proceed" answer to a player action. Nothing changed when an action was refused.
type Refusal struct {
	Code   Code   `json:"code"`
	Reason string `json:"reason"`
}

func refuse(code Code, format string, args ...any) *Refusal {
	return &Refusal{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Action names a player action.
type Action string

const (
	ActionStart              Action = "start"
	ActionMove               Action = "move"
	ActionTalk               Action = "talk"
	ActionInvestigate        Action = "investigate"
	ActionObserve            Action = "observe"
	ActionRest               Action = "rest"
	ActionAccuse             Action = "accuse"
	ActionAdvanceDialogue    Action = "advance_dialogue"
	ActionChoose             Action = "choose"
	ActionEndDialogue        Action = "end_dialogue"
	ActionAsk                Action = "ask"
	ActionReply              Action = "reply"
	ActionDeduce             Action = "deduce"
	ActionEnterInvestigation Action = "enter_investigation"
	ActionLeaveInvestigation Action = "leave_investigation"
	ActionPlayCutscene       Action = "play_cutscene"
	ActionFinishCutscene     Action = "finish_cutscene"
	ActionAdvanceChapter     Action = "advance_chapter"
)

// Result is the outcome of a player action.
type Result struct {
	Action Action `json:"action"`
	// Cost is the number of action points spent.
	Cost    int      `json:"cost"`
	Refusal *Refusal `json:"refusal,omitempty"`
	// ChapterCompleted is the id of the chapter the action completed, if any.
	ChapterCompleted string  `json:"chapter_completed,omitempty"`
	Ending           *Ending `json:"ending,omitempty"`
	// Revealed lists the clues discovered by the action.
	Revealed []string `json:"revealed,omitempty"`
	// Missing lists the undiscovered clues a deduction needed.
	Missing []string `json:"missing,omitempty"`
	// Freeform is set when the action suspended a conversation for a free-form reply.
	Freeform *dialogue.FreeformRequest `json:"freeform,omitempty"`
}

// OK reports whether the action was accepted.
func (r Result) OK() bool {
	return r.Refusal == nil
}
